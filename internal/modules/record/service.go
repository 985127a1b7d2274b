package record

import (
	"context"
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/canteen42/canteen42-backend/internal/httpx"
)

// Scope restricts an operation to one owner's records. The zero Scope is
// unrestricted.
type Scope struct {
	Owner string
}

// Service implements CRUD over one Kind. Errors are *httpx.Error values.
type Service struct {
	kind Kind
	repo Repository
}

func NewService(k Kind, repo Repository) *Service {
	return &Service{kind: k, repo: repo}
}

func (s *Service) Kind() Kind { return s.kind }

func requireObject(data []byte) error {
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return httpx.Validation("Body must be a JSON object")
	}
	return nil
}

// stamp forces the owner key to the scope's owner.
func (s *Service) stamp(data []byte, sc Scope) ([]byte, error) {
	if sc.Owner == "" || s.kind.OwnerKey == "" {
		return data, nil
	}
	owner, err := json.Marshal(map[string]string{s.kind.OwnerKey: sc.Owner})
	if err != nil {
		return nil, err
	}
	return Merge(data, owner)
}

func (s *Service) owns(rec *Record, sc Scope) bool {
	if sc.Owner == "" || s.kind.OwnerKey == "" {
		return true
	}
	return gjson.GetBytes(rec.Data, gjson.Escape(s.kind.OwnerKey)).String() == sc.Owner
}

func (s *Service) List(ctx context.Context, f Filter, sc Scope) ([]Record, error) {
	if sc.Owner != "" && s.kind.OwnerKey != "" {
		data := map[string]string{s.kind.OwnerKey: sc.Owner}
		for k, v := range f.Data {
			if k != s.kind.OwnerKey {
				data[k] = v
			}
		}
		f = Filter{Data: data}
	}
	recs, err := s.repo.FindAll(ctx, f)
	if err != nil {
		return nil, httpx.Upstream("Failed to list "+s.kind.Table, err)
	}
	return recs, nil
}

func (s *Service) Get(ctx context.Context, id string, sc Scope) (*Record, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, httpx.Upstream("Failed to load "+s.kind.Table, err)
	}
	if rec == nil || !s.owns(rec, sc) {
		return nil, httpx.NotFound(s.kind.Name, id)
	}
	return rec, nil
}

func (s *Service) Create(ctx context.Context, data []byte, sc Scope) (*Record, error) {
	if err := requireObject(data); err != nil {
		return nil, err
	}
	data, err := s.stamp(data, sc)
	if err != nil {
		return nil, httpx.Upstream("Failed to create "+s.kind.Table, err)
	}
	rec, err := s.repo.Create(ctx, data)
	if err != nil {
		return nil, httpx.Upstream("Failed to create "+s.kind.Table, err)
	}
	return rec, nil
}

func (s *Service) Update(ctx context.Context, id string, patch []byte, sc Scope) (*Record, error) {
	if err := requireObject(patch); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, id, sc); err != nil {
		return nil, err
	}
	patch, err := s.stamp(patch, sc)
	if err != nil {
		return nil, httpx.Upstream("Failed to update "+s.kind.Table, err)
	}
	rec, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, httpx.Upstream("Failed to update "+s.kind.Table, err)
	}
	if rec == nil {
		return nil, httpx.NotFound(s.kind.Name, id)
	}
	return rec, nil
}

func (s *Service) Delete(ctx context.Context, id string, sc Scope) (*Record, error) {
	if _, err := s.Get(ctx, id, sc); err != nil {
		return nil, err
	}
	rec, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, httpx.Upstream("Failed to delete "+s.kind.Table, err)
	}
	if rec == nil {
		return nil, httpx.NotFound(s.kind.Name, id)
	}
	return rec, nil
}
