package record

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"

	"github.com/canteen42/canteen42-backend/internal/persistence"
)

type memoryRepo struct {
	store   *persistence.MemoryStore
	records *persistence.Collection[Record]
	clock   persistence.Clock
}

func NewMemoryRepository(store *persistence.MemoryStore, k Kind, clock persistence.Clock) Repository {
	return &memoryRepo{
		store:   store,
		records: persistence.NewCollection[Record](store, k.Table, clone),
		clock:   clock,
	}
}

func byID(id string) func(Record) bool {
	return func(r Record) bool { return r.ID == id }
}

// matches mirrors the relational data->>key = value comparison. Numbers
// compare by their stored text, so "10.50" does not match 10.5.
func (f Filter) matches(data []byte) bool {
	for key, want := range f.Data {
		got := gjson.GetBytes(data, gjson.Escape(key))
		if !got.Exists() || got.Type == gjson.Null {
			return false
		}
		text := got.String()
		if got.Type == gjson.Number {
			text = got.Raw
		}
		if text != want {
			return false
		}
	}
	return true
}

// Merge applies the top-level keys of patch over base, like jsonb ||.
func Merge(base, patch []byte) ([]byte, error) {
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(patch, &overlay); err != nil {
		return nil, err
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Create stores data the way jsonb would: compacted, last duplicate key wins.
func (r *memoryRepo) Create(_ context.Context, data []byte) (*Record, error) {
	data, err := Merge([]byte("{}"), data)
	if err != nil {
		return nil, err
	}
	now := r.clock()
	rec := Record{ID: r.store.NextID(), Data: data, CreatedAt: now, UpdatedAt: now}
	r.records.Insert(rec)
	rec = clone(rec)
	return &rec, nil
}

func (r *memoryRepo) FindAll(_ context.Context, f Filter) ([]Record, error) {
	out := []Record{}
	for _, rec := range r.records.All() {
		if f.matches(rec.Data) {
			out = append(out, rec)
		}
	}
	return persistence.NewestFirst(out, func(r Record) time.Time { return r.CreatedAt }), nil
}

func (r *memoryRepo) FindByID(_ context.Context, id string) (*Record, error) {
	if rec, ok := r.records.Find(byID(id)); ok {
		return &rec, nil
	}
	return nil, nil
}

func (r *memoryRepo) Update(_ context.Context, id string, patch []byte) (*Record, error) {
	var mergeErr error
	rec, ok := r.records.Update(byID(id), func(rec Record) Record {
		merged, err := Merge(rec.Data, patch)
		if err != nil {
			mergeErr = err
			return rec
		}
		rec.Data = merged
		rec.UpdatedAt = r.clock.Touch(rec.UpdatedAt)
		return rec
	})
	if mergeErr != nil {
		return nil, mergeErr
	}
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *memoryRepo) Delete(_ context.Context, id string) (*Record, error) {
	if rec, ok := r.records.Delete(byID(id)); ok {
		return &rec, nil
	}
	return nil, nil
}
