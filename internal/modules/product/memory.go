package product

import (
	"context"
	"time"

	"github.com/canteen42/canteen42-backend/internal/persistence"
)

type memoryRepo struct {
	store    *persistence.MemoryStore
	products *persistence.Collection[Product]
	clock    persistence.Clock
}

func NewMemoryRepository(store *persistence.MemoryStore, clock persistence.Clock) Repository {
	return &memoryRepo{
		store:    store,
		products: persistence.NewCollection[Product](store, "products", clone),
		clock:    clock,
	}
}

func byID(id string) func(Product) bool {
	return func(p Product) bool { return p.ID == id }
}

func (r *memoryRepo) Create(_ context.Context, p *Product) error {
	now := r.clock()
	p.ID = r.store.NextID()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Variants == nil {
		p.Variants = []Variant{}
	}
	r.products.Insert(*p)
	return nil
}

func (r *memoryRepo) FindAll(_ context.Context, f Filter) ([]Product, error) {
	out := []Product{}
	for _, p := range r.products.All() {
		if f.match(p) {
			out = append(out, p)
		}
	}
	return persistence.NewestFirst(out, func(p Product) time.Time { return p.CreatedAt }), nil
}

func (r *memoryRepo) FindByID(_ context.Context, id string) (*Product, error) {
	if p, ok := r.products.Find(byID(id)); ok {
		return &p, nil
	}
	return nil, nil
}

func (r *memoryRepo) Update(_ context.Context, id string, patch Patch) (*Product, error) {
	p, ok := r.products.Update(byID(id), func(p Product) Product {
		patch.apply(&p)
		p.UpdatedAt = r.clock.Touch(p.UpdatedAt)
		return p
	})
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *memoryRepo) Delete(_ context.Context, id string) (*Product, error) {
	if p, ok := r.products.Delete(byID(id)); ok {
		return &p, nil
	}
	return nil, nil
}
