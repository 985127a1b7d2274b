package product

import (
	"context"

	"github.com/canteen42/canteen42-backend/internal/persistence"
)

// Repository defines the interface for product storage. FindByID, Update and
// Delete return (nil, nil) when no product has the id; an error is always a
// backend fault.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	FindAll(ctx context.Context, f Filter) ([]Product, error)
	FindByID(ctx context.Context, id string) (*Product, error)
	Update(ctx context.Context, id string, p Patch) (*Product, error)
	Delete(ctx context.Context, id string) (*Product, error)
}

// Schema creates the products table.
const Schema = `
CREATE TABLE IF NOT EXISTS products (
	id SERIAL PRIMARY KEY,
	title VARCHAR(255) NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	price DECIMAL(10, 2) NOT NULL,
	variants JSONB NOT NULL DEFAULT '[]',
	stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
	status VARCHAR(50) NOT NULL DEFAULT 'inactive',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// NewRepository returns the backend matching the gateway's mode.
func NewRepository(gw *persistence.Gateway, clock persistence.Clock) Repository {
	if gw.Mode() == persistence.ModeMemory {
		return NewMemoryRepository(gw.Memory(), clock)
	}
	return NewPostgresRepository(gw.DB(), clock)
}
