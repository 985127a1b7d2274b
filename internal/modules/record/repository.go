package record

import (
	"context"
	"fmt"

	"github.com/canteen42/canteen42-backend/internal/persistence"
)

// Repository stores the records of one Kind. FindByID, Update and Delete return
// (nil, nil) when no record has the id.
type Repository interface {
	Create(ctx context.Context, data []byte) (*Record, error)
	FindAll(ctx context.Context, f Filter) ([]Record, error)
	FindByID(ctx context.Context, id string) (*Record, error)
	// Update merges the top-level keys of patch into the stored object.
	Update(ctx context.Context, id string, patch []byte) (*Record, error)
	Delete(ctx context.Context, id string) (*Record, error)
}

// Schema creates the table for k.
func Schema(k Kind) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id SERIAL PRIMARY KEY,
	data JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, k.Table)
}

// NewRepository returns the backend for k matching the gateway's mode.
func NewRepository(gw *persistence.Gateway, k Kind, clock persistence.Clock) Repository {
	if gw.Mode() == persistence.ModeMemory {
		return NewMemoryRepository(gw.Memory(), k, clock)
	}
	return NewPostgresRepository(gw.DB(), k, clock)
}
