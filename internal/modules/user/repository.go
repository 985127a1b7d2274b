package user

import (
	"context"
	"errors"

	"github.com/canteen42/canteen42-backend/internal/persistence"
)

// ErrDuplicateEmail is returned by Create and Update when the email is taken.
var ErrDuplicateEmail = errors.New("email already registered")

// Repository stores users. Find, Update and Delete return (nil, nil) when no
// user has the given id.
type Repository interface {
	Create(ctx context.Context, u *User) error
	FindAll(ctx context.Context, f Filter) ([]User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, id string, p Patch) (*User, error)
	Delete(ctx context.Context, id string) (*User, error)
}

// Schema creates the users table.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id SERIAL PRIMARY KEY,
	email VARCHAR(255) NOT NULL UNIQUE,
	password_hash TEXT NOT NULL DEFAULT '',
	role VARCHAR(50) NOT NULL DEFAULT 'customer',
	auth_uid VARCHAR(255) NOT NULL DEFAULT '',
	first_name VARCHAR(255) NOT NULL DEFAULT '',
	last_name VARCHAR(255) NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// NewRepository returns the backend matching the gateway's mode.
func NewRepository(gw *persistence.Gateway, clock persistence.Clock) Repository {
	if gw.Mode() == persistence.ModeMemory {
		return newMemoryRepository(gw.Memory(), clock)
	}
	return NewPostgresRepository(gw.DB(), clock)
}
