package user

import (
	"context"
	"time"

	"github.com/canteen42/canteen42-backend/internal/persistence"
)

type memoryRepository struct {
	store *persistence.MemoryStore
	users *persistence.Collection[User]
	clock persistence.Clock
}

func newMemoryRepository(store *persistence.MemoryStore, clock persistence.Clock) Repository {
	return &memoryRepository{
		store: store,
		users: persistence.NewCollection[User](store, "users", nil),
		clock: clock,
	}
}

func byID(id string) func(User) bool {
	return func(u User) bool { return u.ID == id }
}

func (r *memoryRepository) Create(_ context.Context, u *User) error {
	now := r.clock()
	rec := *u
	rec.ID = r.store.NextID()
	rec.CreatedAt, rec.UpdatedAt = now, now

	if !r.users.InsertUnique(rec, func(existing User) bool { return existing.Email == rec.Email }) {
		return ErrDuplicateEmail
	}
	*u = rec
	return nil
}

func (r *memoryRepository) FindAll(_ context.Context, f Filter) ([]User, error) {
	out := []User{}
	for _, u := range r.users.All() {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Email != "" && u.Email != f.Email {
			continue
		}
		out = append(out, u)
	}
	return persistence.NewestFirst(out, func(u User) time.Time { return u.CreatedAt }), nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (*User, error) {
	if u, ok := r.users.Find(byID(id)); ok {
		return &u, nil
	}
	return nil, nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (*User, error) {
	if u, ok := r.users.Find(func(u User) bool { return u.Email == email }); ok {
		return &u, nil
	}
	return nil, nil
}

func (r *memoryRepository) Update(_ context.Context, id string, p Patch) (*User, error) {
	u, found, ok := r.users.UpdateUnique(byID(id), func(u User) User {
		if p.Email != nil {
			u.Email = *p.Email
		}
		if p.Role != nil {
			u.Role = *p.Role
		}
		if p.FirstName != nil {
			u.FirstName = *p.FirstName
		}
		if p.LastName != nil {
			u.LastName = *p.LastName
		}
		if p.PasswordHash != nil {
			u.PasswordHash = *p.PasswordHash
		}
		u.UpdatedAt = r.clock.Touch(u.UpdatedAt)
		return u
	}, func(updated, other User) bool { return updated.Email == other.Email })
	if !found {
		return nil, nil
	}
	if !ok {
		return nil, ErrDuplicateEmail
	}
	return &u, nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) (*User, error) {
	if u, ok := r.users.Delete(byID(id)); ok {
		return &u, nil
	}
	return nil, nil
}
