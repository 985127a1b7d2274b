package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/canteen42/canteen42-backend/internal/persistence"
)

const userColumns = `id::text AS id, email, password_hash, role, auth_uid, first_name, last_name, created_at, updated_at`

type postgresRepository struct {
	db    *sqlx.DB
	clock persistence.Clock
}

// NewPostgresRepository creates a new PostgreSQL user repository.
func NewPostgresRepository(db *sqlx.DB, clock persistence.Clock) Repository {
	return &postgresRepository{db: db, clock: clock}
}

func (r *postgresRepository) Create(ctx context.Context, u *User) error {
	now := r.clock()
	query := `
		INSERT INTO users (email, password_hash, role, auth_uid, first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id::text
	`
	err := r.db.QueryRowxContext(ctx, query, u.Email, u.PasswordHash, u.Role, u.AuthUID, u.FirstName, u.LastName, now).Scan(&u.ID)
	if persistence.IsUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

func (r *postgresRepository) FindAll(ctx context.Context, f Filter) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE 1=1`
	var args []interface{}
	if f.Role != "" {
		args = append(args, f.Role)
		query += fmt.Sprintf(" AND role = $%d", len(args))
	}
	if f.Email != "" {
		args = append(args, f.Email)
		query += fmt.Sprintf(" AND email = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id DESC"

	users := []User{}
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *postgresRepository) FindByID(ctx context.Context, id string) (*User, error) {
	n, ok := persistence.SerialID(id)
	if !ok {
		return nil, nil
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, n)
}

func (r *postgresRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *postgresRepository) Update(ctx context.Context, id string, p Patch) (*User, error) {
	n, ok := persistence.SerialID(id)
	if !ok {
		return nil, nil
	}

	var sets []string
	var args []interface{}
	set := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.Email != nil {
		set("email", *p.Email)
	}
	if p.Role != nil {
		set("role", *p.Role)
	}
	if p.FirstName != nil {
		set("first_name", *p.FirstName)
	}
	if p.LastName != nil {
		set("last_name", *p.LastName)
	}
	if p.PasswordHash != nil {
		set("password_hash", *p.PasswordHash)
	}
	args = append(args, r.clock())
	sets = append(sets, fmt.Sprintf("updated_at = GREATEST($%d, updated_at + INTERVAL '1 microsecond')", len(args)))
	args = append(args, n)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING `+userColumns, strings.Join(sets, ", "), len(args))
	u, err := r.getOne(ctx, query, args...)
	if persistence.IsUniqueViolation(err) {
		return nil, ErrDuplicateEmail
	}
	return u, err
}

func (r *postgresRepository) Delete(ctx context.Context, id string) (*User, error) {
	n, ok := persistence.SerialID(id)
	if !ok {
		return nil, nil
	}
	return r.getOne(ctx, `DELETE FROM users WHERE id = $1 RETURNING `+userColumns, n)
}

func (r *postgresRepository) getOne(ctx context.Context, query string, args ...interface{}) (*User, error) {
	u := &User{}
	err := r.db.GetContext(ctx, u, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}
