package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/canteen42/canteen42-backend/internal/persistence"
)

type postgresRepo struct {
	db    *sqlx.DB
	kind  Kind
	clock persistence.Clock
}

func NewPostgresRepository(db *sqlx.DB, k Kind, clock persistence.Clock) Repository {
	return &postgresRepo{db: db, kind: k, clock: clock}
}

type row struct {
	ID        string    `db:"id"`
	Data      []byte    `db:"data"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r row) record() Record {
	return Record{ID: r.ID, Data: r.Data, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

func (r *postgresRepo) columns() string {
	return `id::text AS id, data, created_at, updated_at`
}

func (r *postgresRepo) getOne(ctx context.Context, query string, args ...interface{}) (*Record, error) {
	var out row
	err := r.db.GetContext(ctx, &out, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.kind.Table, err)
	}
	rec := out.record()
	return &rec, nil
}

func (r *postgresRepo) Create(ctx context.Context, data []byte) (*Record, error) {
	now := r.clock()
	query := fmt.Sprintf(`INSERT INTO %s (data, created_at, updated_at) VALUES ($1::jsonb, $2, $2) RETURNING %s`,
		r.kind.Table, r.columns())
	return r.getOne(ctx, query, string(data), now)
}

func (r *postgresRepo) FindAll(ctx context.Context, f Filter) ([]Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE 1=1`, r.columns(), r.kind.Table)
	var args []interface{}

	keys := make([]string, 0, len(f.Data))
	for k := range f.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, k, f.Data[k])
		query += fmt.Sprintf(` AND data->>$%d = $%d`, len(args)-1, len(args))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", r.kind.Table, err)
	}
	out := make([]Record, 0, len(rows))
	for _, rw := range rows {
		out = append(out, rw.record())
	}
	return out, nil
}

func (r *postgresRepo) FindByID(ctx context.Context, id string) (*Record, error) {
	n, ok := persistence.SerialID(id)
	if !ok {
		return nil, nil
	}
	return r.getOne(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, r.columns(), r.kind.Table), n)
}

func (r *postgresRepo) Update(ctx context.Context, id string, patch []byte) (*Record, error) {
	n, ok := persistence.SerialID(id)
	if !ok {
		return nil, nil
	}
	query := fmt.Sprintf(`UPDATE %s SET data = data || $1::jsonb, updated_at = GREATEST($2, updated_at + INTERVAL '1 microsecond') WHERE id = $3 RETURNING %s`,
		r.kind.Table, r.columns())
	return r.getOne(ctx, query, string(patch), r.clock(), n)
}

func (r *postgresRepo) Delete(ctx context.Context, id string) (*Record, error) {
	n, ok := persistence.SerialID(id)
	if !ok {
		return nil, nil
	}
	return r.getOne(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1 RETURNING %s`, r.kind.Table, r.columns()), n)
}
