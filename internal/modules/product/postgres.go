package product

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/canteen42/canteen42-backend/internal/persistence"
)

const productColumns = `id::text, title, description, price, variants, stock, status, created_at, updated_at`

type postgresRepo struct {
	db    *sqlx.DB
	clock persistence.Clock
}

func NewPostgresRepository(db *sqlx.DB, clock persistence.Clock) Repository {
	return &postgresRepo{db: db, clock: clock}
}

func scanProduct(scan func(...interface{}) error) (*Product, error) {
	p := &Product{}
	var variants []byte
	err := scan(&p.ID, &p.Title, &p.Description, &p.Price, &variants,
		&p.Stock, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Variants = []Variant{}
	if len(variants) > 0 {
		if err := json.Unmarshal(variants, &p.Variants); err != nil {
			return nil, fmt.Errorf("decode variants of product %s: %w", p.ID, err)
		}
	}
	return p, nil
}

func (r *postgresRepo) queryOne(ctx context.Context, query string, args ...interface{}) (*Product, error) {
	p, err := scanProduct(r.db.QueryRowxContext(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func encodeVariants(v []Variant) (string, error) {
	if v == nil {
		v = []Variant{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func (r *postgresRepo) Create(ctx context.Context, p *Product) error {
	variants, err := encodeVariants(p.Variants)
	if err != nil {
		return err
	}
	now := r.clock()
	err = r.db.QueryRowxContext(ctx, `
		INSERT INTO products (title, description, price, variants, stock, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $7)
		RETURNING id::text`,
		p.Title, p.Description, p.Price, variants, p.Stock, p.Status, now).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

func (r *postgresRepo) FindAll(ctx context.Context, f Filter) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	args := []interface{}{}
	n := 1
	if f.Status != nil {
		query += fmt.Sprintf(` AND status=$%d`, n)
		args = append(args, *f.Status)
		n++
	}
	if f.MinPrice != nil {
		query += fmt.Sprintf(` AND price>=$%d`, n)
		args = append(args, *f.MinPrice)
		n++
	}
	if f.MaxPrice != nil {
		query += fmt.Sprintf(` AND price<=$%d`, n)
		args = append(args, *f.MaxPrice)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (r *postgresRepo) FindByID(ctx context.Context, id string) (*Product, error) {
	n, ok := persistence.SerialID(id)
	if !ok {
		return nil, nil
	}
	return r.queryOne(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, n)
}

func (r *postgresRepo) Update(ctx context.Context, id string, p Patch) (*Product, error) {
	n, ok := persistence.SerialID(id)
	if !ok {
		return nil, nil
	}

	var sets []string
	var args []interface{}
	set := func(expr string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}
	if p.Title != nil {
		set("title=$%d", *p.Title)
	}
	if p.Description != nil {
		set("description=$%d", *p.Description)
	}
	if p.Price != nil {
		set("price=$%d", *p.Price)
	}
	if p.Variants != nil {
		variants, err := encodeVariants(*p.Variants)
		if err != nil {
			return nil, err
		}
		set("variants=$%d::jsonb", variants)
	}
	if p.Stock != nil {
		set("stock=$%d", *p.Stock)
	}
	if p.Status != nil {
		set("status=$%d", *p.Status)
	}
	set("updated_at=GREATEST($%d, updated_at + INTERVAL '1 microsecond')", r.clock())
	args = append(args, n)

	query := fmt.Sprintf(`UPDATE products SET %s WHERE id=$%d RETURNING `+productColumns,
		strings.Join(sets, ", "), len(args))
	prod, err := r.queryOne(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update product %s: %w", id, err)
	}
	return prod, nil
}

func (r *postgresRepo) Delete(ctx context.Context, id string) (*Product, error) {
	n, ok := persistence.SerialID(id)
	if !ok {
		return nil, nil
	}
	prod, err := r.queryOne(ctx, `DELETE FROM products WHERE id=$1 RETURNING `+productColumns, n)
	if err != nil {
		return nil, fmt.Errorf("delete product %s: %w", id, err)
	}
	return prod, nil
}
