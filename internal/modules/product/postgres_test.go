package product

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canteen42/canteen42-backend/internal/persistence"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var productCols = []string{"id", "title", "description", "price", "variants", "stock", "status", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	clock := persistence.Clock(func() time.Time { return fixedNow })
	return NewRepository(persistence.NewRelationalGateway(sqlx.NewDb(db, "postgres")), clock), mock
}

func TestPostgres_Create(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO products")).
		WithArgs("Ramen", "", "12.5", "[]", 0, StatusInactive, fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("1"))

	p := &Product{Title: "Ramen", Price: decimal.RequireFromString("12.5"), Status: StatusInactive}
	require.NoError(t, repo.Create(context.Background(), p))

	assert.Equal(t, "1", p.ID)
	assert.Equal(t, fixedNow, p.CreatedAt)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindAllBuildsPredicates(t *testing.T) {
	repo, mock := newMockRepo(t)
	active := StatusActive
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE 1=1 AND status=$1 AND price>=$2 AND price<=$3 ORDER BY created_at DESC")).
		WithArgs(StatusActive, "10", "30").
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow("2", "Udon", "", "25.00", []byte(`[{"name":"Large","sku":"U-L"}]`), 3, "active", fixedNow, fixedNow).
			AddRow("1", "Soba", "", "10.00", []byte(`[]`), 0, "active", fixedNow, fixedNow))

	lo, hi := decimal.NewFromInt(10), decimal.NewFromInt(30)
	got, err := repo.FindAll(context.Background(), Filter{Status: &active, MinPrice: &lo, MaxPrice: &hi})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []Variant{{Name: "Large", SKU: "U-L"}}, got[0].Variants)
	assert.Equal(t, []Variant{}, got[1].Variants)
	assert.Equal(t, "25.00", got[0].Price.StringFixed(2))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindAllWithoutFilters(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE 1=1 ORDER BY")).
		WithArgs().
		WillReturnRows(sqlmock.NewRows(productCols))

	got, err := repo.FindAll(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, []Product{}, got)
}

func TestPostgres_FindByIDMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id=$1")).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(productCols))

	p, err := repo.FindByID(context.Background(), "9")
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = repo.FindByID(context.Background(), "not-a-number")
	require.NoError(t, err)
	assert.Nil(t, p)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdatePriceOnly(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(
		"UPDATE products SET price=$1, updated_at=GREATEST($2, updated_at + INTERVAL '1 microsecond') WHERE id=$3 RETURNING")).
		WithArgs("5", fixedNow, int64(4)).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow("4", "Curry", "", "5.00", []byte(`[]`), 4, "inactive", fixedNow.Add(-time.Hour), fixedNow))

	price := decimal.NewFromInt(5)
	p, err := repo.Update(context.Background(), "4", Patch{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "Curry", p.Title)
	assert.True(t, p.UpdatedAt.After(p.CreatedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("UPDATE products SET").WillReturnRows(sqlmock.NewRows(productCols))

	stock := 1
	p, err := repo.Update(context.Background(), "4", Patch{Stock: &stock})
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestPostgres_Delete(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM products WHERE id=$1 RETURNING")).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow("4", "Curry", "", "9.90", []byte(`[]`), 4, "active", fixedNow, fixedNow))

	p, err := repo.Delete(context.Background(), "4")
	require.NoError(t, err)
	assert.Equal(t, "4", p.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
