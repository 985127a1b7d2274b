package persistence

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert user: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("duplicate key")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestSerialID(t *testing.T) {
	n, ok := SerialID("42")
	assert.True(t, ok)
	assert.EqualValues(t, 42, n)

	for _, bad := range []string{"", "abc", "0", "-1", "1700000000000"} {
		_, ok := SerialID(bad)
		assert.False(t, ok, bad)
	}
}
