package auth

import (
	"context"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canteen42/canteen42-backend/internal/middleware"
)

var _ middleware.TokenVerifier = NewService(nil, 0)

func TestIssueAndVerify(t *testing.T) {
	svc := NewService([]byte("secret"), time.Hour)
	id := middleware.Identity{UID: "42", Email: "chef@canteen42.test", Role: middleware.RoleAdmin}

	token, err := svc.IssueToken(id)
	require.NoError(t, err)

	got, err := svc.VerifyToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, id, *got)
}

func TestVerify_Rejects(t *testing.T) {
	svc := NewService([]byte("secret"), time.Hour)
	good, err := svc.IssueToken(middleware.Identity{UID: "1", Role: middleware.RoleCustomer})
	require.NoError(t, err)

	expired, err := NewService([]byte("secret"), -time.Minute).IssueToken(middleware.Identity{UID: "1"})
	require.NoError(t, err)

	otherKey, err := NewService([]byte("other"), time.Hour).IssueToken(middleware.Identity{UID: "1"})
	require.NoError(t, err)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		StandardClaims: jwt.StandardClaims{Subject: "1", Issuer: "someone-else", ExpiresAt: time.Now().Add(time.Hour).Unix()},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":        "not-a-jwt",
		"expired":        expired,
		"wrong key":      otherKey,
		"foreign issuer": foreign,
		"tampered":       good + "x",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.VerifyToken(context.Background(), token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerify_HonoursCancelledContext(t *testing.T) {
	svc := NewService([]byte("secret"), time.Hour)
	token, err := svc.IssueToken(middleware.Identity{UID: "1"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.VerifyToken(ctx, token)
	assert.ErrorIs(t, err, context.Canceled)
}
