package auth

import (
	"context"

	"github.com/dgrijalva/jwt-go"

	"github.com/canteen42/canteen42-backend/internal/middleware"
)

// Claims is the payload carried by tokens issued on login.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.StandardClaims
}

// Service issues and verifies bearer tokens. It satisfies middleware.TokenVerifier.
type Service interface {
	IssueToken(id middleware.Identity) (string, error)
	VerifyToken(ctx context.Context, token string) (*middleware.Identity, error)
}
