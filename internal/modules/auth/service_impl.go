package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/canteen42/canteen42-backend/internal/middleware"
)

const issuer = "canteen42"

var ErrInvalidToken = errors.New("invalid token")

type service struct {
	key []byte
	ttl time.Duration
}

// NewService creates an HS256 token service signed with key.
func NewService(key []byte, ttl time.Duration) Service {
	return &service{key: key, ttl: ttl}
}

func (s *service) IssueToken(id middleware.Identity) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: id.Email,
		Role:  id.Role,
		StandardClaims: jwt.StandardClaims{
			Subject:   id.UID,
			Issuer:    issuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.ttl).Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *service) VerifyToken(ctx context.Context, raw string) (*middleware.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" || claims.Issuer != issuer {
		return nil, ErrInvalidToken
	}

	return &middleware.Identity{UID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}
