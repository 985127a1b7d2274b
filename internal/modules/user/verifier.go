package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/canteen42/canteen42-backend/internal/middleware"
)

// ErrUnknownUser is returned for a validly signed token whose user is gone.
var ErrUnknownUser = errors.New("token subject is not a known user")

type verifier struct {
	tokens middleware.TokenVerifier
	repo   Repository
}

// NewVerifier checks the token signature with tokens, then resolves the
// subject through repo. The stored role wins over the role in the claims, so
// demotions and deletions apply before the token expires.
func NewVerifier(tokens middleware.TokenVerifier, repo Repository) middleware.TokenVerifier {
	return &verifier{tokens: tokens, repo: repo}
}

func (v *verifier) VerifyToken(ctx context.Context, token string) (*middleware.Identity, error) {
	claimed, err := v.tokens.VerifyToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if claimed == nil {
		return nil, ErrUnknownUser
	}
	u, err := v.repo.FindByID(ctx, claimed.UID)
	if err != nil {
		return nil, fmt.Errorf("resolve token subject: %w", err)
	}
	if u == nil {
		return nil, ErrUnknownUser
	}
	return &middleware.Identity{UID: u.ID, Email: u.Email, Role: u.Role}, nil
}
