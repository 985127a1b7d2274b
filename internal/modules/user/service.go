package user

import (
	"context"

	"github.com/canteen42/canteen42-backend/internal/middleware"
)

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	IssueToken(id middleware.Identity) (string, error)
}

// Service defines the interface for user-related business logic. Errors are
// *httpx.Error values carrying their HTTP classification.
type Service interface {
	Register(ctx context.Context, in Credentials) (*User, error)
	Login(ctx context.Context, in Credentials) (*Session, error)
	Me(ctx context.Context, id *middleware.Identity) (*Profile, error)

	List(ctx context.Context, f Filter) ([]User, error)
	Get(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, in CreateInput) (*User, error)
	Update(ctx context.Context, id string, in UpdateInput) (*User, error)
	Delete(ctx context.Context, id string) (*User, error)
}

type Credentials struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// CreateInput is an admin-created account; Role defaults to customer.
type CreateInput struct {
	Credentials
	Role    string `json:"role"`
	AuthUID string `json:"auth_uid"`
}

type UpdateInput struct {
	Email     *string `json:"email"`
	Password  *string `json:"password"`
	Role      *string `json:"role"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

type Session struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Profile is the caller's identity plus the stored account, when there is one.
type Profile struct {
	Identity *middleware.Identity `json:"identity"`
	User     *User                `json:"user,omitempty"`
}
