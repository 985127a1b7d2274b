package user

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/canteen42/canteen42-backend/internal/httpx"
	"github.com/canteen42/canteen42-backend/internal/middleware"
)

const minPasswordLen = 8

type service struct {
	repo   Repository
	tokens TokenIssuer
	cost   int
}

// NewService creates a new user service.
func NewService(repo Repository, tokens TokenIssuer) Service {
	return &service{repo: repo, tokens: tokens, cost: bcrypt.DefaultCost}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", httpx.Validation("A valid email is required")
	}
	return email, nil
}

func (s *service) hash(password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", httpx.Validation("Password must be at least %d characters", minPasswordLen)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", httpx.Upstream("Failed to hash password", err)
	}
	return string(h), nil
}

func (s *service) Register(ctx context.Context, in Credentials) (*User, error) {
	return s.Create(ctx, CreateInput{Credentials: in, Role: RoleCustomer})
}

func (s *service) Login(ctx context.Context, in Credentials) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, httpx.Upstream("Failed to log in", err)
	}
	if u == nil || u.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return nil, httpx.Unauthenticated("Invalid credentials")
	}

	token, err := s.tokens.IssueToken(middleware.Identity{UID: u.ID, Email: u.Email, Role: u.Role})
	if err != nil {
		return nil, httpx.Upstream("Failed to log in", err)
	}
	return &Session{Token: token, User: u}, nil
}

func (s *service) Me(ctx context.Context, id *middleware.Identity) (*Profile, error) {
	u, err := s.repo.FindByID(ctx, id.UID)
	if err != nil {
		return nil, httpx.Upstream("Failed to load profile", err)
	}
	return &Profile{Identity: id, User: u}, nil
}

func (s *service) List(ctx context.Context, f Filter) ([]User, error) {
	users, err := s.repo.FindAll(ctx, f)
	if err != nil {
		return nil, httpx.Upstream("Failed to list users", err)
	}
	return users, nil
}

func (s *service) Get(ctx context.Context, id string) (*User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, httpx.Upstream("Failed to load user", err)
	}
	if u == nil {
		return nil, httpx.NotFound("User", id)
	}
	return u, nil
}

func (s *service) Create(ctx context.Context, in CreateInput) (*User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = RoleCustomer
	}
	if !validRole(in.Role) {
		return nil, httpx.Validation("Unknown role %q", in.Role)
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	if in.AuthUID == "" {
		in.AuthUID = uuid.NewString()
	}

	u := &User{
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		AuthUID:      in.AuthUID,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, httpx.Conflict("Email already registered")
		}
		return nil, httpx.Upstream("Failed to create user", err)
	}
	return u, nil
}

func (s *service) Update(ctx context.Context, id string, in UpdateInput) (*User, error) {
	var p Patch
	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return nil, err
		}
		p.Email = &email
	}
	if in.Role != nil {
		if !validRole(*in.Role) {
			return nil, httpx.Validation("Unknown role %q", *in.Role)
		}
		p.Role = in.Role
	}
	if in.Password != nil {
		hash, err := s.hash(*in.Password)
		if err != nil {
			return nil, err
		}
		p.PasswordHash = &hash
	}
	p.FirstName, p.LastName = in.FirstName, in.LastName

	u, err := s.repo.Update(ctx, id, p)
	if errors.Is(err, ErrDuplicateEmail) {
		return nil, httpx.Conflict("Email already registered")
	}
	if err != nil {
		return nil, httpx.Upstream("Failed to update user", err)
	}
	if u == nil {
		return nil, httpx.NotFound("User", id)
	}
	return u, nil
}

func (s *service) Delete(ctx context.Context, id string) (*User, error) {
	u, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, httpx.Upstream("Failed to delete user", err)
	}
	if u == nil {
		return nil, httpx.NotFound("User", id)
	}
	return u, nil
}
