package user

import (
	"time"
)

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// User is an account known to the storefront. AuthUID links it to the identity
// provider; for locally registered accounts it is a generated uuid.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	AuthUID      string    `json:"auth_uid" db:"auth_uid"`
	FirstName    string    `json:"first_name,omitempty" db:"first_name"`
	LastName     string    `json:"last_name,omitempty" db:"last_name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Filter narrows FindAll. Zero values match everything.
type Filter struct {
	Role  string
	Email string
}

// Patch carries the fields of a partial update. Nil fields are left alone.
type Patch struct {
	Email        *string
	Role         *string
	FirstName    *string
	LastName     *string
	PasswordHash *string
}

func (p Patch) empty() bool {
	return p.Email == nil && p.Role == nil && p.FirstName == nil && p.LastName == nil && p.PasswordHash == nil
}

func validRole(role string) bool {
	return role == RoleAdmin || role == RoleCustomer
}
