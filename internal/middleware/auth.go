// Package middleware provides the HTTP middleware that gates API routes.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/canteen42/canteen42-backend/internal/httpx"
)

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

func (i *Identity) IsAdmin() bool { return i != nil && i.Role == RoleAdmin }

// DevIdentity is attached to every authenticated request when the development
// bypass is switched on.
var DevIdentity = Identity{UID: "dev-user-id", Email: "dev@example.com", Role: RoleAdmin}

// TokenVerifier checks a bearer token against the identity provider.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller attached by Authenticator.RequireAuth.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}

// AuthOptions configure an Authenticator.
type AuthOptions struct {
	// DevBypass skips verification and attaches DevIdentity. It must only be
	// set from config.Config.DevAuthBypass, which refuses it in production.
	DevBypass     bool
	VerifyTimeout time.Duration
}

// Authenticator implements bearer-token authentication and role gating.
type Authenticator struct {
	verifier TokenVerifier
	opts     AuthOptions
	resp     *httpx.Responder
	log      logrus.FieldLogger
}

func NewAuthenticator(verifier TokenVerifier, opts AuthOptions, resp *httpx.Responder, log logrus.FieldLogger) *Authenticator {
	if opts.VerifyTimeout <= 0 {
		opts.VerifyTimeout = 5 * time.Second
	}
	return &Authenticator{verifier: verifier, opts: opts, resp: resp, log: log}
}

var errNoIdentity = errors.New("token verifier returned no identity")

// RequireAuth rejects requests without a valid bearer token with 401 before they
// reach next. Failures internal to authentication are reported as 500.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			a.resp.Error(w, r, httpx.Unauthenticated("Unauthorized: No token provided"))
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" {
			a.resp.Error(w, r, httpx.Unauthenticated("Unauthorized: Malformed token"))
			return
		}

		var id *Identity
		if a.opts.DevBypass {
			dev := DevIdentity
			id = &dev
		} else {
			if a.verifier == nil {
				a.resp.Error(w, r, httpx.Upstream("Internal server error", errors.New("no token verifier configured")))
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), a.opts.VerifyTimeout)
			verified, err := a.verifier.VerifyToken(ctx, token)
			cancel()
			if err != nil {
				a.log.WithError(err).WithField("path", r.URL.Path).Warn("token verification failed")
				a.resp.Error(w, r, httpx.Unauthenticated("Unauthorized: Invalid token"))
				return
			}
			if verified == nil {
				a.resp.Error(w, r, httpx.Upstream("Internal server error", errNoIdentity))
				return
			}
			id = verified
		}
		if id.Role == "" {
			id.Role = RoleCustomer
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireAdmin must run after RequireAuth. Authenticated non-admins get 403.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok || !id.IsAdmin() {
			a.resp.Error(w, r, httpx.Forbidden("Forbidden: Admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
