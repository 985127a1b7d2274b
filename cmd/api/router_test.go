package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canteen42/canteen42-backend/internal/httpx"
	"github.com/canteen42/canteen42-backend/internal/middleware"
	"github.com/canteen42/canteen42-backend/internal/modules/admin"
	"github.com/canteen42/canteen42-backend/internal/modules/auth"
	"github.com/canteen42/canteen42-backend/internal/modules/payment"
	"github.com/canteen42/canteen42-backend/internal/modules/product"
	"github.com/canteen42/canteen42-backend/internal/modules/record"
	"github.com/canteen42/canteen42-backend/internal/modules/user"
	"github.com/canteen42/canteen42-backend/internal/persistence"
)

type testServer struct {
	handler http.Handler
	tokens  auth.Service
	users   user.Service
	orders  *record.Service
}

func newTestServer(t *testing.T, opts ...func(*app)) *testServer {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	resp := httpx.NewResponder(log, false)
	gw := persistence.NewMemoryGateway()
	clock := persistence.Clock(persistence.SystemClock)

	tokens := auth.NewService([]byte("router-test-secret"), time.Hour)
	userRepo := user.NewRepository(gw, clock)
	users := user.NewService(userRepo, tokens)
	products := product.NewService(product.NewRepository(gw, clock))
	records := newRecordServices(gw, clock)
	orders := records[record.Orders.Table]

	a := &app{
		env:            "test",
		allowedOrigins: []string{"*"},
		log:            log,
		resp:           resp,
		gw:             gw,
		authn:          middleware.NewAuthenticator(user.NewVerifier(tokens, userRepo), middleware.AuthOptions{}, resp, log),
		users:          users,
		products:       products,
		orders:         orders,
		analytics:      records[record.Analytics.Table],
		email:          records[record.EmailTemplates.Table],
		discounts:      records[record.Discounts.Table],
		admin:          admin.NewService(products, users, orders, records[record.Analytics.Table]),
		payments:       payment.NewService(nil),
		webhook: payment.NewWebhookHandler(payment.WebhookOptions{Secret: "whsec_test"},
			payment.StripeConstructor(), payment.NewMemoryDedup(10, time.Hour), nil,
			&payment.Dispatcher{Orders: orders, Log: log}, resp, log),
	}
	for _, opt := range opts {
		opt(a)
	}
	return &testServer{handler: a.router(), tokens: tokens, users: users, orders: orders}
}

// account stores a user with role and returns its id and a bearer token.
func (s *testServer) account(t *testing.T, name, role string) (string, string) {
	t.Helper()
	u, err := s.users.Create(context.Background(), user.CreateInput{
		Credentials: user.Credentials{Email: name + "@canteen42.test", Password: "s3cret-pass"},
		Role:        role,
	})
	require.NoError(t, err)
	tok, err := s.tokens.IssueToken(middleware.Identity{UID: u.ID, Email: u.Email, Role: role})
	require.NoError(t, err)
	return u.ID, tok
}

func (s *testServer) serve(req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	var out map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.serve(req)
}

func TestRouter_WelcomeAndHealth(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to CANTEEN42 API", body["message"])

	rec, body = s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "memory", body["mode"])
	assert.Equal(t, "test", body["env"])

	rec, _ = s.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_UnknownRoutesCarryMessage(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodGet, "/api/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", body["message"])
	assert.Equal(t, false, body["success"])

	rec, body = s.do(t, http.MethodDelete, "/", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", body["message"])
}

func TestRouter_ProtectedRoutesRejectBeforeHandler(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodPost, "/api/orders", "", `{"total":"10.00"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized: No token provided", body["message"])

	rec, _ = s.do(t, http.MethodGet, "/api/admin/dashboard", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	all, err := s.orders.List(t.Context(), record.Filter{}, record.Scope{})
	require.NoError(t, err)
	assert.Empty(t, all, "rejected request must not reach the handler")
}

func TestRouter_AdminGate(t *testing.T) {
	s := newTestServer(t)
	_, customer := s.account(t, "cust", middleware.RoleCustomer)
	_, adm := s.account(t, "boss", middleware.RoleAdmin)

	rec, body := s.do(t, http.MethodPost, "/api/products", customer, `{"title":"Ramen","price":"9.50"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden: Admin access required", body["message"])

	rec, _ = s.do(t, http.MethodPost, "/api/products", adm, `{"title":"Ramen","price":"9.50"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, body = s.do(t, http.MethodGet, "/api/products", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 1)

	rec, _ = s.do(t, http.MethodGet, "/api/admin/dashboard", customer, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = s.do(t, http.MethodGet, "/api/admin/dashboard", adm, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_DemotedOrDeletedAdminLosesAccess(t *testing.T) {
	s := newTestServer(t)
	_, root := s.account(t, "root", middleware.RoleAdmin)
	opsID, ops := s.account(t, "ops", middleware.RoleAdmin)

	rec, _ := s.do(t, http.MethodGet, "/api/admin/users", ops, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodPut, "/api/users/"+opsID, root, `{"role":"customer"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, http.MethodGet, "/api/admin/users", ops, "")
	assert.Equal(t, http.StatusForbidden, rec.Code, "token still claims admin")

	rec, _ = s.do(t, http.MethodDelete, "/api/users/"+opsID, root, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec, body := s.do(t, http.MethodGet, "/api/orders", ops, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized: Invalid token", body["message"])
}

func TestRouter_OrdersAreOwnerScoped(t *testing.T) {
	s := newTestServer(t)
	aliceID, alice := s.account(t, "alice", middleware.RoleCustomer)
	_, bob := s.account(t, "bob", middleware.RoleCustomer)
	_, adm := s.account(t, "boss", middleware.RoleAdmin)

	rec, body := s.do(t, http.MethodPost, "/api/orders", alice, `{"total":"12.00","user_id":"mallory"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := body["data"].(map[string]interface{})
	id := created["id"].(string)
	assert.Equal(t, aliceID, created["data"].(map[string]interface{})["user_id"])

	rec, _ = s.do(t, http.MethodGet, "/api/orders/"+id, bob, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, body = s.do(t, http.MethodGet, "/api/orders", bob, "")
	assert.Empty(t, body["data"])

	_, body = s.do(t, http.MethodGet, "/api/orders", adm, "")
	assert.Len(t, body["data"], 1)
}

func TestRouter_AnalyticsIngestIsPublic(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/api/analytics", "", `{"type":"visit"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/analytics", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func loginStatuses(s *testServer, n int) map[int]int {
	codes := map[int]int{}
	for i := 0; i < n; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/users/login", strings.NewReader(`{"email":"x@y.z","password":"wrong-pass"}`))
		req.Header.Set("X-Forwarded-For", netip.AddrFrom4([4]byte{198, 51, 100, byte(i + 1)}).String())
		rec, _ := s.serve(req)
		codes[rec.Code]++
	}
	return codes
}

func TestRouter_RateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	limited := func(a *app) { a.limiter = middleware.NewRateLimiter(1, 1, a.resp) }

	s := newTestServer(t, limited)
	codes := loginStatuses(s, 20)
	assert.Equal(t, 1, codes[http.StatusUnauthorized]+codes[http.StatusBadRequest])
	assert.Equal(t, 19, codes[http.StatusTooManyRequests])

	// Behind a trusted proxy each forwarded client gets its own bucket.
	s = newTestServer(t, limited, func(a *app) {
		a.trustedProxies = []netip.Prefix{netip.MustParsePrefix("192.0.2.1/32")}
	})
	codes = loginStatuses(s, 20)
	assert.Zero(t, codes[http.StatusTooManyRequests])
}

func TestRouter_Payments(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodPost, "/api/webhook/stripe", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, body["error"])

	rec, _ = s.do(t, http.MethodPost, "/api/payments/intents", "", `{"amount":100}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	_, alice := s.account(t, "alice", middleware.RoleCustomer)
	rec, _ = s.do(t, http.MethodPost, "/api/payments/intents", alice, `{"amount":100}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_RegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/api/users/register", "", `{"email":"Pat@Canteen42.test","password":"s3cret-pass"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := s.do(t, http.MethodPost, "/api/users/login", "", `{"email":"pat@canteen42.test","password":"s3cret-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	tok := body["data"].(map[string]interface{})["token"].(string)

	rec, body = s.do(t, http.MethodGet, "/api/users/me", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	me := body["data"].(map[string]interface{})
	assert.Equal(t, "pat@canteen42.test", me["user"].(map[string]interface{})["email"])
}

func TestSchemaCoversEveryTable(t *testing.T) {
	stmts := schema()
	assert.Len(t, stmts, 2+len(record.Kinds))
	for _, k := range record.Kinds {
		assert.Contains(t, strings.Join(stmts, "\n"), k.Table)
	}
}
