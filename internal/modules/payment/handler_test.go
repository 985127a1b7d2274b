package payment

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canteen42/canteen42-backend/internal/httpx"
	"github.com/canteen42/canteen42-backend/internal/middleware"
)

func TestHandler_StampsPayerOverClientMetadata(t *testing.T) {
	g := &fakeGateway{}
	h := NewHandler(NewService(g), nil, httpx.NewResponder(quietLogger(), false))
	caller := &middleware.Identity{UID: "alice", Role: middleware.RoleCustomer}

	req := httptest.NewRequest(http.MethodPost, "/api/payments/intents",
		strings.NewReader(`{"amount":500,"metadata":{"order_id":"3","user_id":"victim"}}`))
	req = req.WithContext(middleware.WithIdentity(req.Context(), caller))
	rec := httptest.NewRecorder()
	h.createIntent(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "alice", g.intent.Metadata["user_id"])
	assert.Equal(t, "3", g.intent.Metadata["order_id"])

	req = httptest.NewRequest(http.MethodPost, "/api/payments/checkout", strings.NewReader(`{
		"line_items":[{"name":"Bento","unit_amount":900,"quantity":1}],
		"success_url":"https://canteen42.example/ok","cancel_url":"https://canteen42.example/no",
		"metadata":{"user_id":"victim"}}`))
	req = req.WithContext(middleware.WithIdentity(req.Context(), caller))
	rec = httptest.NewRecorder()
	h.createCheckout(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "alice", g.checkout.Metadata["user_id"])
}
