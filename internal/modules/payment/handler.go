package payment

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/canteen42/canteen42-backend/internal/httpx"
	"github.com/canteen42/canteen42-backend/internal/middleware"
)

type Handler struct {
	service *Service
	webhook http.Handler
	resp    *httpx.Responder
}

func NewHandler(service *Service, webhook http.Handler, resp *httpx.Responder) *Handler {
	return &Handler{service: service, webhook: webhook, resp: resp}
}

// RegisterRoutes mounts the payment routes. The webhook is authenticated by its
// signature, not by a bearer token.
func (h *Handler) RegisterRoutes(router chi.Router, authn *middleware.Authenticator) {
	router.Route("/payments", func(r chi.Router) {
		r.Use(authn.RequireAuth)
		r.Post("/intents", h.createIntent)
		r.Post("/checkout", h.createCheckout)
	})
	router.Method(http.MethodPost, "/webhook/stripe", h.webhook)
}

// withPayer stamps the caller as metadata.user_id, replacing any value sent by
// the client. The webhook only settles orders owned by that user.
func withPayer(r *http.Request, m map[string]string) map[string]string {
	if m == nil {
		m = map[string]string{}
	}
	delete(m, "user_id")
	if id, ok := middleware.IdentityFrom(r.Context()); ok {
		m["user_id"] = id.UID
	}
	return m
}

func (h *Handler) createIntent(w http.ResponseWriter, r *http.Request) {
	var req IntentRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	req.Metadata = withPayer(r, req.Metadata)
	intent, err := h.service.CreateIntent(r.Context(), req)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusCreated, "Payment intent created", intent)
}

func (h *Handler) createCheckout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	req.Metadata = withPayer(r, req.Metadata)
	checkout, err := h.service.CreateCheckout(r.Context(), req)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusCreated, "Checkout session created", checkout)
}
