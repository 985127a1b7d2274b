package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/canteen42/canteen42-backend/internal/httpx"
	"github.com/canteen42/canteen42-backend/internal/middleware"
)

type Handler struct {
	service *Service
	resp    *httpx.Responder
}

func NewHandler(service *Service, resp *httpx.Responder) *Handler {
	return &Handler{service: service, resp: resp}
}

func (h *Handler) RegisterRoutes(router chi.Router, authn *middleware.Authenticator) {
	router.Route("/admin", func(r chi.Router) {
		r.Use(authn.RequireAuth, authn.RequireAdmin)
		r.Get("/dashboard", h.dashboard)
		r.Get("/products", h.products)
		r.Get("/users", h.users)
		r.Get("/orders", h.orders)
		r.Get("/analytics", h.analytics)
	})
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusOK, "Admin dashboard statistics", d)
}

func (h *Handler) products(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Products(r.Context())
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusOK, "Admin product management", list)
}

func (h *Handler) users(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Users(r.Context())
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusOK, "Admin user management", list)
}

func (h *Handler) orders(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Orders(r.Context())
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusOK, "Admin order management", list)
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Analytics(r.Context())
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusOK, "Admin analytics", a)
}
