package product

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/canteen42/canteen42-backend/internal/httpx"
	"github.com/canteen42/canteen42-backend/internal/middleware"
)

// Handler exposes product HTTP endpoints. Reads are public; writes need an admin.
type Handler struct {
	service Service
	resp    *httpx.Responder
}

func NewHandler(service Service, resp *httpx.Responder) *Handler {
	return &Handler{service: service, resp: resp}
}

func (h *Handler) RegisterRoutes(router chi.Router, authn *middleware.Authenticator) {
	router.Route("/products", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.get)

		r.Group(func(r chi.Router) {
			r.Use(authn.RequireAuth, authn.RequireAdmin)
			r.Post("/", h.create)
			r.Put("/{id}", h.update)
			r.Delete("/{id}", h.delete)
		})
	})
}

// ParseFilter reads status, minPrice and maxPrice from q. Other keys are ignored.
func ParseFilter(q url.Values) (Filter, error) {
	var f Filter
	if v := q.Get("status"); v != "" {
		s := Status(v)
		if !s.Valid() {
			return f, httpx.Validation("Unknown status %q", v)
		}
		f.Status = &s
	}
	price := func(key string) (*decimal.Decimal, error) {
		v := q.Get(key)
		if v == "" {
			return nil, nil
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, httpx.Validation("%s must be a number", key)
		}
		return &d, nil
	}
	var err error
	if f.MinPrice, err = price("minPrice"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = price("maxPrice"); err != nil {
		return f, err
	}
	return f, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	products, err := h.service.List(r.Context(), f)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusOK, "Products", products)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusOK, "Product", p)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	p, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusCreated, "Product created", p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var patch Patch
	if err := httpx.Decode(w, r, &patch); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	p, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusOK, "Product updated", p)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusOK, "Product deleted", p)
}
