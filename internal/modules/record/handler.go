package record

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/canteen42/canteen42-backend/internal/httpx"
	"github.com/canteen42/canteen42-backend/internal/middleware"
)

// Policy holds the middleware guarding each class of route.
type Policy struct {
	Read   chi.Middlewares
	Create chi.Middlewares
	Write  chi.Middlewares
}

type Handler struct {
	service *Service
	resp    *httpx.Responder
}

func NewHandler(service *Service, resp *httpx.Responder) *Handler {
	return &Handler{service: service, resp: resp}
}

// RegisterRoutes mounts CRUD routes for the handler's Kind under path.
func (h *Handler) RegisterRoutes(router chi.Router, path string, p Policy) {
	router.Route(path, func(r chi.Router) {
		r.With(p.Read...).Get("/", h.list)
		r.With(p.Read...).Get("/{id}", h.get)
		r.With(p.Create...).Post("/", h.create)
		r.With(p.Write...).Put("/{id}", h.update)
		r.With(p.Write...).Delete("/{id}", h.delete)
	})
}

// scope limits non-admin callers to their own records on owned kinds.
func (h *Handler) scope(r *http.Request) Scope {
	if h.service.Kind().OwnerKey == "" {
		return Scope{}
	}
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok || id.IsAdmin() {
		return Scope{}
	}
	return Scope{Owner: id.UID}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	var body json.RawMessage
	if err := httpx.Decode(w, r, &body); err != nil {
		return nil, err
	}
	return body, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	recs, err := h.service.List(r.Context(), ParseFilter(h.service.Kind(), r.URL.Query()), h.scope(r))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusOK, h.service.Kind().Name+" list", recs)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Get(r.Context(), chi.URLParam(r, "id"), h.scope(r))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusOK, h.service.Kind().Name, rec)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	body, err := h.decode(w, r)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	rec, err := h.service.Create(r.Context(), body, h.scope(r))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusCreated, h.service.Kind().Name+" created", rec)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	body, err := h.decode(w, r)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	rec, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), body, h.scope(r))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusOK, h.service.Kind().Name+" updated", rec)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), h.scope(r))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusOK, h.service.Kind().Name+" deleted", rec)
}
