package user

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/canteen42/canteen42-backend/internal/httpx"
	"github.com/canteen42/canteen42-backend/internal/middleware"
)

var errNoIdentity = errors.New("authenticated request has no identity")

type Handler struct {
	service Service
	resp    *httpx.Responder
}

func NewHandler(service Service, resp *httpx.Responder) *Handler {
	return &Handler{service: service, resp: resp}
}

func (h *Handler) RegisterRoutes(router chi.Router, authn *middleware.Authenticator) {
	router.Route("/users", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.With(authn.RequireAuth).Get("/me", h.me)

		r.Group(func(r chi.Router) {
			r.Use(authn.RequireAuth, authn.RequireAdmin)
			r.Get("/", h.list)
			r.Post("/", h.create)
			r.Get("/{id}", h.get)
			r.Put("/{id}", h.update)
			r.Delete("/{id}", h.delete)
		})
	})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req Credentials
	if err := httpx.Decode(w, r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	u, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusCreated, "User registered", u)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req Credentials
	if err := httpx.Decode(w, r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	session, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusOK, "Logged in", session)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		h.resp.Error(w, r, httpx.Upstream("Internal server error", errNoIdentity))
		return
	}
	profile, err := h.service.Me(r.Context(), id)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusOK, "Current user", profile)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := Filter{Role: q.Get("role"), Email: q.Get("email")}
	if f.Role != "" && !validRole(f.Role) {
		h.resp.Error(w, r, httpx.Validation("Unknown role %q", f.Role))
		return
	}
	users, err := h.service.List(r.Context(), f)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusOK, "Users", users)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusOK, "User", u)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateInput
	if err := httpx.Decode(w, r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	u, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusCreated, "User created", u)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req UpdateInput
	if err := httpx.Decode(w, r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	u, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusOK, "User updated", u)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.Data(w, http.StatusOK, "User deleted", u)
}
