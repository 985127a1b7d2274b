package main

import (
	"context"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/canteen42/canteen42-backend/internal/httpx"
	"github.com/canteen42/canteen42-backend/internal/logging"
	"github.com/canteen42/canteen42-backend/internal/metrics"
	"github.com/canteen42/canteen42-backend/internal/middleware"
	"github.com/canteen42/canteen42-backend/internal/modules/admin"
	"github.com/canteen42/canteen42-backend/internal/modules/payment"
	"github.com/canteen42/canteen42-backend/internal/modules/product"
	"github.com/canteen42/canteen42-backend/internal/modules/record"
	"github.com/canteen42/canteen42-backend/internal/modules/user"
	"github.com/canteen42/canteen42-backend/internal/persistence"
)

// app holds everything the router needs. main builds it from config; tests
// build it around a memory gateway.
type app struct {
	env            string
	allowedOrigins []string
	trustedProxies []netip.Prefix
	log            logrus.FieldLogger
	resp           *httpx.Responder
	gw             *persistence.Gateway
	authn          *middleware.Authenticator
	limiter        *middleware.RateLimiter

	users     user.Service
	products  product.Service
	orders    *record.Service
	analytics *record.Service
	email     *record.Service
	discounts *record.Service
	admin     *admin.Service
	payments  *payment.Service
	webhook   http.Handler
}

func newRecordServices(gw *persistence.Gateway, clock persistence.Clock) map[string]*record.Service {
	out := make(map[string]*record.Service, len(record.Kinds))
	for _, k := range record.Kinds {
		out[k.Table] = record.NewService(k, record.NewRepository(gw, k, clock))
	}
	return out
}

type healthBody struct {
	Status string           `json:"status"`
	Mode   persistence.Mode `json:"mode"`
	Env    string           `json:"env"`
}

func (a *app) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	body := healthBody{Status: "ok", Mode: a.gw.Mode(), Env: a.env}
	status := http.StatusOK
	if err := a.gw.Ping(ctx); err != nil {
		a.log.WithError(err).Warn("health check ping failed")
		body.Status, status = "degraded", http.StatusServiceUnavailable
	}
	a.resp.JSON(w, status, body)
}

func (a *app) router() http.Handler {
	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(middleware.TrustedRealIP(a.trustedProxies))
	router.Use(logging.RequestLogger(a.log))
	router.Use(middleware.Recover(a.resp, a.log))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", payment.SignatureHeader},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(metrics.InstrumentHandler)

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		a.resp.Error(w, r, httpx.RouteNotFound())
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		a.resp.Error(w, r, httpx.MethodNotAllowed("Method not allowed"))
	})

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		a.resp.JSON(w, http.StatusOK, map[string]string{"message": "Welcome to CANTEEN42 API"})
	})
	router.Get("/health", a.health)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	authed := chi.Middlewares{a.authn.RequireAuth}
	adminOnly := chi.Middlewares{a.authn.RequireAuth, a.authn.RequireAdmin}

	router.Route("/api", func(r chi.Router) {
		if a.limiter != nil {
			r.Use(a.limiter.Handler)
		}

		user.NewHandler(a.users, a.resp).RegisterRoutes(r, a.authn)
		product.NewHandler(a.products, a.resp).RegisterRoutes(r, a.authn)
		admin.NewHandler(a.admin, a.resp).RegisterRoutes(r, a.authn)
		payment.NewHandler(a.payments, a.webhook, a.resp).RegisterRoutes(r, a.authn)

		record.NewHandler(a.orders, a.resp).RegisterRoutes(r, "/orders",
			record.Policy{Read: authed, Create: authed, Write: authed})
		record.NewHandler(a.analytics, a.resp).RegisterRoutes(r, "/analytics",
			record.Policy{Read: adminOnly, Write: adminOnly})
		record.NewHandler(a.email, a.resp).RegisterRoutes(r, "/email",
			record.Policy{Read: adminOnly, Create: adminOnly, Write: adminOnly})
		record.NewHandler(a.discounts, a.resp).RegisterRoutes(r, "/discounts",
			record.Policy{Create: adminOnly, Write: adminOnly})
	})

	return router
}
