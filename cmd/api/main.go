package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/canteen42/canteen42-backend/internal/config"
	"github.com/canteen42/canteen42-backend/internal/docstore"
	"github.com/canteen42/canteen42-backend/internal/httpx"
	"github.com/canteen42/canteen42-backend/internal/logging"
	"github.com/canteen42/canteen42-backend/internal/metrics"
	"github.com/canteen42/canteen42-backend/internal/middleware"
	"github.com/canteen42/canteen42-backend/internal/modules/admin"
	"github.com/canteen42/canteen42-backend/internal/modules/auth"
	"github.com/canteen42/canteen42-backend/internal/modules/payment"
	"github.com/canteen42/canteen42-backend/internal/modules/product"
	"github.com/canteen42/canteen42-backend/internal/modules/record"
	"github.com/canteen42/canteen42-backend/internal/modules/user"
	"github.com/canteen42/canteen42-backend/internal/persistence"
)

const shutdownDrain = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.GeneratedJWTSecret {
		log.Warn("JWT_SECRET not set; generated a random secret, tokens will not survive a restart")
	}
	if cfg.DevAuthBypass() {
		log.Warn("development auth bypass is on; every authenticated request acts as the dev admin")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func schema() []string {
	stmts := []string{user.Schema, product.Schema}
	for _, k := range record.Kinds {
		stmts = append(stmts, record.Schema(k))
	}
	return stmts
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	resp := httpx.NewResponder(log, cfg.IsProduction())

	// ── Persistence ─────────────────────────────────────────
	gw, err := persistence.Open(ctx, persistence.Options{
		Driver:         cfg.DBDriver,
		DSN:            cfg.DatabaseURL,
		ConnectTimeout: cfg.DBConnectTimeout,
		AllowFallback:  cfg.AllowMemoryFallback(),
		Schema:         schema(),
	}, log)
	if err != nil {
		return err
	}
	defer gw.Close()
	metrics.SetPersistenceMode(string(gw.Mode()))
	log.WithField("mode", gw.Mode()).Info("persistence ready")

	events := payment.NopRepository()
	if cfg.MongoURI != "" {
		store, err := docstore.Connect(ctx, cfg.MongoURI, cfg.DBConnectTimeout)
		if err != nil {
			return err
		}
		defer store.Close(context.Background())
		events = payment.NewMongoRepository(store.DB)
		log.WithField("database", store.DB.Name()).Info("document store connected")
	}

	dedup, closeDedup := newDedup(ctx, cfg, log)
	defer closeDedup()

	// ── Identity ────────────────────────────────────────────
	tokens := auth.NewService([]byte(cfg.JWTSecret), cfg.JWTTTL)
	clock := persistence.Clock(persistence.SystemClock)
	userRepo := user.NewRepository(gw, clock)
	authn := middleware.NewAuthenticator(user.NewVerifier(tokens, userRepo), middleware.AuthOptions{
		DevBypass:     cfg.DevAuthBypass(),
		VerifyTimeout: cfg.AuthVerifyTimeout,
	}, resp, log)

	// ── Domain ──────────────────────────────────────────────
	users := user.NewService(userRepo, tokens)
	products := product.NewService(product.NewRepository(gw, clock))
	records := newRecordServices(gw, clock)
	orders := records[record.Orders.Table]
	analytics := records[record.Analytics.Table]

	var gateway payment.Gateway
	if cfg.StripeSecretKey != "" {
		gateway = payment.NewStripeGateway(cfg.StripeSecretKey)
	} else {
		log.Warn("STRIPE_SECRET_KEY not set; payment routes will return 503")
	}
	webhook := payment.NewWebhookHandler(payment.WebhookOptions{
		Secret:           cfg.StripeWebhookSecret,
		ConstructTimeout: cfg.WebhookConstructTimeout,
		MaxPayloadBytes:  cfg.WebhookMaxBytes,
		Production:       cfg.IsProduction(),
	}, payment.StripeConstructor(), dedup, events, &payment.Dispatcher{Orders: orders, Log: log}, resp, log)

	a := &app{
		env:            cfg.Env,
		allowedOrigins: cfg.AllowedOrigins(),
		trustedProxies: cfg.TrustedProxies(),
		log:            log,
		resp:           resp,
		gw:             gw,
		authn:          authn,
		users:          users,
		products:       products,
		orders:         orders,
		analytics:      analytics,
		email:          records[record.EmailTemplates.Table],
		discounts:      records[record.Discounts.Table],
		admin:          admin.NewService(products, users, orders, analytics),
		payments:       payment.NewService(gateway),
		webhook:        webhook,
	}
	if cfg.RateLimitRPS > 0 {
		a.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, resp)
		a.limiter.StartCleanup(ctx, 5*time.Minute)
	}

	// ── Server ──────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Port, "env": cfg.Env}).Info("CANTEEN42 API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownDrain)
	defer cancel()
	return srv.Shutdown(sctx)
}

// newDedup shares webhook claims through Redis when REDIS_URL is set and
// reachable, and keeps them in process otherwise. The returned func closes
// whatever connection was opened.
func newDedup(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (payment.Dedup, func()) {
	memory := func() (payment.Dedup, func()) {
		return payment.NewMemoryDedup(cfg.WebhookDedupSize, cfg.WebhookDedupTTL), func() {}
	}
	if cfg.RedisURL == "" {
		return memory()
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.WithError(err).Warn("invalid REDIS_URL; using in-memory webhook dedup")
		return memory()
	}
	rdb := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, cfg.DBConnectTimeout)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		log.WithError(err).Warn("redis unreachable; using in-memory webhook dedup")
		return memory()
	}
	log.Info("webhook dedup backed by redis")
	return payment.NewRedisDedup(rdb, cfg.WebhookDedupTTL), func() {
		if err := rdb.Close(); err != nil {
			log.WithError(err).Warn("close redis")
		}
	}
}
