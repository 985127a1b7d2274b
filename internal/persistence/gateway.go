// Package persistence selects the storage backend for the process: a relational
// database when one is reachable at startup, or a process-local in-memory store
// when fallback is allowed. The choice is made once by Open and never revisited.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/lib/pq"              // registers the "postgres" driver
)

// Mode identifies the backend a Gateway was opened with.
type Mode string

const (
	ModeRelational Mode = "relational"
	ModeMemory     Mode = "memory"
)

// Connector opens and pings a database. It must honour ctx's deadline.
type Connector func(ctx context.Context, driver, dsn string) (*sqlx.DB, error)

// Options configure Open.
type Options struct {
	Driver         string
	DSN            string
	ConnectTimeout time.Duration
	// AllowFallback permits degrading to the in-memory store when the
	// relational backend cannot be reached or initialised.
	AllowFallback bool
	// Schema holds idempotent DDL statements run before traffic is accepted.
	Schema    []string
	Connector Connector
}

// Gateway is the process-wide persistence handle. Its mode is fixed at
// construction, so it can be shared across goroutines without locking.
type Gateway struct {
	mode Mode
	db   *sqlx.DB
	mem  *MemoryStore
}

// NewRelationalGateway wraps an already-open database.
func NewRelationalGateway(db *sqlx.DB) *Gateway {
	return &Gateway{mode: ModeRelational, db: db}
}

// NewMemoryGateway returns a gateway backed by a fresh in-memory store.
func NewMemoryGateway() *Gateway {
	return &Gateway{mode: ModeMemory, mem: NewMemoryStore()}
}

// Open makes a single bounded attempt to reach the relational backend and
// initialise its schema. On failure it returns an in-memory gateway when
// opts.AllowFallback is set, otherwise the error.
func Open(ctx context.Context, opts Options, log logrus.FieldLogger) (*Gateway, error) {
	connect := opts.Connector
	if connect == nil {
		connect = DefaultConnector
	}
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	db, err := openRelational(ctx, connect, opts, timeout)
	if err == nil {
		log.WithField("driver", opts.Driver).Info("relational backend connected")
		return NewRelationalGateway(db), nil
	}

	if !opts.AllowFallback {
		return nil, err
	}
	log.WithError(err).Warn("relational backend unavailable; running in degraded mode on the in-memory store, data will not survive a restart")
	return NewMemoryGateway(), nil
}

func openRelational(ctx context.Context, connect Connector, opts Options, timeout time.Duration) (*sqlx.DB, error) {
	if strings.TrimSpace(opts.DSN) == "" {
		return nil, errors.New("connect relational backend: DATABASE_URL is not set")
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	db, err := connect(cctx, opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect relational backend: %w", err)
	}

	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := ensureSchema(sctx, db, opts.Schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// DefaultConnector opens a pooled connection with sqlx and pings it once.
func DefaultConnector(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sqlx.DB, stmts []string) error {
	for _, stmt := range stmts {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initialise schema: %w", err)
		}
	}
	return nil
}

func (g *Gateway) Mode() Mode { return g.mode }

// DB returns the relational handle, or nil in memory mode.
func (g *Gateway) DB() *sqlx.DB { return g.db }

// Memory returns the in-memory store, or nil in relational mode.
func (g *Gateway) Memory() *MemoryStore { return g.mem }

// Ping checks the relational backend. The memory store is always reachable.
func (g *Gateway) Ping(ctx context.Context) error {
	if g.mode == ModeMemory {
		return nil
	}
	return g.db.PingContext(ctx)
}

func (g *Gateway) Close() error {
	if g.db != nil {
		return g.db.Close()
	}
	return nil
}
