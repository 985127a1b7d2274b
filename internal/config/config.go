package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Config holds all runtime settings, decoded from the process environment.
type Config struct {
	Env  string `env:"APP_ENV,default=development"`
	Port string `env:"PORT,default=3000"`

	DatabaseURL      string        `env:"DATABASE_URL"`
	DBDriver         string        `env:"DB_DRIVER,default=postgres"`
	DBConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT,default=5s"`
	// Tri-state: empty means "derive from APP_ENV".
	AllowMemoryFallbackRaw string `env:"ALLOW_MEMORY_FALLBACK"`

	MongoURI string `env:"MONGODB_URI"`
	RedisURL string `env:"REDIS_URL"`

	JWTSecret          string        `env:"JWT_SECRET"`
	JWTTTL             time.Duration `env:"JWT_TTL,default=24h"`
	AllowDevAuthBypass bool          `env:"ALLOW_DEV_AUTH_BYPASS,default=false"`
	AuthVerifyTimeout  time.Duration `env:"AUTH_VERIFY_TIMEOUT,default=5s"`

	StripeSecretKey         string        `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret     string        `env:"STRIPE_WEBHOOK_SECRET"`
	WebhookConstructTimeout time.Duration `env:"WEBHOOK_CONSTRUCT_TIMEOUT,default=5s"`
	WebhookDedupTTL         time.Duration `env:"WEBHOOK_DEDUP_TTL,default=24h"`
	WebhookDedupSize        int           `env:"WEBHOOK_DEDUP_SIZE,default=10000"`
	WebhookMaxBytes         int64         `env:"WEBHOOK_MAX_BYTES,default=524288"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`

	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS,default=*"`
	RateLimitRPS       int    `env:"RATE_LIMIT_RPS,default=20"`
	RateLimitBurst     int    `env:"RATE_LIMIT_BURST,default=40"`
	// Comma-separated IPs or CIDRs whose X-Forwarded-For is honoured.
	TrustedProxiesRaw string `env:"TRUSTED_PROXIES"`

	// Set when JWTSecret was generated because none was configured.
	GeneratedJWTSecret bool
}

// Load reads an optional .env file and decodes the environment into a Config.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv decodes the current process environment without touching .env files.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if cfg.JWTSecret == "" && !cfg.IsProduction() {
		cfg.JWTSecret = base64.StdEncoding.EncodeToString(randomBytes(32))
		cfg.GeneratedJWTSecret = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations that must never reach a deployed process.
func (c *Config) Validate() error {
	if c.IsProduction() && c.AllowDevAuthBypass {
		return errors.New("ALLOW_DEV_AUTH_BYPASS cannot be enabled when APP_ENV=production")
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required when APP_ENV=production")
	}
	switch c.DBDriver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want postgres or pgx)", c.DBDriver)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported LOG_FORMAT %q (want text or json)", c.LogFormat)
	}
	if c.AllowMemoryFallbackRaw != "" {
		if _, err := strconv.ParseBool(c.AllowMemoryFallbackRaw); err != nil {
			return fmt.Errorf("invalid ALLOW_MEMORY_FALLBACK %q: %w", c.AllowMemoryFallbackRaw, err)
		}
	}
	if c.WebhookDedupSize <= 0 {
		return fmt.Errorf("WEBHOOK_DEDUP_SIZE must be positive, got %d", c.WebhookDedupSize)
	}
	if c.WebhookMaxBytes <= 0 {
		return fmt.Errorf("WEBHOOK_MAX_BYTES must be positive, got %d", c.WebhookMaxBytes)
	}
	if _, err := parseProxies(c.TrustedProxiesRaw); err != nil {
		return err
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Env == EnvProduction }

// AllowMemoryFallback reports whether the persistence gateway may degrade to the
// in-memory store. Unset, it is on in development and off in production.
func (c *Config) AllowMemoryFallback() bool {
	if c.AllowMemoryFallbackRaw == "" {
		return !c.IsProduction()
	}
	v, _ := strconv.ParseBool(c.AllowMemoryFallbackRaw)
	return v
}

// DevAuthBypass reports whether requests get the fixed development identity.
func (c *Config) DevAuthBypass() bool {
	return c.AllowDevAuthBypass && !c.IsProduction()
}

func parseProxies(raw string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v == "" {
			continue
		}
		if p, err := netip.ParsePrefix(v); err == nil {
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q", v)
		}
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

// TrustedProxies parses TRUSTED_PROXIES. Validate has already rejected bad entries.
func (c *Config) TrustedProxies() []netip.Prefix {
	out, _ := parseProxies(c.TrustedProxiesRaw)
	return out
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return b
}
