package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Persistence string

const (
	PersistMemory Persistence = "memory"
	PersistRedis  Persistence = "redis"
	PersistSQLite Persistence = "sqlite"
)

type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// DatabaseDSN enables the Postgres catalog and event sequences. Without it
	// the catalog is kept in memory and checkout is disabled.
	DatabaseDSN   string `env:"DATABASE_DSN"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`

	// RabbitMQURL enables the checkout hand-off.
	RabbitMQURL string `env:"RABBITMQ_URL"`

	CartPersistence Persistence   `env:"CART_PERSISTENCE" envDefault:"memory"`
	RedisAddr       string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisCartTTL    time.Duration `env:"REDIS_CART_TTL" envDefault:"168h"`
	SQLitePath      string        `env:"SQLITE_PATH" envDefault:"storefront-carts.db"`
	SQLiteRetention time.Duration `env:"SQLITE_RETENTION" envDefault:"720h"`

	SessionIdleTTL time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
	SessionCookie  string        `env:"SESSION_COOKIE" envDefault:"sf_session"`
	CookieSecure   bool          `env:"COOKIE_SECURE" envDefault:"false"`

	CORSAllowOrigins []string `env:"CORS_ALLOW_ORIGINS" envDefault:"*" envSeparator:","`

	JWTSecret   string `env:"SUPABASE_JWT_SECRET"`
	JWTAudience string `env:"SUPABASE_JWT_AUDIENCE" envDefault:"authenticated"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.CartPersistence = Persistence(strings.ToLower(strings.TrimSpace(string(cfg.CartPersistence))))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.CartPersistence {
	case PersistMemory, PersistRedis, PersistSQLite:
	default:
		return fmt.Errorf("CART_PERSISTENCE must be one of memory, redis, sqlite; got %q", c.CartPersistence)
	}
	if c.CartPersistence == PersistRedis && strings.TrimSpace(c.RedisAddr) == "" {
		return fmt.Errorf("REDIS_ADDR is required when CART_PERSISTENCE=redis")
	}
	if c.CartPersistence == PersistSQLite && strings.TrimSpace(c.SQLitePath) == "" {
		return fmt.Errorf("SQLITE_PATH is required when CART_PERSISTENCE=sqlite")
	}
	if strings.TrimSpace(c.SessionCookie) == "" {
		return fmt.Errorf("SESSION_COOKIE must not be empty")
	}
	return nil
}
