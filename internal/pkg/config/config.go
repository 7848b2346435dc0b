package config

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Auth      AuthConfig
	Session   SessionConfig
	Mongo     MongoConfig
	Tenant    TenantConfig
	Redis     RedisConfig
	Reconcile ReconcileConfig
}

type AuthConfig struct {
	JWTSecret        string        `env:"JWT_SECRET, required"`
	TokenTTL         time.Duration `env:"TOKEN_TTL,          default=24h"`
	CookieName       string        `env:"AUTH_COOKIE_NAME,   default=authToken"`
	LoginMaxAttempts int64         `env:"LOGIN_MAX_ATTEMPTS, default=10"`
	LoginWindow      time.Duration `env:"LOGIN_WINDOW,       default=15m"`
}

type SessionConfig struct {
	Secret       string        `env:"SESSION_SECRET, required"`
	CookieName   string        `env:"SESSION_COOKIE_NAME,   default=pms_sid"`
	TTL          time.Duration `env:"SESSION_TTL,           default=168h"`
	CookieSecure bool          `env:"SESSION_COOKIE_SECURE, default=false"`
	BridgeArea   string        `env:"SESSION_BRIDGE_AREA,   default=hospital-pms"`
}

// MongoConfig points at the platform catalog database holding accounts,
// staff and subscriptions.
type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=tenantgate"`
}

// TenantConfig controls per-tenant partitions. An empty URI falls back to
// MongoConfig.URI.
type TenantConfig struct {
	URI            string        `env:"TENANT_MONGO_URI"`
	ConnectTimeout time.Duration `env:"TENANT_CONNECT_TIMEOUT, default=10s"`
	MaxPoolSize    uint64        `env:"TENANT_MAX_POOL_SIZE,   default=10"`
	MinPoolSize    uint64        `env:"TENANT_MIN_POOL_SIZE,   default=2"`
}

// RedisConfig backs sessions and login rate limiting. Zero pool size means
// the go-redis default of ten connections per CPU.
type RedisConfig struct {
	Addr         string        `env:"REDIS_ADDR,           default=localhost:6379"`
	Password     string        `env:"REDIS_PASSWORD"`
	DB           int           `env:"REDIS_DB,             default=0"`
	PoolSize     int           `env:"REDIS_POOL_SIZE,      default=0"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS, default=0"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT,   default=5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT,   default=3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT,  default=3s"`
}

// ReconcileConfig enables the periodic subscription expiry sweep. Zero disables it.
type ReconcileConfig struct {
	Interval time.Duration `env:"RECONCILE_INTERVAL, default=0s"`
}

func (c *Config) IsDevelopment() bool { return c.Env == "development" }

// TenantURI returns the server URI tenant partitions are dialed against.
func (c *Config) TenantURI() string {
	if c.Tenant.URI != "" {
		return c.Tenant.URI
	}
	return c.Mongo.URI
}

// Load reads a local .env file when present, then configuration from
// environment variables using go-envconfig.
func Load() *Config {
	_ = godotenv.Load()

	cfg, err := LoadFrom(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFrom resolves configuration from an arbitrary lookuper.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return nil, err
	}
	if cfg.Tenant.MinPoolSize > cfg.Tenant.MaxPoolSize {
		return nil, fmt.Errorf("TENANT_MIN_POOL_SIZE (%d) exceeds TENANT_MAX_POOL_SIZE (%d)",
			cfg.Tenant.MinPoolSize, cfg.Tenant.MaxPoolSize)
	}
	if cfg.Redis.PoolSize > 0 && cfg.Redis.MinIdleConns > cfg.Redis.PoolSize {
		return nil, fmt.Errorf("REDIS_MIN_IDLE_CONNS (%d) exceeds REDIS_POOL_SIZE (%d)",
			cfg.Redis.MinIdleConns, cfg.Redis.PoolSize)
	}
	return &cfg, nil
}
