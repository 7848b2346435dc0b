package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":     "jwt",
		"SESSION_SECRET": "sess",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" || !cfg.IsDevelopment() {
		t.Errorf("unexpected server defaults: port=%q env=%q", cfg.Port, cfg.Env)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour || cfg.Auth.CookieName != "authToken" {
		t.Errorf("unexpected auth defaults: %+v", cfg.Auth)
	}
	if cfg.Auth.LoginMaxAttempts != 10 || cfg.Auth.LoginWindow != 15*time.Minute {
		t.Errorf("unexpected limiter defaults: %+v", cfg.Auth)
	}
	if cfg.Session.TTL != 7*24*time.Hour || cfg.Session.BridgeArea != "hospital-pms" {
		t.Errorf("unexpected session defaults: %+v", cfg.Session)
	}
	if cfg.Tenant.ConnectTimeout != 10*time.Second {
		t.Errorf("unexpected connect timeout: %s", cfg.Tenant.ConnectTimeout)
	}
	if cfg.Reconcile.Interval != 0 {
		t.Errorf("reconciler should be disabled by default")
	}
	if cfg.TenantURI() != cfg.Mongo.URI {
		t.Errorf("tenant uri should fall back to MONGO_URI")
	}
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":         "jwt",
		"SESSION_SECRET":     "sess",
		"ENV":                "production",
		"TENANT_MONGO_URI":   "mongodb://tenants:27017",
		"RECONCILE_INTERVAL": "5m",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.IsDevelopment() {
		t.Errorf("expected production")
	}
	if cfg.TenantURI() != "mongodb://tenants:27017" {
		t.Errorf("unexpected tenant uri %q", cfg.TenantURI())
	}
	if cfg.Reconcile.Interval != 5*time.Minute {
		t.Errorf("unexpected reconcile interval %s", cfg.Reconcile.Interval)
	}
}

func TestLoadFrom_MissingSecrets(t *testing.T) {
	_, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{}))
	if err == nil {
		t.Fatal("expected an error when JWT_SECRET and SESSION_SECRET are missing")
	}
}

func TestLoadFrom_PoolBounds(t *testing.T) {
	_, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":           "jwt",
		"SESSION_SECRET":       "sess",
		"TENANT_MAX_POOL_SIZE": "2",
		"TENANT_MIN_POOL_SIZE": "5",
	}))
	if err == nil {
		t.Fatal("expected an error when min pool size exceeds max")
	}
}

func TestLoadFrom_Redis(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":           "jwt",
		"SESSION_SECRET":       "sess",
		"REDIS_POOL_SIZE":      "20",
		"REDIS_MIN_IDLE_CONNS": "4",
		"REDIS_READ_TIMEOUT":   "500ms",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Redis.PoolSize != 20 || cfg.Redis.MinIdleConns != 4 {
		t.Errorf("unexpected pool settings: %+v", cfg.Redis)
	}
	if cfg.Redis.ReadTimeout != 500*time.Millisecond || cfg.Redis.DialTimeout != 5*time.Second {
		t.Errorf("unexpected timeouts: %+v", cfg.Redis)
	}

	_, err = LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":           "jwt",
		"SESSION_SECRET":       "sess",
		"REDIS_POOL_SIZE":      "2",
		"REDIS_MIN_IDLE_CONNS": "3",
	}))
	if err == nil {
		t.Fatal("expected an error when idle connections exceed the pool")
	}
}
