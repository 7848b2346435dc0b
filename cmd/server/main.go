// @title        tenantgate API
// @version      1.0
// @description  Multi-tenant access control: identity, roles and product subscriptions.
// @BasePath     /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/medcloud/tenantgate/internal/api"
	"github.com/medcloud/tenantgate/internal/api/handler"
	"github.com/medcloud/tenantgate/internal/api/middleware"
	"github.com/medcloud/tenantgate/internal/core/credential"
	"github.com/medcloud/tenantgate/internal/core/domain"
	"github.com/medcloud/tenantgate/internal/core/service"
	"github.com/medcloud/tenantgate/internal/core/tenant"
	mongoinfra "github.com/medcloud/tenantgate/internal/infrastructure/db/mongo"
	redisinfra "github.com/medcloud/tenantgate/internal/infrastructure/db/redis"
	"github.com/medcloud/tenantgate/internal/infrastructure/jobs"
	"github.com/medcloud/tenantgate/internal/pkg/config"
	"github.com/medcloud/tenantgate/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "tenantgate",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Control database ---
	mongoClient, db, err := mongoinfra.Connect(ctx, mongoinfra.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	accounts := mongoinfra.NewAccountRepository(db)
	staff := mongoinfra.NewStaffRepository(db)
	subscriptions := mongoinfra.NewSubscriptionRepository(db)
	for name, ensure := range map[string]func(context.Context) error{
		"accounts":      accounts.EnsureIndexes,
		"staff":         staff.EnsureIndexes,
		"subscriptions": subscriptions.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			log.Fatal().Err(err).Str("collection", name).Msg("index creation failed")
		}
	}

	// --- Redis ---
	rdb, err := redisinfra.Connect(ctx, redisinfra.Config{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	sessions := redisinfra.NewSessionStore(rdb, cfg.Session.TTL)
	limiter := redisinfra.NewLoginLimiter(rdb, cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginWindow)

	// --- Tenant partitions ---
	dialer := mongoinfra.NewPartitionDialer(mongoinfra.DialerConfig{
		URI:         cfg.TenantURI(),
		MaxPoolSize: cfg.Tenant.MaxPoolSize,
		MinPoolSize: cfg.Tenant.MinPoolSize,
	}, accounts, logger.Component("partition"))
	registry := tenant.NewRegistry(dialer,
		tenant.WithConnectTimeout(cfg.Tenant.ConnectTimeout),
		tenant.WithLogger(logger.Component("tenant_registry")),
	)

	// --- Core services ---
	verifier := credential.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	signer := credential.NewCookieSigner(cfg.Session.Secret)
	subService := service.NewSubscriptionService(subscriptions, logger.Component("subscriptions"))
	bridge := service.NewSessionBridge(
		domain.ProductArea(cfg.Session.BridgeArea), subService, sessions, signer,
		logger.Component("session_bridge"),
	)
	identity := service.NewIdentityService(logger.Component("identity"),
		service.NewCookieTicketResolver(verifier, accounts),
		service.NewBridgingResolver(service.NewBearerTokenResolver(verifier, accounts), bridge, logger.Component("identity")),
		service.NewSessionResolver(sessions, staff, accounts, signer),
	)
	authService := service.NewAuthService(service.AuthDeps{
		Accounts:      accounts,
		Staff:         staff,
		Subscriptions: subService,
		Sessions:      sessions,
		Limiter:       limiter,
		Verifier:      verifier,
		Signer:        signer,
		Bridge:        bridge,
	}, logger.Component("auth"))

	reconciler := jobs.NewReconciler(subService, cfg.Reconcile.Interval, logger.Component("reconciler"))
	reconciler.Start(ctx)

	// --- HTTP ---
	e := api.NewRouter(api.Deps{
		Log:           log,
		Development:   cfg.IsDevelopment(),
		Identity:      identity,
		Auth:          authService,
		Subscriptions: subService,
		Registry:      registry,
		Cookies: middleware.Cookies{
			TicketName:  cfg.Auth.CookieName,
			SessionName: cfg.Session.CookieName,
			SessionTTL:  cfg.Session.TTL,
			Secure:      cfg.Session.CookieSecure,
			Signer:      signer,
		},
		Checks: []handler.DependencyCheck{
			{Name: "mongodb", Check: func(ctx context.Context) error { return mongoinfra.Ping(ctx, db) }},
			{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		},
	})

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	<-reconciler.Done()
	if err := registry.CloseAll(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("closing tenant connections")
	}
	if err := rdb.Close(); err != nil {
		log.Error().Err(err).Msg("redis close")
	}
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("mongo disconnect")
	}
	log.Info().Msg("shutdown complete")
}
