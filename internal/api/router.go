package api

import (
	"sync"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/medcloud/tenantgate/internal/api/handler"
	"github.com/medcloud/tenantgate/internal/api/middleware"
	"github.com/medcloud/tenantgate/internal/core/domain"
	"github.com/medcloud/tenantgate/internal/core/ports"

	_ "github.com/medcloud/tenantgate/docs"
)

// Registry is what the router needs from the tenant connection registry.
type Registry interface {
	middleware.TenantRegistry
	handler.TenantStats
}

// Deps carries everything the router wires into handlers and gates.
type Deps struct {
	Log         zerolog.Logger
	Development bool

	Identity      ports.IdentityService
	Auth          ports.AuthService
	Subscriptions ports.SubscriptionService
	Registry      Registry
	Cookies       middleware.Cookies
	Checks        []handler.DependencyCheck
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log, d.Development)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(prometheusMiddleware())

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(d.Auth, d.Subscriptions, d.Identity, d.Cookies)
	subHandler := handler.NewSubscriptionHandler(d.Subscriptions)
	overviewHandler := handler.NewOverviewHandler()

	identity := middleware.Identity(d.Identity, d.Cookies)
	tenantScope := middleware.Tenant(d.Registry)

	// --- Auth routes ---
	auth := e.Group("/api/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/session", authHandler.Session)
	auth.GET("/me", authHandler.Me, identity)

	hospitalAuth := e.Group("/api/hospital/auth")
	hospitalAuth.POST("/login", authHandler.StaffLogin)
	hospitalAuth.POST("/logout", authHandler.StaffLogout)

	// --- Gated routes ---
	e.GET("/api/subscriptions/my", subHandler.My, identity)
	e.GET("/api/products/:area/access", subHandler.ProductAccess,
		identity,
		middleware.RequireSubscriptionParam(d.Subscriptions, "area"),
	)

	hospital := e.Group("/api/hospital", identity, tenantScope)
	hospital.GET("/overview", overviewHandler.Overview,
		middleware.Authorize(string(domain.StaffRoleAdmin), string(domain.StaffRoleDoctor)),
		middleware.RequireSubscription(d.Subscriptions, domain.ProductHospitalPMS),
	)

	// --- Health probes, metrics and docs (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(d.Registry, d.Checks...)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthDepsHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

var (
	promOnce sync.Once
	promMW   echo.MiddlewareFunc
)

// prometheusMiddleware registers the HTTP collectors once per process.
func prometheusMiddleware() echo.MiddlewareFunc {
	promOnce.Do(func() {
		promMW = echoprometheus.NewMiddleware("tenantgate")
	})
	return promMW
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
