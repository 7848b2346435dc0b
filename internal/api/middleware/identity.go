package middleware

import (
	"context"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/medcloud/tenantgate/internal/core/domain"
	"github.com/medcloud/tenantgate/internal/core/ports"
	"github.com/medcloud/tenantgate/internal/core/tenant"
)

const (
	ctxKeyResolution   = "tenantgate.resolution"
	ctxKeyTenant       = "tenantgate.tenant"
	ctxKeySubscription = "tenantgate.subscription"
)

// Identity resolves the caller and attaches the result to the context. A
// session created during resolution is handed to the client before next runs.
func Identity(svc ports.IdentityService, cookies Cookies) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			res, err := svc.Resolve(c.Request().Context(), ports.Credentials{
				TicketCookie:  cookies.TicketCookie(c),
				Authorization: c.Request().Header.Get(echo.HeaderAuthorization),
				SessionCookie: cookies.SessionCookie(c),
			})
			if err != nil {
				return err
			}
			if res.IssuedSession != nil {
				cookies.SetSession(c, res.IssuedSession)
			}
			c.Set(ctxKeyResolution, res)
			return next(c)
		}
	}
}

// IdentityFrom returns the identity attached by Identity.
func IdentityFrom(c echo.Context) (domain.Identity, bool) {
	res, ok := ResolutionFrom(c)
	if !ok {
		return nil, false
	}
	return res.Identity, true
}

// ResolutionFrom returns the full resolution attached by Identity.
func ResolutionFrom(c echo.Context) (*ports.Resolution, bool) {
	res, ok := c.Get(ctxKeyResolution).(*ports.Resolution)
	return res, ok && res != nil && res.Identity != nil
}

// TenantRegistry supplies tenant handles.
type TenantRegistry interface {
	GetConnection(ctx context.Context, tenantID string) (*tenant.Handle, error)
}

// TenantScope gives a handler access to the caller's partition. The handle
// is acquired on first use so requests that never touch tenant data never
// dial.
type TenantScope struct {
	ctx      context.Context
	tenantID string
	registry TenantRegistry

	once   sync.Once
	handle *tenant.Handle
	err    error
}

func (s *TenantScope) TenantID() string { return s.tenantID }

// Model returns the named accessor on the caller's partition.
func (s *TenantScope) Model(name string) (tenant.Model, error) {
	s.once.Do(func() {
		s.handle, s.err = s.registry.GetConnection(s.ctx, s.tenantID)
	})
	if s.err != nil {
		return nil, s.err
	}
	return s.handle.Model(name)
}

// Tenant attaches a TenantScope for the resolved identity's tenant. It must
// run after Identity.
func Tenant(registry TenantRegistry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return domain.NewAuthRequired("", nil)
			}
			c.Set(ctxKeyTenant, &TenantScope{
				ctx:      c.Request().Context(),
				tenantID: id.TenantOf(),
				registry: registry,
			})
			return next(c)
		}
	}
}

// TenantModels returns the scope attached by Tenant.
func TenantModels(c echo.Context) (*TenantScope, bool) {
	s, ok := c.Get(ctxKeyTenant).(*TenantScope)
	return s, ok
}
