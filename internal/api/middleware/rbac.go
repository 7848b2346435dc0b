package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/medcloud/tenantgate/internal/core/domain"
)

// Authorize admits owners unconditionally and staff whose role is one of
// roles. It must run after Identity.
func Authorize(roles ...string) echo.MiddlewareFunc {
	allowed := append([]string(nil), roles...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return domain.NewAuthRequired("", nil)
			}
			if !id.Authorized(allowed) {
				return domain.NewForbiddenRole(allowed)
			}
			return next(c)
		}
	}
}
