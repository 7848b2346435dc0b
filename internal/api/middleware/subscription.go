package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medcloud/tenantgate/internal/core/domain"
	"github.com/medcloud/tenantgate/internal/core/ports"
)

// RequireSubscription admits the request only while the caller's account has
// an accessible subscription for area. It must run after Identity.
func RequireSubscription(svc ports.SubscriptionService, area domain.ProductArea) echo.MiddlewareFunc {
	return requireSubscription(svc, func(echo.Context) (domain.ProductArea, error) {
		return area, nil
	})
}

// RequireSubscriptionParam reads the product area from the path parameter name.
func RequireSubscriptionParam(svc ports.SubscriptionService, name string) echo.MiddlewareFunc {
	return requireSubscription(svc, func(c echo.Context) (domain.ProductArea, error) {
		area := domain.ProductArea(c.Param(name))
		if !area.Valid() {
			return "", echo.NewHTTPError(http.StatusNotFound, "Unknown product area.")
		}
		return area, nil
	})
}

func requireSubscription(svc ports.SubscriptionService, areaOf func(echo.Context) (domain.ProductArea, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return domain.NewAuthRequired("", nil)
			}
			area, err := areaOf(c)
			if err != nil {
				return err
			}

			sub, err := svc.Check(c.Request().Context(), id.AccountID(), area)
			if err != nil {
				return err
			}
			c.Set(ctxKeySubscription, sub.Summary())
			return next(c)
		}
	}
}

// SubscriptionFrom returns the summary attached by RequireSubscription.
func SubscriptionFrom(c echo.Context) (domain.SubscriptionSummary, bool) {
	s, ok := c.Get(ctxKeySubscription).(domain.SubscriptionSummary)
	return s, ok
}
