package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medcloud/tenantgate/internal/core/domain"
	"github.com/medcloud/tenantgate/internal/pkg/metrics"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Success     bool       `json:"success"`
	Message     string     `json:"message"`
	Code        string     `json:"code,omitempty"`
	Action      string     `json:"action,omitempty"`
	ProductSlug string     `json:"productSlug,omitempty"`
	ExpiredAt   *time.Time `json:"expiredAt,omitempty"`
	Detail      string     `json:"detail,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Renders gate denials as 401/403 with their code and client hint.
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client
//     unless development is set.
func NewHTTPErrorHandler(log zerolog.Logger, development bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c, development)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context, development bool) (int, errorResponse) {
	var gate *domain.GateError
	if errors.As(err, &gate) {
		return gateResponse(gate)
	}

	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Message: fmt.Sprintf("%v", he.Message)}
	}

	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{Message: "Invalid credentials"}
	case errors.Is(err, domain.ErrAmbiguousStaff):
		return http.StatusBadRequest, errorResponse{Message: "Username exists in several organizations; specify the account."}
	case errors.Is(err, domain.ErrTooManyAttempts):
		return http.StatusTooManyRequests, errorResponse{Message: "Too many login attempts, please try again later."}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	resp := errorResponse{Message: "Internal server error"}
	if development {
		resp.Detail = err.Error()
	}
	return http.StatusInternalServerError, resp
}

func gateResponse(gate *domain.GateError) (int, errorResponse) {
	status := http.StatusForbidden
	label := gate.Code
	if errors.Is(gate.Kind, domain.ErrAuthRequired) {
		status = http.StatusUnauthorized
		label = "AUTH_REQUIRED"
	}
	metrics.GateDenialsTotal.WithLabelValues(label).Inc()

	return status, errorResponse{
		Message:     gate.Message,
		Code:        gate.Code,
		Action:      gate.Action,
		ProductSlug: string(gate.ProductArea),
		ExpiredAt:   gate.ExpiredAt,
	}
}
