package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthHandler handles GET /health, the liveness probe.
// Returns 200 immediately; confirms the process is alive.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// DependencyCheck is one named readiness probe.
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// TenantStats reports the open tenant partitions.
type TenantStats interface {
	Len() int
}

// HealthDependenciesHandler handles GET /health/ready, the readiness probe.
// Runs every dependency check before declaring the service ready.
type HealthDependenciesHandler struct {
	checks  []DependencyCheck
	tenants TenantStats
}

func NewHealthDependenciesHandler(tenants TenantStats, checks ...DependencyCheck) *HealthDependenciesHandler {
	return &HealthDependenciesHandler{checks: checks, tenants: tenants}
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status           string                      `json:"status"`
	Dependencies     map[string]dependencyStatus `json:"dependencies"`
	TenantPartitions int                         `json:"tenant_partitions"`
}

func (h *HealthDependenciesHandler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	deps := make(map[string]dependencyStatus, len(h.checks))
	healthy := true

	for _, dc := range h.checks {
		if err := dc.Check(ctx); err != nil {
			deps[dc.Name] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
			healthy = false
			continue
		}
		deps[dc.Name] = dependencyStatus{Status: "ok"}
	}

	status := "ok"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	resp := readinessResponse{Status: status, Dependencies: deps}
	if h.tenants != nil {
		resp.TenantPartitions = h.tenants.Len()
	}
	return c.JSON(httpStatus, resp)
}
