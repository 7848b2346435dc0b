package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/medcloud/tenantgate/internal/api/middleware"
)

// overviewModels are counted on the hospital overview.
var overviewModels = []string{"Patient", "Appointment", "Staff"}

type OverviewHandler struct{}

func NewOverviewHandler() *OverviewHandler {
	return &OverviewHandler{}
}

type overviewResponse struct {
	Success     bool             `json:"success"`
	TenantID    string           `json:"tenantId"`
	ProductArea string           `json:"productArea"`
	Counts      map[string]int64 `json:"counts"`
}

// Overview returns record counts from the caller's own partition.
//
// @Summary      Hospital overview
// @Tags         hospital
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  overviewResponse
// @Failure      401  {object}  map[string]any
// @Failure      403  {object}  map[string]any
// @Router       /api/hospital/overview [get]
func (h *OverviewHandler) Overview(c echo.Context) error {
	scope, ok := middleware.TenantModels(c)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "tenant scope not configured")
	}

	ctx := c.Request().Context()
	counts := make(map[string]int64, len(overviewModels))
	for _, name := range overviewModels {
		m, err := scope.Model(name)
		if err != nil {
			return err
		}
		n, err := m.CountDocuments(ctx, bson.M{})
		if err != nil {
			return err
		}
		counts[name] = n
	}

	resp := overviewResponse{Success: true, TenantID: scope.TenantID(), Counts: counts}
	if sub, ok := middleware.SubscriptionFrom(c); ok {
		resp.ProductArea = string(sub.ProductArea)
	}
	return c.JSON(http.StatusOK, resp)
}
