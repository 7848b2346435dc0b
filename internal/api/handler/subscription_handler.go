package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medcloud/tenantgate/internal/api/middleware"
	"github.com/medcloud/tenantgate/internal/core/domain"
	"github.com/medcloud/tenantgate/internal/core/ports"
)

type SubscriptionHandler struct {
	subs ports.SubscriptionService
}

func NewSubscriptionHandler(subs ports.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subs: subs}
}

type subscriptionsResponse struct {
	Success bool                     `json:"success"`
	Data    []ports.SubscriptionView `json:"data"`
}

type productAccessResponse struct {
	Success      bool                       `json:"success"`
	Identity     domain.IdentityView        `json:"identity"`
	Subscription domain.SubscriptionSummary `json:"subscription"`
}

// My lists the caller's subscriptions, expiring overdue ones.
//
// @Summary      My subscriptions
// @Tags         subscriptions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  subscriptionsResponse
// @Failure      401  {object}  map[string]any
// @Router       /api/subscriptions/my [get]
func (h *SubscriptionHandler) My(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return domain.NewAuthRequired("", nil)
	}
	views, err := h.subs.List(c.Request().Context(), id.AccountID())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, subscriptionsResponse{Success: true, Data: views})
}

// ProductAccess confirms access to a product area.
//
// @Summary      Product area access
// @Tags         subscriptions
// @Produce      json
// @Security     BearerAuth
// @Param        area  path      string  true  "Product area"  Enums(hospital-pms, pharmacy-pos, lab-reporting, quick-invoice, private-clinic-lite)
// @Success      200   {object}  productAccessResponse
// @Failure      401   {object}  map[string]any
// @Failure      403   {object}  map[string]any
// @Failure      404   {object}  map[string]any
// @Router       /api/products/{area}/access [get]
func (h *SubscriptionHandler) ProductAccess(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return domain.NewAuthRequired("", nil)
	}
	summary, ok := middleware.SubscriptionFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "subscription gate not configured")
	}
	return c.JSON(http.StatusOK, productAccessResponse{
		Success:      true,
		Identity:     domain.Describe(id),
		Subscription: summary,
	})
}
