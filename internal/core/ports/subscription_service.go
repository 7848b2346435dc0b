package ports

import (
	"context"

	"github.com/medcloud/tenantgate/internal/core/domain"
)

// SubscriptionView is a subscription together with its accessibility at read time.
type SubscriptionView struct {
	*domain.Subscription
	IsAccessible bool `json:"isAccessible"`
}

// SubscriptionService decides product area access.
type SubscriptionService interface {
	// Check returns the accessible subscription of accountID for area, or a
	// *domain.GateError describing the denial.
	Check(ctx context.Context, accountID string, area domain.ProductArea) (*domain.Subscription, error)
	// List returns every subscription of accountID, expiring overdue ones.
	List(ctx context.Context, accountID string) ([]SubscriptionView, error)
	// Accessible reports whether accountID may use area without producing a denial.
	Accessible(ctx context.Context, accountID string, area domain.ProductArea) (bool, error)
}
