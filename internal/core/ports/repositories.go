package ports

import (
	"context"
	"time"

	"github.com/medcloud/tenantgate/internal/core/domain"
)

// AccountRepository reads tenant owner accounts.
type AccountRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
}

// StaffRepository reads staff members. FindByUsername scopes the lookup to
// accountID when it is non-empty and returns domain.ErrAmbiguousStaff when an
// unscoped username matches more than one member.
type StaffRepository interface {
	FindByID(ctx context.Context, id string) (*domain.StaffMember, error)
	FindByUsername(ctx context.Context, username, accountID string) (*domain.StaffMember, error)
}

// SubscriptionRepository persists subscriptions keyed by (account, product area).
type SubscriptionRepository interface {
	FindByAccountAndArea(ctx context.Context, accountID string, area domain.ProductArea) (*domain.Subscription, error)
	ListByAccount(ctx context.Context, accountID string) ([]*domain.Subscription, error)
	// MarkExpired transitions an active subscription to expired and reports
	// whether this call made the change.
	MarkExpired(ctx context.Context, id string, at time.Time) (bool, error)
	// ExpireOverdue expires every active subscription ending at or before now.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// SessionStore holds server sessions with a fixed TTL.
type SessionStore interface {
	Save(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
}

// BridgedSessionStore additionally keeps at most one bridged session per
// (account, product area) so repeated ticket requests reuse it.
type BridgedSessionStore interface {
	SessionStore
	// Bridged returns the live bridged session of accountID for area, or
	// domain.ErrSessionNotFound.
	Bridged(ctx context.Context, accountID string, area domain.ProductArea) (*domain.Session, error)
	// SaveBridged stores sess unless a live bridged session for the same
	// account and area exists. It returns the session holding the slot and
	// whether that session is sess.
	SaveBridged(ctx context.Context, sess *domain.Session) (*domain.Session, bool, error)
}

// LoginLimiter counts login attempts per client key.
type LoginLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}
