package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/medcloud/tenantgate/internal/core/domain"
	"github.com/medcloud/tenantgate/internal/core/ports"
	"github.com/medcloud/tenantgate/internal/pkg/metrics"
)

// SubscriptionService decides whether an account may use a product area.
// Overdue subscriptions are persisted as expired on first read.
type SubscriptionService struct {
	repo ports.SubscriptionRepository
	now  func() time.Time
	log  zerolog.Logger
}

func NewSubscriptionService(repo ports.SubscriptionRepository, log zerolog.Logger) *SubscriptionService {
	return &SubscriptionService{repo: repo, now: time.Now, log: log}
}

// WithClock replaces the time source.
func (s *SubscriptionService) WithClock(now func() time.Time) *SubscriptionService {
	s.now = now
	return s
}

func (s *SubscriptionService) Check(ctx context.Context, accountID string, area domain.ProductArea) (*domain.Subscription, error) {
	sub, err := s.repo.FindByAccountAndArea(ctx, accountID, area)
	if err != nil {
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			return nil, domain.NewNoSubscription(area, domain.ActionStartTrial)
		}
		return nil, fmt.Errorf("load subscription: %w", err)
	}

	now := s.now()
	switch {
	case sub.Accessible(now):
		return sub, nil
	case sub.Overdue(now):
		s.expire(ctx, sub, now)
		return nil, domain.NewSubscriptionExpired(area, sub.EndDate)
	case sub.Status == domain.SubscriptionExpired:
		return nil, domain.NewSubscriptionExpired(area, sub.EndDate)
	default:
		return nil, domain.NewNoSubscription(area, domain.ActionSubscribe)
	}
}

func (s *SubscriptionService) List(ctx context.Context, accountID string) ([]ports.SubscriptionView, error) {
	subs, err := s.repo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]ports.SubscriptionView, 0, len(subs))
	for _, sub := range subs {
		if sub.Overdue(now) {
			s.expire(ctx, sub, now)
		}
		views = append(views, ports.SubscriptionView{
			Subscription: sub,
			IsAccessible: sub.Accessible(now),
		})
	}
	return views, nil
}

func (s *SubscriptionService) Accessible(ctx context.Context, accountID string, area domain.ProductArea) (bool, error) {
	_, err := s.Check(ctx, accountID, area)
	if err == nil {
		return true, nil
	}
	var gateErr *domain.GateError
	if errors.As(err, &gateErr) {
		return false, nil
	}
	return false, err
}

// Reconcile expires every overdue subscription in one pass.
func (s *SubscriptionService) Reconcile(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireOverdue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.SubscriptionExpirationsTotal.WithLabelValues("sweep").Add(float64(n))
	}
	return n, nil
}

// expire persists the overdue transition. The in-memory copy is updated even
// if the write fails so the caller is denied either way.
func (s *SubscriptionService) expire(ctx context.Context, sub *domain.Subscription, now time.Time) {
	sub.Status = domain.SubscriptionExpired

	changed, err := s.repo.MarkExpired(ctx, sub.ID, now)
	if err != nil {
		s.log.Error().Err(err).
			Str("subscription_id", sub.ID).
			Str("product_area", string(sub.ProductArea)).
			Msg("failed to persist subscription expiry")
		return
	}
	if changed {
		metrics.SubscriptionExpirationsTotal.WithLabelValues("lazy").Inc()
		s.log.Info().
			Str("account_id", sub.AccountID).
			Str("product_area", string(sub.ProductArea)).
			Time("end_date", sub.EndDate).
			Msg("subscription expired")
	}
}
