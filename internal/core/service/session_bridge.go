package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medcloud/tenantgate/internal/core/credential"
	"github.com/medcloud/tenantgate/internal/core/domain"
	"github.com/medcloud/tenantgate/internal/core/ports"
	"github.com/medcloud/tenantgate/internal/pkg/metrics"
)

// SessionBridge materializes a server session for an owner that
// authenticated with a ticket, so session-based product areas accept it.
type SessionBridge struct {
	area     domain.ProductArea
	subs     ports.SubscriptionService
	sessions ports.BridgedSessionStore
	signer   *credential.CookieSigner
	now      func() time.Time
	newID    func() string
	log      zerolog.Logger
}

func NewSessionBridge(
	area domain.ProductArea,
	subs ports.SubscriptionService,
	sessions ports.BridgedSessionStore,
	signer *credential.CookieSigner,
	log zerolog.Logger,
) *SessionBridge {
	return &SessionBridge{
		area:     area,
		subs:     subs,
		sessions: sessions,
		signer:   signer,
		now:      time.Now,
		newID:    uuid.NewString,
		log:      log,
	}
}

// Ensure returns the bridged session acct should hold, creating it when
// none exists. It returns nil when the client already holds a valid session
// for the same account or acct has no accessible subscription for the
// bridged area. Clients that never send the cookie back get the same session
// on every call.
func (b *SessionBridge) Ensure(ctx context.Context, acct *domain.Account, sessionCookie string) (*domain.Session, error) {
	if cur := b.current(ctx, sessionCookie); cur != nil && cur.AccountID == acct.ID {
		return nil, nil
	}

	ok, err := b.subs.Accessible(ctx, acct.ID, b.area)
	if err != nil {
		return nil, fmt.Errorf("bridge subscription check: %w", err)
	}
	if !ok {
		return nil, nil
	}

	existing, err := b.sessions.Bridged(ctx, acct.ID, b.area)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, domain.ErrSessionNotFound):
		return nil, fmt.Errorf("bridge lookup: %w", err)
	}

	held, created, err := b.sessions.SaveBridged(ctx, &domain.Session{
		ID:          b.newID(),
		Kind:        domain.SessionBridged,
		AccountID:   acct.ID,
		Username:    acct.Email,
		DisplayName: acct.CompanyName,
		Role:        string(domain.StaffRoleAdmin),
		ProductArea: b.area,
		IssuedAt:    b.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("bridge session: %w", err)
	}

	if created {
		metrics.SessionsBridgedTotal.Inc()
		b.log.Info().
			Str("account_id", acct.ID).
			Str("product_area", string(b.area)).
			Msg("session bridged")
	}
	return held, nil
}

func (b *SessionBridge) current(ctx context.Context, sessionCookie string) *domain.Session {
	if sessionCookie == "" {
		return nil
	}
	id, err := b.signer.Unsign(sessionCookie)
	if err != nil {
		return nil
	}
	sess, err := b.sessions.Get(ctx, id)
	if err != nil {
		return nil
	}
	return sess
}
