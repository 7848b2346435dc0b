package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/medcloud/tenantgate/internal/core/credential"
	"github.com/medcloud/tenantgate/internal/core/domain"
	"github.com/medcloud/tenantgate/internal/core/ports"
	"github.com/medcloud/tenantgate/internal/pkg/metrics"
)

// Credential sources, in resolution order.
const (
	SourceCookie  = "cookie"
	SourceBearer  = "bearer"
	SourceSession = "session"
)

var errMalformedAuthorization = errors.New("malformed authorization header")

// Resolver tries one credential source. It returns (nil, nil) when its
// credential is absent so the next resolver runs; a present but invalid
// credential is an error and ends resolution.
type Resolver interface {
	Source() string
	Resolve(ctx context.Context, creds ports.Credentials) (*ports.Resolution, error)
}

// IdentityService runs resolvers in order and returns the first identity.
type IdentityService struct {
	resolvers []Resolver
	log       zerolog.Logger
}

func NewIdentityService(log zerolog.Logger, resolvers ...Resolver) *IdentityService {
	return &IdentityService{resolvers: resolvers, log: log}
}

func (s *IdentityService) Resolve(ctx context.Context, creds ports.Credentials) (*ports.Resolution, error) {
	for _, r := range s.resolvers {
		res, err := r.Resolve(ctx, creds)
		if err != nil {
			var gateErr *domain.GateError
			if errors.As(err, &gateErr) {
				metrics.IdentityResolutionsTotal.WithLabelValues(r.Source(), "denied").Inc()
				s.log.Debug().Err(err).Str("source", r.Source()).Msg("identity denied")
			} else {
				metrics.IdentityResolutionsTotal.WithLabelValues(r.Source(), "error").Inc()
			}
			return nil, err
		}
		if res != nil {
			metrics.IdentityResolutionsTotal.WithLabelValues(r.Source(), "ok").Inc()
			return res, nil
		}
	}
	metrics.IdentityResolutionsTotal.WithLabelValues("none", "denied").Inc()
	return nil, domain.NewAuthRequired("", nil)
}

// TokenResolver authenticates an owner from a signed ticket.
type TokenResolver struct {
	source   string
	extract  func(ports.Credentials) (string, bool, error)
	verifier *credential.Verifier
	accounts ports.AccountRepository
}

// NewCookieTicketResolver reads the ticket from the auth cookie.
func NewCookieTicketResolver(v *credential.Verifier, accounts ports.AccountRepository) *TokenResolver {
	return &TokenResolver{
		source: SourceCookie,
		extract: func(c ports.Credentials) (string, bool, error) {
			return c.TicketCookie, c.TicketCookie != "", nil
		},
		verifier: v,
		accounts: accounts,
	}
}

// NewBearerTokenResolver reads the ticket from the Authorization header.
func NewBearerTokenResolver(v *credential.Verifier, accounts ports.AccountRepository) *TokenResolver {
	return &TokenResolver{
		source:   SourceBearer,
		extract:  func(c ports.Credentials) (string, bool, error) { return bearerToken(c.Authorization) },
		verifier: v,
		accounts: accounts,
	}
}

func bearerToken(header string) (string, bool, error) {
	if header == "" {
		return "", false, nil
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", true, errMalformedAuthorization
	}
	return token, true, nil
}

func (r *TokenResolver) Source() string { return r.source }

func (r *TokenResolver) Resolve(ctx context.Context, creds ports.Credentials) (*ports.Resolution, error) {
	token, present, err := r.extract(creds)
	if !present {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewAuthRequired("Not authorized, token failed", err)
	}

	claims, err := r.verifier.Verify(token)
	if err != nil {
		if errors.Is(err, credential.ErrTokenExpired) {
			return nil, domain.NewAuthRequired("Not authorized, token expired", err)
		}
		return nil, domain.NewAuthRequired("Not authorized, token failed", err)
	}

	acct, err := loadAccount(ctx, r.accounts, claims.AccountID)
	if err != nil {
		return nil, err
	}
	return &ports.Resolution{Identity: domain.OwnerIdentity{Account: acct}, Source: r.source}, nil
}

// BridgingResolver wraps a ticket resolver and, on success for an owner,
// makes sure a server session exists. Bridging failures are logged and never
// fail the request.
type BridgingResolver struct {
	inner  Resolver
	bridge *SessionBridge
	log    zerolog.Logger
}

func NewBridgingResolver(inner Resolver, bridge *SessionBridge, log zerolog.Logger) *BridgingResolver {
	return &BridgingResolver{inner: inner, bridge: bridge, log: log}
}

func (r *BridgingResolver) Source() string { return r.inner.Source() }

func (r *BridgingResolver) Resolve(ctx context.Context, creds ports.Credentials) (*ports.Resolution, error) {
	res, err := r.inner.Resolve(ctx, creds)
	if err != nil || res == nil {
		return res, err
	}
	owner, ok := res.Identity.(domain.OwnerIdentity)
	if !ok {
		return res, nil
	}

	sess, err := r.bridge.Ensure(ctx, owner.Account, creds.SessionCookie)
	if err != nil {
		r.log.Warn().Err(err).Str("account_id", owner.Account.ID).Msg("session bridging failed")
		return res, nil
	}
	if sess != nil {
		res.Session = sess
		res.IssuedSession = sess
	}
	return res, nil
}

// SessionResolver authenticates from a signed server session cookie.
type SessionResolver struct {
	sessions ports.SessionStore
	staff    ports.StaffRepository
	accounts ports.AccountRepository
	signer   *credential.CookieSigner
}

func NewSessionResolver(
	sessions ports.SessionStore,
	staff ports.StaffRepository,
	accounts ports.AccountRepository,
	signer *credential.CookieSigner,
) *SessionResolver {
	return &SessionResolver{sessions: sessions, staff: staff, accounts: accounts, signer: signer}
}

func (r *SessionResolver) Source() string { return SourceSession }

func (r *SessionResolver) Resolve(ctx context.Context, creds ports.Credentials) (*ports.Resolution, error) {
	if creds.SessionCookie == "" {
		return nil, nil
	}
	id, err := r.signer.Unsign(creds.SessionCookie)
	if err != nil {
		return nil, domain.NewAuthRequired("Session invalid. Please login again.", err)
	}
	sess, err := r.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.NewAuthRequired("Session expired. Please login again.", err)
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var identity domain.Identity
	switch sess.Kind {
	case domain.SessionStaff:
		identity, err = r.staffIdentity(ctx, sess)
	case domain.SessionBridged:
		var acct *domain.Account
		acct, err = loadAccount(ctx, r.accounts, sess.AccountID)
		identity = domain.OwnerIdentity{Account: acct}
	default:
		err = domain.NewAuthRequired("Session invalid. Please login again.", nil)
	}
	if err != nil {
		return nil, err
	}
	return &ports.Resolution{Identity: identity, Source: SourceSession, Session: sess}, nil
}

// staffIdentity loads the member and derives its tenant from the owning
// account. The session's own account id is not trusted for scoping.
func (r *SessionResolver) staffIdentity(ctx context.Context, sess *domain.Session) (domain.Identity, error) {
	member, err := r.staff.FindByID(ctx, sess.StaffID)
	if err != nil {
		if errors.Is(err, domain.ErrStaffNotFound) {
			return nil, domain.NewAuthRequired("Not authorized, user not found", err)
		}
		return nil, fmt.Errorf("load staff: %w", err)
	}
	if !member.Active {
		return nil, domain.NewAccountDisabled()
	}
	owner, err := loadAccount(ctx, r.accounts, member.AccountID)
	if err != nil {
		return nil, err
	}
	return domain.StaffIdentity{Staff: member, Owner: owner}, nil
}

func loadAccount(ctx context.Context, accounts ports.AccountRepository, id string) (*domain.Account, error) {
	acct, err := accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.NewAuthRequired("Not authorized, user not found", err)
		}
		return nil, fmt.Errorf("load account: %w", err)
	}
	if !acct.Active {
		return nil, domain.NewAccountDisabled()
	}
	return acct, nil
}
