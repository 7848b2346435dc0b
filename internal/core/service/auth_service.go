package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/medcloud/tenantgate/internal/core/credential"
	"github.com/medcloud/tenantgate/internal/core/domain"
	"github.com/medcloud/tenantgate/internal/core/ports"
	"github.com/medcloud/tenantgate/internal/pkg/metrics"
)

const (
	loginKindOwner = "owner"
	loginKindStaff = "staff"
)

// AuthDeps groups the collaborators of AuthService.
type AuthDeps struct {
	Accounts      ports.AccountRepository
	Staff         ports.StaffRepository
	Subscriptions ports.SubscriptionService
	Sessions      ports.SessionStore
	Limiter       ports.LoginLimiter
	Verifier      *credential.Verifier
	Signer        *credential.CookieSigner
	Bridge        *SessionBridge
}

// AuthService implements owner and staff login.
type AuthService struct {
	deps  AuthDeps
	now   func() time.Time
	newID func() string
	log   zerolog.Logger
}

func NewAuthService(deps AuthDeps, log zerolog.Logger) *AuthService {
	return &AuthService{deps: deps, now: time.Now, newID: uuid.NewString, log: log}
}

func (s *AuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if err := s.limit(ctx, loginKindOwner, in.ClientKey); err != nil {
		return nil, err
	}

	acct, err := s.deps.Accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			s.record(loginKindOwner, "invalid")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(in.Password)) != nil {
		s.record(loginKindOwner, "invalid")
		return nil, domain.ErrInvalidCredentials
	}
	if !acct.Active {
		s.record(loginKindOwner, "disabled")
		return nil, domain.NewAccountDisabled()
	}

	token, exp, err := s.deps.Verifier.Issue(acct.ID, acct.TenantID, string(acct.Role))
	if err != nil {
		return nil, err
	}
	subs, err := s.deps.Subscriptions.List(ctx, acct.ID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	res := &ports.LoginResult{Token: token, ExpiresAt: exp, Account: acct, Subscriptions: subs}
	if s.deps.Bridge != nil {
		sess, err := s.deps.Bridge.Ensure(ctx, acct, in.SessionCookie)
		if err != nil {
			s.log.Warn().Err(err).Str("account_id", acct.ID).Msg("session bridging failed at login")
		}
		res.IssuedSession = sess
	}

	s.resetLimit(ctx, loginKindOwner, in.ClientKey)
	s.record(loginKindOwner, "ok")
	s.log.Info().Str("account_id", acct.ID).Str("tenant_id", acct.TenantID).Msg("owner logged in")
	return res, nil
}

func (s *AuthService) StaffLogin(ctx context.Context, in ports.StaffLoginInput) (*ports.StaffLoginResult, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if err := s.limit(ctx, loginKindStaff, in.ClientKey); err != nil {
		return nil, err
	}

	var owner *domain.Account
	if in.Account != "" {
		acct, err := s.deps.Accounts.FindByEmail(ctx, in.Account)
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				s.record(loginKindStaff, "invalid")
				return nil, domain.ErrInvalidCredentials
			}
			return nil, err
		}
		owner = acct
	}

	scope := ""
	if owner != nil {
		scope = owner.ID
	}
	member, err := s.deps.Staff.FindByUsername(ctx, username, scope)
	if err != nil {
		if errors.Is(err, domain.ErrStaffNotFound) {
			s.record(loginKindStaff, "invalid")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(in.Password)) != nil {
		s.record(loginKindStaff, "invalid")
		return nil, domain.ErrInvalidCredentials
	}

	if owner == nil {
		owner, err = s.deps.Accounts.FindByID(ctx, member.AccountID)
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				s.record(loginKindStaff, "invalid")
				return nil, domain.ErrInvalidCredentials
			}
			return nil, err
		}
	}
	if !member.Active || !owner.Active {
		s.record(loginKindStaff, "disabled")
		return nil, domain.NewAccountDisabled()
	}

	sess := &domain.Session{
		ID:          s.newID(),
		Kind:        domain.SessionStaff,
		StaffID:     member.ID,
		AccountID:   owner.ID,
		Username:    member.Username,
		DisplayName: member.Name,
		Role:        string(member.Role),
		IssuedAt:    s.now().UTC(),
	}
	if err := s.deps.Sessions.Save(ctx, sess); err != nil {
		return nil, err
	}

	s.resetLimit(ctx, loginKindStaff, in.ClientKey)
	s.record(loginKindStaff, "ok")
	s.log.Info().
		Str("staff_id", member.ID).
		Str("tenant_id", owner.TenantID).
		Str("role", string(member.Role)).
		Msg("staff logged in")
	return &ports.StaffLoginResult{Session: sess, Staff: member, Owner: owner}, nil
}

// Logout destroys the session referenced by sessionCookie. Missing, forged or
// already expired sessions are not an error.
func (s *AuthService) Logout(ctx context.Context, sessionCookie string) error {
	if sessionCookie == "" {
		return nil
	}
	id, err := s.deps.Signer.Unsign(sessionCookie)
	if err != nil {
		return nil
	}
	return s.deps.Sessions.Delete(ctx, id)
}

// limit fails open when the limiter store is unavailable.
func (s *AuthService) limit(ctx context.Context, kind, clientKey string) error {
	if s.deps.Limiter == nil || clientKey == "" {
		return nil
	}
	ok, err := s.deps.Limiter.Allow(ctx, kind+":"+clientKey)
	if err != nil {
		s.log.Warn().Err(err).Msg("login limiter unavailable")
		return nil
	}
	if !ok {
		s.record(kind, "limited")
		return domain.ErrTooManyAttempts
	}
	return nil
}

func (s *AuthService) resetLimit(ctx context.Context, kind, clientKey string) {
	if s.deps.Limiter == nil || clientKey == "" {
		return
	}
	if err := s.deps.Limiter.Reset(ctx, kind+":"+clientKey); err != nil {
		s.log.Warn().Err(err).Msg("login limiter reset failed")
	}
}

func (s *AuthService) record(kind, result string) {
	metrics.LoginAttemptsTotal.WithLabelValues(kind, result).Inc()
}
