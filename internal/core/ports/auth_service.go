package ports

import (
	"context"
	"time"

	"github.com/medcloud/tenantgate/internal/core/domain"
)

// LoginInput carries owner credentials. ClientKey scopes rate limiting.
type LoginInput struct {
	Email     string
	Password  string
	ClientKey string
	// SessionCookie is the signed session cookie the client already holds, if any.
	SessionCookie string
}

// LoginResult is returned after a successful owner login.
type LoginResult struct {
	Token         string
	ExpiresAt     time.Time
	Account       *domain.Account
	Subscriptions []SubscriptionView
	// IssuedSession is set when login bridged a server session.
	IssuedSession *domain.Session
}

// StaffLoginInput carries staff credentials. Account is the owner's email and
// is required only when the username exists under several accounts.
type StaffLoginInput struct {
	Username  string
	Password  string
	Account   string
	ClientKey string
}

type StaffLoginResult struct {
	Session *domain.Session
	Staff   *domain.StaffMember
	Owner   *domain.Account
}

// AuthService handles logins and logouts for owners and staff.
type AuthService interface {
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	StaffLogin(ctx context.Context, in StaffLoginInput) (*StaffLoginResult, error)
	Logout(ctx context.Context, sessionCookie string) error
}
