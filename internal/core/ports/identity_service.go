package ports

import (
	"context"

	"github.com/medcloud/tenantgate/internal/core/domain"
)

// Credentials are the raw credential carriers extracted from a request.
// SessionCookie is the signed session cookie value as received.
type Credentials struct {
	TicketCookie  string
	Authorization string
	SessionCookie string
}

// Resolution is the outcome of identity resolution.
type Resolution struct {
	Identity domain.Identity
	// Source names the resolver that produced Identity.
	Source string
	// Session is the server session backing Identity, if any.
	Session *domain.Session
	// IssuedSession is set when resolution produced a server session the
	// client did not present. The transport must hand it to the client.
	IssuedSession *domain.Session
}

// IdentityService resolves the caller of a request.
type IdentityService interface {
	Resolve(ctx context.Context, creds Credentials) (*Resolution, error)
}
