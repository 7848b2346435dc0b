// Package credential issues and verifies the signed credentials carried by
// requests: JWT bearer tickets and signed session cookie values.
package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
)

const defaultTokenTTL = 24 * time.Hour

// Claims is the identity decoded from a verified ticket.
type Claims struct {
	AccountID string
	TenantID  string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type ticketClaims struct {
	TenantID string `json:"tid,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier signs and verifies HS256 tickets with a process-wide secret.
// It performs no I/O.
type Verifier struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewVerifier(secret string, ttl time.Duration) *Verifier {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Verifier{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source used for issuing and expiry checks.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// Issue signs a ticket for accountID and returns it with its expiry.
func (v *Verifier) Issue(accountID, tenantID, role string) (string, time.Time, error) {
	now := v.now()
	exp := now.Add(v.ttl)
	claims := ticketClaims{
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign ticket: %w", err)
	}
	return signed, exp, nil
}

// Verify checks the signature and expiry of token and decodes its claims.
// Only HS256 is accepted.
func (v *Verifier) Verify(token string) (*Claims, error) {
	var tc ticketClaims
	_, err := jwt.ParseWithClaims(token, &tc, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if tc.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidSignature)
	}

	claims := &Claims{
		AccountID: tc.Subject,
		TenantID:  tc.TenantID,
		Role:      tc.Role,
		ExpiresAt: tc.ExpiresAt.Time,
	}
	if tc.IssuedAt != nil {
		claims.IssuedAt = tc.IssuedAt.Time
	}
	return claims, nil
}
