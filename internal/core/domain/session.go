package domain

import "time"

// SessionKind distinguishes staff logins from sessions bridged for an owner
// that authenticated with a bearer token.
type SessionKind string

const (
	SessionStaff   SessionKind = "staff"
	SessionBridged SessionKind = "bridged"
)

// Session is a server-held ticket keyed by ID. It expires silently after a
// fixed TTL enforced by the store.
type Session struct {
	ID          string      `json:"id"`
	Kind        SessionKind `json:"kind"`
	StaffID     string      `json:"staffId"`
	AccountID   string      `json:"accountId"`
	Username    string      `json:"username"`
	DisplayName string      `json:"displayName,omitempty"`
	Role        string      `json:"role"`
	ProductArea ProductArea `json:"productArea,omitempty"`
	IssuedAt    time.Time   `json:"issuedAt"`
}

// IsMasterUser reports whether the session belongs to the tenant owner itself.
func (s *Session) IsMasterUser() bool {
	return s.Kind == SessionBridged
}
