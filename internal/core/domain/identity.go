package domain

import "slices"

// Identity is the resolved caller of a request. Owners and staff share the
// authorization contract but derive their tenant differently.
type Identity interface {
	AccountID() string
	TenantOf() string
	Role() string
	IsStaffOriginated() bool
	// Authorized reports whether the identity may pass a gate requiring one of roles.
	Authorized(roles []string) bool
}

// OwnerIdentity is an Account acting on its own tenant.
type OwnerIdentity struct {
	Account *Account
}

func (o OwnerIdentity) AccountID() string       { return o.Account.ID }
func (o OwnerIdentity) TenantOf() string        { return o.Account.TenantID }
func (o OwnerIdentity) Role() string            { return string(o.Account.Role) }
func (o OwnerIdentity) IsStaffOriginated() bool { return false }

// Authorized always holds: an owner is authorized within its own tenant.
func (o OwnerIdentity) Authorized(_ []string) bool { return true }

// StaffIdentity is a StaffMember acting on its owner's tenant.
type StaffIdentity struct {
	Staff *StaffMember
	Owner *Account
}

func (s StaffIdentity) AccountID() string       { return s.Owner.ID }
func (s StaffIdentity) TenantOf() string        { return s.Owner.TenantID }
func (s StaffIdentity) Role() string            { return string(s.Staff.Role) }
func (s StaffIdentity) IsStaffOriginated() bool { return true }

func (s StaffIdentity) Authorized(roles []string) bool {
	return slices.Contains(roles, string(s.Staff.Role))
}

// IdentityView is the JSON shape of an Identity exposed to handlers and clients.
type IdentityView struct {
	AccountID         string `json:"accountId"`
	TenantID          string `json:"tenantId"`
	Role              string `json:"role"`
	IsStaffOriginated bool   `json:"isStaffOriginated"`
	StaffID           string `json:"staffId,omitempty"`
}

// Describe flattens an Identity into its view.
func Describe(id Identity) IdentityView {
	v := IdentityView{
		AccountID:         id.AccountID(),
		TenantID:          id.TenantOf(),
		Role:              id.Role(),
		IsStaffOriginated: id.IsStaffOriginated(),
	}
	if s, ok := id.(StaffIdentity); ok {
		v.StaffID = s.Staff.ID
	}
	return v
}
