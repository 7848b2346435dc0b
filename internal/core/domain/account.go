package domain

import "time"

// AccountRole is the role stored on a tenant owner account.
type AccountRole string

const (
	AccountRoleAdmin AccountRole = "admin"
	AccountRoleStaff AccountRole = "staff"
)

// Account is the tenant owner. Its TenantID names the private data partition
// every request resolved to this account is scoped to.
type Account struct {
	ID           string      `json:"id"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	CompanyName  string      `json:"companyName"`
	TenantID     string      `json:"tenantId"`
	PartitionURI string      `json:"-"`
	Active       bool        `json:"isActive"`
	Role         AccountRole `json:"role"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}
