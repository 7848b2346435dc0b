package domain

import "time"

// StaffRole is the role of a secondary identity inside a tenant.
type StaffRole string

const (
	StaffRoleAdmin        StaffRole = "Admin"
	StaffRoleDoctor       StaffRole = "Doctor"
	StaffRolePsychologist StaffRole = "Psychologist"
)

// StaffMember is a secondary identity owned by exactly one Account.
type StaffMember struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"accountId"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         StaffRole `json:"role"`
	Active       bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}
