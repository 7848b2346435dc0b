package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrAuthRequired        = errors.New("authentication required")
	ErrAccountDisabled     = errors.New("account is deactivated")
	ErrForbiddenRole       = errors.New("role not permitted")
	ErrNoSubscription      = errors.New("no active subscription")
	ErrSubscriptionExpired = errors.New("subscription expired")

	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAmbiguousStaff       = errors.New("staff username is not unique; account is required")
	ErrTooManyAttempts      = errors.New("too many attempts")
	ErrAccountNotFound      = errors.New("account not found")
	ErrStaffNotFound        = errors.New("staff member not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrSessionNotFound      = errors.New("session not found")
)

// Codes rendered in 403 bodies.
const (
	CodeNoSubscription      = "NO_SUBSCRIPTION"
	CodeSubscriptionExpired = "SUBSCRIPTION_EXPIRED"
	CodeAccountDisabled     = "ACCOUNT_DISABLED"
	CodeForbiddenRole       = "FORBIDDEN_ROLE"
)

// Actions hint the client at the next step after a subscription denial.
const (
	ActionStartTrial = "start_trial"
	ActionUpgrade    = "upgrade"
	ActionSubscribe  = "subscribe"
)

// GateError is a denial produced by one of the access gates. Kind is one of
// the gate sentinels above so callers can match with errors.Is.
type GateError struct {
	Kind          error
	Code          string
	Message       string
	Action        string
	ProductArea   ProductArea
	ExpiredAt     *time.Time
	RequiredRoles []string
	Cause         error
}

func (e *GateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *GateError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func NewAuthRequired(message string, cause error) *GateError {
	if message == "" {
		message = "Authentication required. Please login."
	}
	return &GateError{Kind: ErrAuthRequired, Message: message, Cause: cause}
}

func NewAccountDisabled() *GateError {
	return &GateError{
		Kind:    ErrAccountDisabled,
		Code:    CodeAccountDisabled,
		Message: "Account is deactivated. Please contact support.",
	}
}

func NewForbiddenRole(roles []string) *GateError {
	return &GateError{
		Kind:          ErrForbiddenRole,
		Code:          CodeForbiddenRole,
		Message:       fmt.Sprintf("Forbidden: Access requires %s role.", strings.Join(roles, " or ")),
		RequiredRoles: roles,
	}
}

func NewNoSubscription(area ProductArea, action string) *GateError {
	return &GateError{
		Kind:        ErrNoSubscription,
		Code:        CodeNoSubscription,
		Message:     fmt.Sprintf("Access denied. No active subscription for %s.", area),
		Action:      action,
		ProductArea: area,
	}
}

func NewSubscriptionExpired(area ProductArea, endDate time.Time) *GateError {
	return &GateError{
		Kind:        ErrSubscriptionExpired,
		Code:        CodeSubscriptionExpired,
		Message:     fmt.Sprintf("Your %s trial/subscription has expired.", area),
		Action:      ActionUpgrade,
		ProductArea: area,
		ExpiredAt:   &endDate,
	}
}
