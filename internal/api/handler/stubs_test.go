package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medcloud/tenantgate/internal/api/middleware"
	"github.com/medcloud/tenantgate/internal/core/credential"
	"github.com/medcloud/tenantgate/internal/core/domain"
	"github.com/medcloud/tenantgate/internal/core/ports"
)

var testCookies = middleware.Cookies{
	TicketName:  "authToken",
	SessionName: "pms_sid",
	SessionTTL:  time.Hour,
	Signer:      credential.NewCookieSigner("session-secret"),
}

type stubAuthService struct {
	loginFn      func(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error)
	staffLoginFn func(ctx context.Context, in ports.StaffLoginInput) (*ports.StaffLoginResult, error)
	loggedOut    []string
}

func (s *stubAuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
	return s.loginFn(ctx, in)
}

func (s *stubAuthService) StaffLogin(ctx context.Context, in ports.StaffLoginInput) (*ports.StaffLoginResult, error) {
	return s.staffLoginFn(ctx, in)
}

func (s *stubAuthService) Logout(_ context.Context, sessionCookie string) error {
	s.loggedOut = append(s.loggedOut, sessionCookie)
	return nil
}

type stubSubscriptions struct {
	views []ports.SubscriptionView
}

func (s *stubSubscriptions) Check(context.Context, string, domain.ProductArea) (*domain.Subscription, error) {
	return nil, domain.NewNoSubscription(domain.ProductHospitalPMS, domain.ActionStartTrial)
}

func (s *stubSubscriptions) List(context.Context, string) ([]ports.SubscriptionView, error) {
	return s.views, nil
}

func (s *stubSubscriptions) Accessible(context.Context, string, domain.ProductArea) (bool, error) {
	return false, nil
}

type stubIdentity struct {
	res *ports.Resolution
	err error
}

func (s *stubIdentity) Resolve(context.Context, ports.Credentials) (*ports.Resolution, error) {
	return s.res, s.err
}

func ownerAccount() *domain.Account {
	return &domain.Account{
		ID:          "acct-1",
		Email:       "owner@clinic.test",
		CompanyName: "Riverside Clinic",
		TenantID:    "riverside_clinic",
		Active:      true,
		Role:        domain.AccountRoleAdmin,
	}
}

func doctor() *domain.StaffMember {
	return &domain.StaffMember{ID: "staff-1", AccountID: "acct-1", Username: "drhouse", Name: "Greg", Role: domain.StaffRoleDoctor, Active: true}
}

func newJSONContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}
