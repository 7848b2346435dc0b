package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/medcloud/tenantgate/internal/core/credential"
	"github.com/medcloud/tenantgate/internal/core/domain"
	"github.com/medcloud/tenantgate/internal/core/ports"
	"github.com/medcloud/tenantgate/internal/core/tenant"
)

var testCookies = Cookies{
	TicketName:  "authToken",
	SessionName: "pms_sid",
	SessionTTL:  time.Hour,
	Signer:      credential.NewCookieSigner("session-secret"),
}

type stubIdentityService struct {
	resolveFn func(ctx context.Context, creds ports.Credentials) (*ports.Resolution, error)
	last      ports.Credentials
}

func (s *stubIdentityService) Resolve(ctx context.Context, creds ports.Credentials) (*ports.Resolution, error) {
	s.last = creds
	return s.resolveFn(ctx, creds)
}

type stubSubscriptionService struct {
	checkFn func(ctx context.Context, accountID string, area domain.ProductArea) (*domain.Subscription, error)
}

func (s *stubSubscriptionService) Check(ctx context.Context, accountID string, area domain.ProductArea) (*domain.Subscription, error) {
	return s.checkFn(ctx, accountID, area)
}

func (s *stubSubscriptionService) List(context.Context, string) ([]ports.SubscriptionView, error) {
	return nil, nil
}

func (s *stubSubscriptionService) Accessible(context.Context, string, domain.ProductArea) (bool, error) {
	return false, nil
}

type countingModel struct{ name string }

func (m countingModel) Name() string { return m.name }
func (m countingModel) InsertOne(context.Context, any) error { return nil }
func (m countingModel) FindOne(context.Context, bson.M, any) error { return tenant.ErrNoDocuments }
func (m countingModel) Find(context.Context, bson.M, any) error { return nil }
func (m countingModel) DeleteOne(context.Context, bson.M) (int64, error) { return 0, nil }
func (m countingModel) CountDocuments(context.Context, bson.M) (int64, error) {
	return 0, nil
}
func (m countingModel) UpdateOne(context.Context, bson.M, bson.M) (int64, error) {
	return 0, nil
}

type stubPartition struct{}

func (stubPartition) Model(name, _ string) tenant.Model { return countingModel{name: name} }
func (stubPartition) Healthy() bool { return true }
func (stubPartition) Close(context.Context) error { return nil }

type stubDialer struct{ dials map[string]int }

func (d *stubDialer) Dial(_ context.Context, tenantID string) (tenant.Partition, error) {
	d.dials[tenantID]++
	return stubPartition{}, nil
}

func owner(id, tenantID string) domain.OwnerIdentity {
	return domain.OwnerIdentity{Account: &domain.Account{ID: id, TenantID: tenantID, Active: true, Role: domain.AccountRoleAdmin}}
}

func staff(role domain.StaffRole, ownerID, tenantID string) domain.StaffIdentity {
	return domain.StaffIdentity{
		Staff: &domain.StaffMember{ID: "staff-1", AccountID: ownerID, Role: role, Active: true},
		Owner: &domain.Account{ID: ownerID, TenantID: tenantID, Active: true},
	}
}

// withIdentity returns a context carrying id as if Identity had run.
func withIdentity(id domain.Identity) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if id != nil {
		c.Set(ctxKeyResolution, &ports.Resolution{Identity: id, Source: "test"})
	}
	return c, rec
}

func okHandler(called *bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		*called = true
		return c.NoContent(http.StatusOK)
	}
}

func newTestRegistry(d *stubDialer) *tenant.Registry {
	return tenant.NewRegistry(d)
}
