package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/medcloud/tenantgate/internal/core/credential"
	"github.com/medcloud/tenantgate/internal/core/domain"
)

const (
	testJWTSecret     = "jwt-secret"
	testSessionSecret = "session-secret"
)

var nopLog = zerolog.Nop()

// ── accounts ─────────────────────────────────────────────────────────────────

type stubAccountRepo struct {
	accounts map[string]*domain.Account
}

func newStubAccountRepo(accts ...*domain.Account) *stubAccountRepo {
	r := &stubAccountRepo{accounts: make(map[string]*domain.Account)}
	for _, a := range accts {
		r.accounts[a.ID] = a
	}
	return r
}

func (r *stubAccountRepo) FindByID(_ context.Context, id string) (*domain.Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	clone := *a
	return &clone, nil
}

func (r *stubAccountRepo) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	for _, a := range r.accounts {
		if a.Email == email {
			clone := *a
			return &clone, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

// ── staff ────────────────────────────────────────────────────────────────────

type stubStaffRepo struct {
	members map[string]*domain.StaffMember
}

func newStubStaffRepo(members ...*domain.StaffMember) *stubStaffRepo {
	r := &stubStaffRepo{members: make(map[string]*domain.StaffMember)}
	for _, m := range members {
		r.members[m.ID] = m
	}
	return r
}

func (r *stubStaffRepo) FindByID(_ context.Context, id string) (*domain.StaffMember, error) {
	m, ok := r.members[id]
	if !ok {
		return nil, domain.ErrStaffNotFound
	}
	clone := *m
	return &clone, nil
}

func (r *stubStaffRepo) FindByUsername(_ context.Context, username, accountID string) (*domain.StaffMember, error) {
	var found []*domain.StaffMember
	for _, m := range r.members {
		if m.Username == username && (accountID == "" || m.AccountID == accountID) {
			found = append(found, m)
		}
	}
	switch len(found) {
	case 0:
		return nil, domain.ErrStaffNotFound
	case 1:
		clone := *found[0]
		return &clone, nil
	default:
		return nil, domain.ErrAmbiguousStaff
	}
}

// ── subscriptions ────────────────────────────────────────────────────────────

type stubSubscriptionRepo struct {
	mu          sync.Mutex
	subs        map[string]*domain.Subscription
	markCalls   int
	transitions int
	sweeps      int
}

func newStubSubscriptionRepo(subs ...*domain.Subscription) *stubSubscriptionRepo {
	r := &stubSubscriptionRepo{subs: make(map[string]*domain.Subscription)}
	for _, s := range subs {
		r.subs[s.ID] = s
	}
	return r
}

func (r *stubSubscriptionRepo) FindByAccountAndArea(_ context.Context, accountID string, area domain.ProductArea) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.AccountID == accountID && s.ProductArea == area {
			clone := *s
			return &clone, nil
		}
	}
	return nil, domain.ErrSubscriptionNotFound
}

func (r *stubSubscriptionRepo) ListByAccount(_ context.Context, accountID string) ([]*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Subscription
	for _, s := range r.subs {
		if s.AccountID == accountID {
			clone := *s
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *stubSubscriptionRepo) MarkExpired(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markCalls++
	s, ok := r.subs[id]
	if !ok || s.Status != domain.SubscriptionActive {
		return false, nil
	}
	s.Status = domain.SubscriptionExpired
	s.UpdatedAt = at
	r.transitions++
	return true, nil
}

func (r *stubSubscriptionRepo) ExpireOverdue(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweeps++
	var n int64
	for _, s := range r.subs {
		if s.Overdue(now) {
			s.Status = domain.SubscriptionExpired
			n++
		}
	}
	return n, nil
}

func (r *stubSubscriptionRepo) status(id string) domain.SubscriptionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs[id].Status
}

// ── sessions ─────────────────────────────────────────────────────────────────

type stubSessionStore struct {
	mu      sync.Mutex
	items   map[string]*domain.Session
	bridges map[string]string
	saveErr error
}

func newStubSessionStore() *stubSessionStore {
	return &stubSessionStore{items: make(map[string]*domain.Session), bridges: make(map[string]string)}
}

func (s *stubSessionStore) Save(_ context.Context, sess *domain.Session) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *sess
	s.items[sess.ID] = &clone
	return nil
}

func (s *stubSessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	clone := *sess
	return &clone, nil
}

func (s *stubSessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *stubSessionStore) Bridged(_ context.Context, accountID string, area domain.ProductArea) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[s.bridges[accountID+":"+string(area)]]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	clone := *sess
	return &clone, nil
}

func (s *stubSessionStore) SaveBridged(ctx context.Context, sess *domain.Session) (*domain.Session, bool, error) {
	if held, err := s.Bridged(ctx, sess.AccountID, sess.ProductArea); err == nil {
		return held, false, nil
	}
	if err := s.Save(ctx, sess); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	s.bridges[sess.AccountID+":"+string(sess.ProductArea)] = sess.ID
	s.mu.Unlock()
	return sess, true, nil
}

func (s *stubSessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// ── limiter ──────────────────────────────────────────────────────────────────

type stubLimiter struct {
	max    int
	counts map[string]int
	err    error
}

func newStubLimiter(max int) *stubLimiter {
	return &stubLimiter{max: max, counts: make(map[string]int)}
}

func (l *stubLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.counts[key]++
	return l.counts[key] <= l.max, nil
}

func (l *stubLimiter) Reset(_ context.Context, key string) error {
	delete(l.counts, key)
	return nil
}

// ── fixtures ─────────────────────────────────────────────────────────────────

var errStoreDown = errors.New("store unavailable")

func mustHash(password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(h)
}

func ownerAccount(id, tenantID string) *domain.Account {
	return &domain.Account{
		ID:           id,
		Email:        id + "@clinic.test",
		PasswordHash: mustHash("owner-pass"),
		CompanyName:  "Clinic " + id,
		TenantID:     tenantID,
		Active:       true,
		Role:         domain.AccountRoleAdmin,
	}
}

func staffMember(id, accountID, username string, role domain.StaffRole) *domain.StaffMember {
	return &domain.StaffMember{
		ID:           id,
		AccountID:    accountID,
		Username:     username,
		Name:         "Member " + id,
		PasswordHash: mustHash("staff-pass"),
		Role:         role,
		Active:       true,
	}
}

func subscription(id, accountID string, area domain.ProductArea, status domain.SubscriptionStatus, end time.Time) *domain.Subscription {
	return &domain.Subscription{
		ID:          id,
		AccountID:   accountID,
		ProductArea: area,
		PlanKind:    domain.PlanTrial,
		Status:      status,
		StartDate:   end.Add(-7 * 24 * time.Hour),
		EndDate:     end,
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newVerifier(now time.Time) *credential.Verifier {
	return credential.NewVerifier(testJWTSecret, time.Hour).WithClock(fixedClock(now))
}
