package tenant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// ---------------------------------------------------------------------------
// In-memory partitions
// ---------------------------------------------------------------------------

type memPartition struct {
	tenantID string
	mu       sync.Mutex
	data     map[string][]bson.M
	healthy  atomic.Bool
	closed   atomic.Int32
}

func newMemPartition(tenantID string) *memPartition {
	p := &memPartition{tenantID: tenantID, data: make(map[string][]bson.M)}
	p.healthy.Store(true)
	return p
}

func (p *memPartition) Model(name, collection string) Model {
	return &memModel{name: name, collection: collection, p: p}
}

func (p *memPartition) Healthy() bool { return p.healthy.Load() }

func (p *memPartition) Close(context.Context) error {
	p.closed.Add(1)
	return nil
}

type memModel struct {
	name       string
	collection string
	p          *memPartition
}

func (m *memModel) Name() string { return m.name }

func (m *memModel) InsertOne(_ context.Context, doc any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	var d bson.M
	if err := bson.Unmarshal(raw, &d); err != nil {
		return err
	}
	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	m.p.data[m.collection] = append(m.p.data[m.collection], d)
	return nil
}

func (m *memModel) matches(filter bson.M) []bson.M {
	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	var out []bson.M
	for _, d := range m.p.data[m.collection] {
		ok := true
		for k, v := range filter {
			if fmt.Sprint(d[k]) != fmt.Sprint(v) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, d)
		}
	}
	return out
}

func (m *memModel) FindOne(_ context.Context, filter bson.M, out any) error {
	found := m.matches(filter)
	if len(found) == 0 {
		return ErrNoDocuments
	}
	raw, err := bson.Marshal(found[0])
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, out)
}

func (m *memModel) Find(_ context.Context, filter bson.M, out any) error {
	raw, err := bson.Marshal(bson.M{"items": m.matches(filter)})
	if err != nil {
		return err
	}
	var wrapper struct {
		Items bson.RawValue `bson:"items"`
	}
	if err := bson.Unmarshal(raw, &wrapper); err != nil {
		return err
	}
	return wrapper.Items.Unmarshal(out)
}

func (m *memModel) UpdateOne(_ context.Context, filter, update bson.M) (int64, error) {
	found := m.matches(filter)
	if len(found) == 0 {
		return 0, nil
	}
	set, _ := update["$set"].(bson.M)
	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	for k, v := range set {
		found[0][k] = v
	}
	return 1, nil
}

func (m *memModel) DeleteOne(context.Context, bson.M) (int64, error) { return 0, nil }

func (m *memModel) CountDocuments(_ context.Context, filter bson.M) (int64, error) {
	return int64(len(m.matches(filter))), nil
}

// ---------------------------------------------------------------------------
// Dialer stub
// ---------------------------------------------------------------------------

type stubDialer struct {
	mu         sync.Mutex
	dials      map[string]int
	partitions map[string]*memPartition
	delay      time.Duration
	block      map[string]chan struct{}
	failNext   map[string]error
}

func newStubDialer() *stubDialer {
	return &stubDialer{
		dials:      make(map[string]int),
		partitions: make(map[string]*memPartition),
		block:      make(map[string]chan struct{}),
		failNext:   make(map[string]error),
	}
}

func (d *stubDialer) Dial(ctx context.Context, tenantID string) (Partition, error) {
	d.mu.Lock()
	d.dials[tenantID]++
	gate := d.block[tenantID]
	failErr := d.failNext[tenantID]
	delete(d.failNext, tenantID)
	delay := d.delay
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if failErr != nil {
		return nil, failErr
	}

	p := newMemPartition(tenantID)
	d.mu.Lock()
	d.partitions[tenantID] = p
	d.mu.Unlock()
	return p, nil
}

func (d *stubDialer) dialCount(tenantID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[tenantID]
}

func (d *stubDialer) partition(tenantID string) *memPartition {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.partitions[tenantID]
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestRegistry_ConcurrentFirstAccessDialsOnce(t *testing.T) {
	dialer := newStubDialer()
	dialer.delay = 20 * time.Millisecond
	reg := NewRegistry(dialer)

	const callers = 50
	handles := make([]*Handle, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			handles[i], errs[i] = reg.GetConnection(context.Background(), "t1")
		}(i)
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
		if handles[i] != handles[0] {
			t.Fatalf("caller %d received a different handle", i)
		}
	}
	if n := dialer.dialCount("t1"); n != 1 {
		t.Fatalf("expected exactly one dial, got %d", n)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected one cache entry, got %d", reg.Len())
	}
}

func TestRegistry_TwoConcurrentFirstRequests(t *testing.T) {
	dialer := newStubDialer()
	dialer.block["t1"] = make(chan struct{})
	reg := NewRegistry(dialer)

	var wg sync.WaitGroup
	results := make(chan *Handle, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := reg.GetConnection(context.Background(), "t1")
			if err != nil {
				t.Errorf("get connection: %v", err)
				return
			}
			results <- h
		}()
	}
	time.Sleep(10 * time.Millisecond)
	close(dialer.block["t1"])
	wg.Wait()
	close(results)

	var got []*Handle
	for h := range results {
		got = append(got, h)
	}
	if len(got) != 2 || got[0] != got[1] {
		t.Fatalf("expected both callers to share one handle")
	}
	if ids := reg.Tenants(); len(ids) != 1 || ids[0] != "t1" {
		t.Fatalf("expected a single cache entry for t1, got %v", ids)
	}
	if dialer.dialCount("t1") != 1 {
		t.Fatalf("expected one dial, got %d", dialer.dialCount("t1"))
	}
}

type patient struct {
	MRN  string `bson:"mrn"`
	Name string `bson:"name"`
}

func TestRegistry_TenantIsolation(t *testing.T) {
	reg := NewRegistry(newStubDialer())
	ctx := context.Background()

	a, err := reg.GetModel(ctx, "tenant_a", "Patient")
	if err != nil {
		t.Fatalf("model a: %v", err)
	}
	b, err := reg.GetModel(ctx, "tenant_b", "Patient")
	if err != nil {
		t.Fatalf("model b: %v", err)
	}

	if err := a.InsertOne(ctx, patient{MRN: "P-001", Name: "Alice (A)"}); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if err := b.InsertOne(ctx, patient{MRN: "P-001", Name: "Bob (B)"}); err != nil {
		t.Fatalf("insert b: %v", err)
	}

	var got patient
	if err := a.FindOne(ctx, bson.M{"mrn": "P-001"}, &got); err != nil {
		t.Fatalf("find a: %v", err)
	}
	if got.Name != "Alice (A)" {
		t.Fatalf("tenant A read %q", got.Name)
	}

	n, err := b.UpdateOne(ctx, bson.M{"mrn": "P-001"}, bson.M{"$set": bson.M{"name": "Bob v2"}})
	if err != nil || n != 1 {
		t.Fatalf("update b: n=%d err=%v", n, err)
	}
	if err := a.FindOne(ctx, bson.M{"mrn": "P-001"}, &got); err != nil {
		t.Fatalf("find a after update: %v", err)
	}
	if got.Name != "Alice (A)" {
		t.Fatalf("update through B leaked into A: %q", got.Name)
	}

	var all []patient
	if err := a.Find(ctx, bson.M{}, &all); err != nil {
		t.Fatalf("find all a: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("tenant A sees %d patients, want 1", len(all))
	}
}

func TestRegistry_UnregisteredModel(t *testing.T) {
	reg := NewRegistry(newStubDialer())

	_, err := reg.GetModel(context.Background(), "t1", "Spaceship")
	if !errors.Is(err, ErrUnregisteredModel) {
		t.Fatalf("expected ErrUnregisteredModel, got %v", err)
	}
}

func TestRegistry_HandleRegistersCatalog(t *testing.T) {
	reg := NewRegistry(newStubDialer(), WithCatalog(map[string]string{"Patient": "patients", "Sale": "sales"}))

	h, err := reg.GetConnection(context.Background(), "t1")
	if err != nil {
		t.Fatalf("get connection: %v", err)
	}
	names := h.ModelNames()
	if len(names) != 2 || names[0] != "Patient" || names[1] != "Sale" {
		t.Fatalf("unexpected models: %v", names)
	}
	if _, err := h.Model("Inventory"); !errors.Is(err, ErrUnregisteredModel) {
		t.Fatalf("expected Inventory to be unregistered, got %v", err)
	}
}

func TestRegistry_EvictsUnhealthyHandle(t *testing.T) {
	dialer := newStubDialer()
	reg := NewRegistry(dialer)
	ctx := context.Background()

	first, err := reg.GetConnection(ctx, "t1")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	dialer.partition("t1").healthy.Store(false)

	second, err := reg.GetConnection(ctx, "t1")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second == first {
		t.Fatalf("unhealthy handle was reused")
	}
	if dialer.dialCount("t1") != 2 {
		t.Fatalf("expected a redial, got %d dials", dialer.dialCount("t1"))
	}
	if reg.Len() != 1 {
		t.Fatalf("expected one cache entry, got %d", reg.Len())
	}
}

func TestRegistry_DialFailureIsNotCached(t *testing.T) {
	dialer := newStubDialer()
	dialer.failNext["t1"] = errors.New("connection refused")
	reg := NewRegistry(dialer)
	ctx := context.Background()

	if _, err := reg.GetConnection(ctx, "t1"); err == nil {
		t.Fatalf("expected dial error")
	}
	if reg.Len() != 0 {
		t.Fatalf("failed dial must not be cached")
	}

	h, err := reg.GetConnection(ctx, "t1")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if h == nil || dialer.dialCount("t1") != 2 {
		t.Fatalf("expected a fresh dial on retry, got %d", dialer.dialCount("t1"))
	}
}

func TestRegistry_CallerDeadline(t *testing.T) {
	dialer := newStubDialer()
	dialer.block["slow"] = make(chan struct{})
	reg := NewRegistry(dialer, WithConnectTimeout(time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := reg.GetConnection(ctx, "slow")
	if !errors.Is(err, ErrConnectTimeout) {
		t.Fatalf("expected ErrConnectTimeout, got %v", err)
	}
	close(dialer.block["slow"])
}

func TestRegistry_DialTimeout(t *testing.T) {
	dialer := newStubDialer()
	dialer.block["hung"] = make(chan struct{})
	reg := NewRegistry(dialer, WithConnectTimeout(20*time.Millisecond))

	_, err := reg.GetConnection(context.Background(), "hung")
	if !errors.Is(err, ErrConnectTimeout) {
		t.Fatalf("expected ErrConnectTimeout, got %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("timed out dial must not be cached")
	}
}

func TestRegistry_TenantsDoNotBlockEachOther(t *testing.T) {
	dialer := newStubDialer()
	dialer.block["busy"] = make(chan struct{})
	reg := NewRegistry(dialer)

	go func() {
		_, _ = reg.GetConnection(context.Background(), "busy")
	}()
	time.Sleep(10 * time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := reg.GetConnection(context.Background(), "free")
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("free tenant: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("tenant 'free' blocked behind tenant 'busy'")
	}
	close(dialer.block["busy"])
}

func TestRegistry_EmptyTenant(t *testing.T) {
	reg := NewRegistry(newStubDialer())
	if _, err := reg.GetConnection(context.Background(), ""); !errors.Is(err, ErrEmptyTenant) {
		t.Fatalf("expected ErrEmptyTenant, got %v", err)
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	dialer := newStubDialer()
	reg := NewRegistry(dialer)
	ctx := context.Background()

	for _, id := range []string{"t1", "t2", "t3"} {
		if _, err := reg.GetConnection(ctx, id); err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
	}
	if err := reg.CloseAll(ctx); err != nil {
		t.Fatalf("close all: %v", err)
	}
	for _, id := range []string{"t1", "t2", "t3"} {
		if dialer.partition(id).closed.Load() != 1 {
			t.Fatalf("%s was not closed", id)
		}
	}
	if reg.Len() != 0 {
		t.Fatalf("expected empty cache after CloseAll")
	}
	if _, err := reg.GetConnection(ctx, "t4"); !errors.Is(err, ErrRegistryClosed) {
		t.Fatalf("expected ErrRegistryClosed, got %v", err)
	}
}
