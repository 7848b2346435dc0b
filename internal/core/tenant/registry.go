package tenant

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/medcloud/tenantgate/internal/pkg/metrics"
)

const (
	defaultConnectTimeout = 10 * time.Second
	closeTimeout          = 5 * time.Second
)

// Registry lazily creates and caches one Handle per tenant. It is safe for
// concurrent use; concurrent first accesses for the same tenant share a single
// dial, and the cache lock is never held across a dial so tenants do not block
// each other.
type Registry struct {
	dialer         Dialer
	catalog        map[string]string
	connectTimeout time.Duration
	log            zerolog.Logger

	mu      sync.RWMutex
	handles map[string]*Handle
	closed  bool

	group singleflight.Group
}

// Option configures a Registry.
type Option func(*Registry)

// WithCatalog replaces DefaultCatalog.
func WithCatalog(catalog map[string]string) Option {
	return func(r *Registry) {
		r.catalog = make(map[string]string, len(catalog))
		for k, v := range catalog {
			r.catalog[k] = v
		}
	}
}

// WithConnectTimeout bounds a single dial regardless of the callers waiting on it.
func WithConnectTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.connectTimeout = d
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(r *Registry) { r.log = log }
}

func NewRegistry(dialer Dialer, opts ...Option) *Registry {
	r := &Registry{
		dialer:         dialer,
		catalog:        DefaultCatalog,
		connectTimeout: defaultConnectTimeout,
		log:            zerolog.Nop(),
		handles:        make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetConnection returns the cached healthy handle for tenantID, dialing the
// partition on first use or after the previous handle turned unhealthy.
// Dial failures are returned to every waiting caller and are not cached.
// If ctx ends before the dial completes, ErrConnectTimeout is returned while
// the dial itself continues for the other callers.
func (r *Registry) GetConnection(ctx context.Context, tenantID string) (*Handle, error) {
	if tenantID == "" {
		return nil, ErrEmptyTenant
	}
	if h := r.cached(tenantID); h != nil {
		return h, nil
	}

	ch := r.group.DoChan(tenantID, func() (any, error) {
		return r.connect(ctx, tenantID)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Handle), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: tenant %s: %v", ErrConnectTimeout, tenantID, ctx.Err())
	}
}

// GetModel returns the accessor name on tenantID's handle.
func (r *Registry) GetModel(ctx context.Context, tenantID, name string) (Model, error) {
	h, err := r.GetConnection(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return h.Model(name)
}

// CloseAll closes every cached partition and waits for all of them. The
// registry refuses new connections afterwards.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	handles := r.handles
	r.handles = make(map[string]*Handle)
	r.mu.Unlock()
	metrics.TenantConnectionsOpen.Set(0)

	r.log.Info().Int("tenants", len(handles)).Msg("closing tenant connections")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for id, h := range handles {
		wg.Add(1)
		go func(id string, h *Handle) {
			defer wg.Done()
			if err := h.partition.Close(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("close tenant %s: %w", id, err))
				mu.Unlock()
			}
		}(id, h)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Len returns the number of cached handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Tenants lists the cached tenant ids in sorted order.
func (r *Registry) Tenants() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (r *Registry) cached(tenantID string) *Handle {
	r.mu.RLock()
	h, ok := r.handles[tenantID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	if h.Healthy() {
		return h
	}
	r.evict(tenantID, h)
	return nil
}

func (r *Registry) evict(tenantID string, h *Handle) {
	r.mu.Lock()
	cur, ok := r.handles[tenantID]
	if ok && cur == h {
		delete(r.handles, tenantID)
	}
	n := len(r.handles)
	r.mu.Unlock()
	if !ok || cur != h {
		return
	}

	metrics.TenantEvictionsTotal.Inc()
	metrics.TenantConnectionsOpen.Set(float64(n))
	r.log.Warn().Str("tenant_id", tenantID).Msg("evicting unhealthy tenant connection")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := h.partition.Close(ctx); err != nil {
			r.log.Warn().Err(err).Str("tenant_id", tenantID).Msg("close evicted tenant connection")
		}
	}()
}

func (r *Registry) connect(ctx context.Context, tenantID string) (*Handle, error) {
	// A flight that started after the previous one stored its handle finds it here.
	if h := r.cached(tenantID); h != nil {
		return h, nil
	}
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, ErrRegistryClosed
	}

	// The dial is shared by every waiting caller, so it must not die with the
	// first caller's request.
	dialCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.connectTimeout)
	defer cancel()

	start := time.Now()
	p, err := r.dialer.Dial(dialCtx, tenantID)
	metrics.TenantDialDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || dialCtx.Err() != nil {
			metrics.TenantDialsTotal.WithLabelValues("timeout").Inc()
			return nil, fmt.Errorf("%w: tenant %s: %v", ErrConnectTimeout, tenantID, err)
		}
		metrics.TenantDialsTotal.WithLabelValues("error").Inc()
		r.log.Error().Err(err).Str("tenant_id", tenantID).Msg("tenant connection failed")
		return nil, fmt.Errorf("connect tenant %s: %w", tenantID, err)
	}
	metrics.TenantDialsTotal.WithLabelValues("ok").Inc()

	h := newHandle(tenantID, p, r.catalog)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = p.Close(dialCtx)
		return nil, ErrRegistryClosed
	}
	r.handles[tenantID] = h
	n := len(r.handles)
	r.mu.Unlock()

	metrics.TenantConnectionsOpen.Set(float64(n))
	r.log.Info().
		Str("tenant_id", tenantID).
		Dur("took", time.Since(start)).
		Msg("tenant connection established")

	return h, nil
}
