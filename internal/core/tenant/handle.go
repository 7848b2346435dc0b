package tenant

import (
	"fmt"
	"sort"
	"time"
)

// Handle is the cached, shareable view of one tenant's partition together with
// its registered accessors.
type Handle struct {
	tenantID  string
	partition Partition
	models    map[string]Model
	createdAt time.Time
}

func newHandle(tenantID string, p Partition, catalog map[string]string) *Handle {
	models := make(map[string]Model, len(catalog))
	for name, collection := range catalog {
		models[name] = p.Model(name, collection)
	}
	return &Handle{
		tenantID:  tenantID,
		partition: p,
		models:    models,
		createdAt: time.Now().UTC(),
	}
}

func (h *Handle) TenantID() string     { return h.tenantID }
func (h *Handle) CreatedAt() time.Time { return h.createdAt }
func (h *Handle) Healthy() bool        { return h.partition.Healthy() }

// Model returns the accessor registered under name.
func (h *Handle) Model(name string) (Model, error) {
	m, ok := h.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s for tenant %s", ErrUnregisteredModel, name, h.tenantID)
	}
	return m, nil
}

// ModelNames lists the registered accessor names in sorted order.
func (h *Handle) ModelNames() []string {
	names := make([]string, 0, len(h.models))
	for name := range h.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
