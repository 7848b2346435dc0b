// Package metrics defines and registers the custom Prometheus metrics of the
// access layer. It is the single source of truth for metric names, labels and
// help strings; every metric is registered with the default registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tenantgate"

// ── Identity metrics ──────────────────────────────────────────────────────────

// IdentityResolutionsTotal counts identity resolution outcomes.
// Labels:
//   - source: resolver that produced the outcome ("cookie", "bearer", "session", "none")
//   - result: "ok", "denied" or "error"
var IdentityResolutionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "identity_resolutions_total",
		Help:      "Total number of identity resolutions, by credential source and result.",
	},
	[]string{"source", "result"},
)

// SessionsBridgedTotal counts server sessions materialized for bearer-token owners.
var SessionsBridgedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_bridged_total",
		Help:      "Total number of server sessions created by bridging a bearer token.",
	},
)

// LoginAttemptsTotal counts login attempts.
// Labels:
//   - kind: "owner" or "staff"
//   - result: "ok", "invalid", "disabled", "limited"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by kind and result.",
	},
	[]string{"kind", "result"},
)

// ── Gate metrics ──────────────────────────────────────────────────────────────

// GateDenialsTotal counts requests rejected by an access gate.
// Label:
//   - code: response code ("AUTH_REQUIRED", "FORBIDDEN_ROLE", "NO_SUBSCRIPTION", ...)
var GateDenialsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_denials_total",
		Help:      "Total number of requests denied by an access gate, by code.",
	},
	[]string{"code"},
)

// SubscriptionExpirationsTotal counts subscriptions persisted as expired.
// Label:
//   - path: "lazy" (read-time) or "reconcile" (background job)
var SubscriptionExpirationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subscription_expirations_total",
		Help:      "Total number of subscriptions transitioned from active to expired.",
	},
	[]string{"path"},
)

// ── Tenant connection metrics ─────────────────────────────────────────────────

// TenantConnectionsOpen tracks the number of cached tenant partitions.
var TenantConnectionsOpen = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tenant_connections_open",
		Help:      "Current number of cached tenant partition connections.",
	},
)

// TenantDialsTotal counts physical partition dials.
// Label:
//   - result: "ok", "error" or "timeout"
var TenantDialsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tenant_dials_total",
		Help:      "Total number of tenant partition connection attempts, by result.",
	},
	[]string{"result"},
)

// TenantDialDuration measures how long establishing a partition connection takes.
var TenantDialDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tenant_dial_duration_seconds",
		Help:      "Duration of tenant partition connection establishment.",
		Buckets:   prometheus.DefBuckets,
	},
)

// TenantEvictionsTotal counts cached partitions dropped after turning unhealthy.
var TenantEvictionsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tenant_evictions_total",
		Help:      "Total number of unhealthy tenant connections evicted from the cache.",
	},
)
