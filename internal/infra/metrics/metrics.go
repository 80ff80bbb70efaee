// Package metrics provides Prometheus metrics for the QOR ledgers:
// counters, gauges and histograms for ledger operations, trading,
// resolution, governance and the HTTP interface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Ledger Operations ──────────────────────────────────────────────────────

// LedgerOps counts mutating ledger operations by outcome
// ("ok", "replayed", or an error kind).
var LedgerOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "qor",
	Name:      "ledger_operations_total",
	Help:      "Total mutating ledger operations by operation and outcome.",
}, []string{"op", "outcome"})

// LedgerOpLatency tracks time spent inside a ledger operation, lock wait included.
var LedgerOpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "qor",
	Name:      "ledger_operation_seconds",
	Help:      "Ledger operation duration in seconds.",
	Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
}, []string{"op"})

// ─── Registry ───────────────────────────────────────────────────────────────

// RobotsRegistered counts successful registrations.
var RobotsRegistered = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "qor",
	Name:      "robots_registered_total",
	Help:      "Total robots registered.",
})

// ReputationAdjustments counts reputation changes by direction.
var ReputationAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "qor",
	Name:      "reputation_adjustments_total",
	Help:      "Total reputation adjustments by direction.",
}, []string{"direction"})

// ─── Market ─────────────────────────────────────────────────────────────────

// Trades counts buys by side.
var Trades = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "qor",
	Name:      "trades_total",
	Help:      "Total positions bought by side.",
}, []string{"side"})

// TradeVolume tracks minor units deposited by side.
var TradeVolume = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "qor",
	Name:      "trade_volume_minor_total",
	Help:      "Total minor units deposited into pools by side.",
}, []string{"side"})

// TasksResolved counts resolutions by outcome.
var TasksResolved = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "qor",
	Name:      "tasks_resolved_total",
	Help:      "Total tasks resolved by outcome.",
}, []string{"outcome"})

// Payouts tracks minor units paid out on redemption.
var Payouts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "qor",
	Name:      "payouts_minor_total",
	Help:      "Total minor units paid to winning positions.",
})

// ─── Governance ─────────────────────────────────────────────────────────────

// VotesCast counts votes by support.
var VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "qor",
	Name:      "votes_cast_total",
	Help:      "Total votes cast by support.",
}, []string{"support"})

// ProposalsExecuted counts executed proposals.
var ProposalsExecuted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "qor",
	Name:      "proposals_executed_total",
	Help:      "Total proposals executed.",
})

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPLatency tracks request duration by route pattern and status class.
var HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "qor",
	Name:      "http_request_seconds",
	Help:      "HTTP request duration in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route", "status"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "qor",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})
