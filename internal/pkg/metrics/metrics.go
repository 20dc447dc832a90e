// Package metrics holds the ledger's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "credit_ledger"

// ─── Settlement ─────────────────────────────────────────────────────────────

// Settlements counts settlement attempts by outcome
// (settled, duplicate, or the error kind).
var Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "settlement",
	Name:      "total",
	Help:      "Settlement attempts by outcome.",
}, []string{"outcome"})

var SettlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "settlement",
	Name:      "duration_seconds",
	Help:      "Time spent in the settlement unit of work.",
	Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
})

var CreditsSettled = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "settlement",
	Name:      "credits_total",
	Help:      "Credits moved into buyer wallets by first-time settlements.",
})

// ─── Reconciliation ─────────────────────────────────────────────────────────

var StatusUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reconciler",
	Name:      "status_updates_total",
	Help:      "Payment status updates by target status and outcome.",
}, []string{"status", "outcome"})

var Reversals = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reconciler",
	Name:      "reversals_total",
	Help:      "Settlements whose inventory and wallet effects were reversed.",
})

// ─── Webhooks / side effects ────────────────────────────────────────────────

var WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "webhook",
	Name:      "events_total",
	Help:      "Payment processor webhook deliveries by event type and HTTP status.",
}, []string{"type", "status"})

var NotifierFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "notifier",
	Name:      "failures_total",
	Help:      "Post-commit side effects that failed.",
}, []string{"notifier"})

var HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by route and status.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route", "status"})

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
