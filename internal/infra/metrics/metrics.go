// Package metrics provides Prometheus metrics for the HashPlane agent —
// counters, gauges and histograms for shares, jobs, gate state and
// coordinator calls. Exposed on the local status server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Mining ─────────────────────────────────────────────────────────────────

// SharesSubmitted tracks accepted share submissions.
var SharesSubmitted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "hashplane",
	Name:      "shares_submitted_total",
	Help:      "Total shares accepted by the coordinator.",
})

// SharesFailed tracks share submissions that did not go through.
var SharesFailed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "hashplane",
	Name:      "shares_failed_total",
	Help:      "Total share submissions that failed.",
})

// SearchDuration tracks proof-of-work search wall time in seconds.
var SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "hashplane",
	Name:      "search_duration_seconds",
	Help:      "Proof-of-work search duration in seconds.",
	Buckets:   []float64{0.01, 0.05, 0.25, 1, 5, 15, 60, 300},
})

// ─── Jobs ───────────────────────────────────────────────────────────────────

// JobsCompleted tracks jobs finished with a successful result.
var JobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "hashplane",
	Name:      "jobs_completed_total",
	Help:      "Total inference jobs completed successfully.",
})

// JobsFailed tracks jobs submitted with an error outcome.
var JobsFailed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "hashplane",
	Name:      "jobs_failed_total",
	Help:      "Total inference jobs that ended in a job-level error.",
})

// JobDuration tracks backend generation wall time in seconds.
var JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "hashplane",
	Name:      "job_duration_seconds",
	Help:      "Inference job backend duration in seconds.",
	Buckets:   prometheus.DefBuckets,
})

// ─── Gate ───────────────────────────────────────────────────────────────────

// GateState tracks the current authorization level per loop
// (0=UNBOUND, 1=BOUND_DISABLED, 2=BOUND_ENABLED_UNVERIFIED, 3=BOUND_ENABLED_VERIFIED).
var GateState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "hashplane",
	Name:      "gate_state",
	Help:      "Current gate state per worker loop (0=unbound .. 3=verified).",
}, []string{"loop"})

// ─── Coordinator ────────────────────────────────────────────────────────────

// CoordinatorFailures tracks failed coordinator calls by operation and reason.
var CoordinatorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "hashplane",
	Name:      "coordinator_failures_total",
	Help:      "Total failed coordinator calls by operation and reason.",
}, []string{"op", "reason"})
