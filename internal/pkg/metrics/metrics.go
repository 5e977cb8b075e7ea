// Package metrics defines and registers all custom Prometheus metrics for the
// Natours API. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics are registered with the default Prometheus registry through promauto
// when the package is initialised.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "natours"

// ── Authentication metrics ────────────────────────────────────────────────────

// LoginAttemptsTotal counts login attempts.
// Label:
//   - result: "success", "invalid_credentials" or "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, labelled by result.",
	},
	[]string{"result"},
)

// SessionRejectionsTotal counts bearer tokens refused by the session pipeline.
// Label:
//   - reason: "expired", "invalid", "unknown_subject" or "stale"
var SessionRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_rejections_total",
		Help:      "Total number of session tokens rejected, labelled by reason.",
	},
	[]string{"reason"},
)

// PasswordResetsTotal counts password-reset lifecycle steps.
// Label:
//   - stage: "requested", "throttled", "delivery_failed", "completed" or "rejected"
var PasswordResetsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "password_resets_total",
		Help:      "Total number of password reset steps, labelled by stage.",
	},
	[]string{"stage"},
)

// SignupsTotal counts accounts created through signup.
var SignupsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signups_total",
		Help:      "Total number of accounts created.",
	},
)

// ── Hashing metrics ───────────────────────────────────────────────────────────

// PasswordHashDuration measures bcrypt work per operation.
// Label:
//   - op: "hash" or "compare"
var PasswordHashDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "password_hash_duration_seconds",
		Help:      "Duration of password hashing operations.",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
	},
	[]string{"op"},
)

// HashPoolQueueDepth tracks jobs waiting for a hashing worker.
var HashPoolQueueDepth = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "hash_pool_queue_depth",
		Help:      "Current number of jobs pending in the hashing worker pool.",
	},
)
