// Package metrics defines and registers the custom Prometheus metrics of the
// identity service. It is the single source of truth for metric names,
// labels, and help strings.
//
// All metrics register with the default Prometheus registry on package
// initialisation through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "identity"

// ── Resolution metrics ────────────────────────────────────────────────────────

// ResolutionsTotal counts profile resolutions.
// Label:
//   - outcome: "resolved", "no_role", "anonymous" or "error"
var ResolutionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resolutions_total",
		Help:      "Total number of identity resolutions, by outcome.",
	},
	[]string{"outcome"},
)

// ResolutionDuration measures a single resolution including store lookups.
// Label:
//   - role: the resolved role, or "none"
var ResolutionDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "resolution_duration_seconds",
		Help:      "Duration of identity resolution from dispatch to completion.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"role"},
)

// PublishTotal counts what happened to completed resolutions.
// Label:
//   - result: "applied" or "superseded"
var PublishTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_total",
		Help:      "Total number of resolution completions, labelled by whether they were applied or discarded as superseded.",
	},
	[]string{"result"},
)

// ── Session metrics ───────────────────────────────────────────────────────────

// ActiveSessions tracks the number of session managers held in memory.
var ActiveSessions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Current number of sessions with a resident identity manager.",
	},
)

// SessionEventsTotal counts session events received from the credential store.
// Label:
//   - kind: the session event kind (e.g. "signed_in", "restored")
var SessionEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_events_total",
		Help:      "Total number of session change events dispatched, by kind.",
	},
	[]string{"kind"},
)

// RefreshQueueDepth tracks pending principal refreshes in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var RefreshQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "refresh_queue_depth",
		Help:      "Current number of principal refreshes pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// ── Access metrics ────────────────────────────────────────────────────────────

// VerdictsTotal counts authorization verdicts.
// Labels:
//   - role: the required role
//   - reason: "allowed" or the deny reason
var VerdictsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verdicts_total",
		Help:      "Total number of access verdicts, by required role and outcome.",
	},
	[]string{"role", "reason"},
)

// ── Registration metrics ──────────────────────────────────────────────────────

// RegistrationsTotal counts registration attempts.
// Labels:
//   - role: "patient", "doctor" or "admin"
//   - result: "created", "repaired", "partial" or "rejected"
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of registrations, by role and result.",
	},
	[]string{"role", "result"},
)

// DoctorReviewsTotal counts administrative doctor reviews.
// Label:
//   - decision: "approved" or "rejected"
var DoctorReviewsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "doctor_reviews_total",
		Help:      "Total number of doctor approval decisions.",
	},
	[]string{"decision"},
)
