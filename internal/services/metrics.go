// Prometheus collectors for the dispatch paths. Label cardinality is kept
// deliberately small: dispatch kind and outcome only, never per-user or
// per-phone labels.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// reminderChecks counts reminder scheduler ticks.
	reminderChecks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminder_checks_total",
		Help: "Total number of reminder scheduler ticks.",
	})

	// reminderOutcomes counts per-event reminder outcomes by result
	// (sent, failed, expired, skipped).
	reminderOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_events_total",
			Help: "Per-event reminder outcomes.",
		},
		[]string{"outcome"},
	)

	// fanoutAttempts counts per-contact gateway attempts by dispatch kind
	// (broadcast, rsvp) and outcome (sent, failed).
	fanoutAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_send_attempts_total",
			Help: "Per-contact fan-out send attempts.",
		},
		[]string{"kind", "outcome"},
	)

	// fanoutCompleted counts aggregates that rolled up to sent, by kind.
	fanoutCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_aggregates_completed_total",
			Help: "Fan-out aggregates whose status rolled up to sent.",
		},
		[]string{"kind"},
	)

	// assistantReplies counts assistant outcomes (answered, fallback).
	assistantReplies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_replies_total",
			Help: "Assistant replies by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		reminderChecks,
		reminderOutcomes,
		fanoutAttempts,
		fanoutCompleted,
		assistantReplies,
	)
}
