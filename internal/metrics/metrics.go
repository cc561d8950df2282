// Package metrics exposes Prometheus instrumentation for the delivery pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SendsTotal counts transport sends by channel (push, browser, email)
	// and outcome (success, invalid_token, transient_error).
	SendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_sends_total",
		Help: "Total transport sends by channel and outcome.",
	}, []string{"channel", "outcome"})

	// CyclesTotal counts delivery cycles by result.
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_cycles_total",
		Help: "Total delivery cycles by result (completed, lock_held, failed).",
	}, []string{"result"})

	// CycleDuration observes end-to-end delivery cycle duration.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "courier_cycle_duration_seconds",
		Help:    "Duration of delivery cycles.",
		Buckets: prometheus.DefBuckets,
	})

	// RecordsProcessed counts records by terminal state (processed, skipped, retried).
	RecordsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_records_total",
		Help: "Total notification records by terminal state.",
	}, []string{"state"})

	// BadgeIncrements counts badge count increments that actually applied.
	BadgeIncrements = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_badge_increments_total",
		Help: "Total badge increments applied (deduplicated by group).",
	})

	// DigestEmails counts digest emails sent by frequency.
	DigestEmails = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_digest_emails_total",
		Help: "Total digest emails sent by frequency.",
	}, []string{"frequency"})
)
