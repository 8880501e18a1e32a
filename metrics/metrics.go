// Package metrics exposes Prometheus collectors for the orchestration engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TurnsTotal counts processed turns by outcome ("ok", "failed").
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "constellation",
		Name:      "turns_total",
		Help:      "Turns processed, by outcome.",
	}, []string{"outcome"})

	// CorrectionsTotal counts turns whose draft required correction.
	CorrectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "constellation",
		Name:      "corrections_total",
		Help:      "Turns whose draft was corrected after auditing.",
	})

	// AuditorFailures counts audits that errored and were degraded to unsafe.
	AuditorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "constellation",
		Name:      "auditor_failures_total",
		Help:      "Audits that failed and were recorded as degraded unsafe results.",
	}, []string{"auditor"})

	// UnsafeVerdicts counts unsafe verdicts by auditor.
	UnsafeVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "constellation",
		Name:      "unsafe_verdicts_total",
		Help:      "Unsafe verdicts, by auditor.",
	}, []string{"auditor"})

	// TurnDuration observes end-to-end turn latency.
	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "constellation",
		Name:      "turn_duration_seconds",
		Help:      "End-to-end turn processing latency.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	// StageDuration observes per-stage audit latency.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "constellation",
		Name:      "stage_duration_seconds",
		Help:      "Audit stage latency, by stage number.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
	}, []string{"stage"})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
