// Package metrics holds the Prometheus collectors for pipeline legs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Leg names used as label values.
const (
	LegAcquire = "acquire"
	LegAnalyze = "analyze"
	LegRender  = "render"
)

var (
	legDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clipforge_leg_duration_seconds",
		Help:    "Duration of pipeline legs in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	}, []string{"leg", "outcome"})

	legsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipforge_legs_total",
		Help: "Total number of finished pipeline legs",
	}, []string{"leg", "outcome"})

	rejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipforge_commands_rejected_total",
		Help: "Commands rejected before any state change",
	}, []string{"command", "reason"})

	inFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "clipforge_legs_in_flight",
		Help: "Pipeline legs currently running",
	}, []string{"leg"})
)

// StartLeg marks a leg as running and returns a func that records its
// outcome ("success" or "error") and duration.
func StartLeg(leg string) func(err error) {
	start := time.Now()
	inFlight.WithLabelValues(leg).Inc()
	return func(err error) {
		inFlight.WithLabelValues(leg).Dec()
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		legDuration.WithLabelValues(leg, outcome).Observe(time.Since(start).Seconds())
		legsTotal.WithLabelValues(leg, outcome).Inc()
	}
}

func Rejected(command, reason string) {
	rejectedTotal.WithLabelValues(command, reason).Inc()
}
