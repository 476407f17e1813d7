package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics records delivery outcomes for the webhook dispatch worker.
type DispatchMetrics struct {
	attempts  *prometheus.CounterVec
	exhausted prometheus.Counter
	duration  *prometheus.HistogramVec
	pending   prometheus.Gauge
}

// NewDispatchMetrics registers the dispatch metrics on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_attempts_total",
		Help: "Delivery attempts by event type and outcome.",
	}, []string{"event_type", "outcome"})
	exhausted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_exhausted_total",
		Help: "Transition events that ran out of delivery attempts.",
	})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_attempt_duration_seconds",
		Help:    "Duration of delivery attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_pending",
		Help: "Events awaiting delivery at the last poll.",
	})
	reg.MustRegister(attempts, exhausted, duration, pending)
	return &DispatchMetrics{
		attempts:  attempts,
		exhausted: exhausted,
		duration:  duration,
		pending:   pending,
	}
}

// ObserveAttempt records one delivery attempt and its outcome.
func (d *DispatchMetrics) ObserveAttempt(eventType string, success bool, duration time.Duration) {
	if d == nil || d.attempts == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	d.attempts.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
	d.duration.WithLabelValues(normalizeLabel(eventType)).Observe(duration.Seconds())
}

// IncExhausted counts an event whose retry budget ran out.
func (d *DispatchMetrics) IncExhausted() {
	if d == nil || d.exhausted == nil {
		return
	}
	d.exhausted.Inc()
}

// SetPending records the pending backlog size observed at a poll.
func (d *DispatchMetrics) SetPending(n int) {
	if d == nil || d.pending == nil {
		return
	}
	d.pending.Set(float64(n))
}
