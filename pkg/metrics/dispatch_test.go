package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestDispatchMetricsExportsAttemptOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewDispatchMetrics(reg)

	metrics.ObserveAttempt("order.paid", true, 120*time.Millisecond)
	metrics.ObserveAttempt("order.paid", false, 80*time.Millisecond)
	metrics.IncExhausted()
	metrics.SetPending(7)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	mf := findMetricFamily(mfs, "dispatch_attempts_total")
	if mf == nil {
		t.Fatal("dispatch_attempts_total not found")
	}
	var successes, failures float64
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), "outcome", "success") {
			successes = metric.GetCounter().GetValue()
		}
		if matchesLabel(metric.GetLabel(), "outcome", "failure") {
			failures = metric.GetCounter().GetValue()
		}
	}
	if successes != 1 || failures != 1 {
		t.Fatalf("expected one success and one failure, got %f/%f", successes, failures)
	}

	exhausted := findMetricFamily(mfs, "dispatch_exhausted_total")
	if exhausted == nil || exhausted.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatal("expected dispatch_exhausted_total=1")
	}

	pending := findMetricFamily(mfs, "dispatch_pending")
	if pending == nil || pending.GetMetric()[0].GetGauge().GetValue() != 7 {
		t.Fatal("expected dispatch_pending=7")
	}
}

func TestDispatchMetricsNilReceiverIsSafe(t *testing.T) {
	var metrics *DispatchMetrics
	metrics.ObserveAttempt("order.paid", true, time.Second)
	metrics.IncExhausted()
	metrics.SetPending(1)
}
