package api

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/newsdesk/activity"
)

func TestLoginFailureSpikeAlert(t *testing.T) {
	var mu sync.Mutex
	var alerts []AlertEvent
	collector := newMetricsCollector(func(e AlertEvent) {
		mu.Lock()
		alerts = append(alerts, e)
		mu.Unlock()
	})
	// Override threshold for fast testing.
	collector.loginThreshold = 5

	// Below threshold, no alert.
	for i := 0; i < 4; i++ {
		collector.recordEvent(AuditLoginFailure)
	}
	mu.Lock()
	assert.Empty(t, alerts, "no alert below threshold")
	mu.Unlock()

	// The 5th failure should trigger an alert.
	collector.recordEvent(AuditLoginFailure)
	mu.Lock()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertLoginFailureSpike, alerts[0].Type)
	assert.Equal(t, 5, alerts[0].Count)
	mu.Unlock()
}

func TestMetricsNoAlertWithoutCallback(t *testing.T) {
	// A nil alertFn should not panic.
	collector := newMetricsCollector(nil)
	collector.recordEvent(AuditLoginFailure)
	// Should not panic.
}

func TestMetricsNilCollector(t *testing.T) {
	// A nil collector should not panic.
	var collector *metricsCollector
	collector.recordEvent(AuditLoginFailure)
}

func TestMetricsSlidingWindowExpiry(t *testing.T) {
	var mu sync.Mutex
	var alerts []AlertEvent
	collector := newMetricsCollector(func(e AlertEvent) {
		mu.Lock()
		alerts = append(alerts, e)
		mu.Unlock()
	})
	collector.loginThreshold = 5
	collector.loginWindow = 100 * time.Millisecond

	// Record 4 failures.
	for i := 0; i < 4; i++ {
		collector.recordEvent(AuditLoginFailure)
	}

	// Wait for them to slide out of the window.
	time.Sleep(150 * time.Millisecond)

	// One more after the window slid; the old ones no longer count.
	collector.recordEvent(AuditLoginFailure)
	mu.Lock()
	assert.Empty(t, alerts, "old failures should not count after window expiry")
	mu.Unlock()
}

func TestMetricsResetAfterAlert(t *testing.T) {
	var mu sync.Mutex
	var alerts []AlertEvent
	collector := newMetricsCollector(func(e AlertEvent) {
		mu.Lock()
		alerts = append(alerts, e)
		mu.Unlock()
	})
	collector.loginThreshold = 3

	// Trigger first alert.
	for i := 0; i < 3; i++ {
		collector.recordEvent(AuditLoginFailure)
	}
	mu.Lock()
	require.Len(t, alerts, 1, "first alert triggered")
	mu.Unlock()

	// Counter was reset, so 3 more are needed.
	for i := 0; i < 2; i++ {
		collector.recordEvent(AuditLoginFailure)
	}
	mu.Lock()
	assert.Len(t, alerts, 1, "no second alert yet")
	mu.Unlock()

	collector.recordEvent(AuditLoginFailure)
	mu.Lock()
	assert.Len(t, alerts, 2, "second alert triggered")
	mu.Unlock()
}

func TestPrometheusCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.login("success")
	m.login("failure")
	m.login("failure")
	m.logout()
	m.profileUpdated()
	m.ObserveExtend(activity.TriggerSignal, true)
	m.ObserveExtend(activity.TriggerTick, false)

	assert.InDelta(t, 1, testutil.ToFloat64(m.logins.WithLabelValues("success")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.logins.WithLabelValues("failure")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.logouts), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.profileUpdates), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.extends.WithLabelValues("signal", "true")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.extends.WithLabelValues("tick", "false")), 0)
}

func TestAuthenticatedGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	var authed bool
	m.WatchAuthenticated(reg, func() bool { return authed })

	families, err := reg.Gather()
	require.NoError(t, err)
	gauge := findMetric(t, families, "newsdesk_authenticated")
	assert.InDelta(t, 0, gauge, 0)

	authed = true
	families, err = reg.Gather()
	require.NoError(t, err)
	assert.InDelta(t, 1, findMetric(t, families, "newsdesk_authenticated"), 0)
}

func TestNilMetricsIgnored(t *testing.T) {
	var m *Metrics
	m.login("success")
	m.logout()
	m.profileUpdated()
	m.ObserveExtend(activity.TriggerTick, true)
}

func findMetric(t *testing.T, families []*dto.MetricFamily, name string) float64 {
	t.Helper()
	for _, f := range families {
		if f.GetName() == name {
			require.Len(t, f.GetMetric(), 1)
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}
