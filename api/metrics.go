package api

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmcleod/newsdesk/activity"
)

// Metrics holds the Prometheus collectors for the console.
type Metrics struct {
	logins         *prometheus.CounterVec
	logouts        prometheus.Counter
	extends        *prometheus.CounterVec
	profileUpdates prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "newsdesk",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "newsdesk",
			Name:      "logouts_total",
			Help:      "Logouts.",
		}),
		extends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "newsdesk",
			Name:      "session_extends_total",
			Help:      "Session extend attempts by trigger and outcome.",
		}, []string{"trigger", "extended"}),
		profileUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "newsdesk",
			Name:      "profile_updates_total",
			Help:      "Successful profile updates.",
		}),
	}
	reg.MustRegister(m.logins, m.logouts, m.extends, m.profileUpdates)
	return m
}

// WatchAuthenticated exports fn as a 0/1 gauge.
func (m *Metrics) WatchAuthenticated(reg prometheus.Registerer, fn func() bool) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "newsdesk",
		Name:      "authenticated",
		Help:      "Whether the console context holds a session.",
	}, func() float64 {
		if fn() {
			return 1
		}
		return 0
	}))
}

// ObserveExtend matches activity.Observer.
func (m *Metrics) ObserveExtend(trigger activity.Trigger, extended bool) {
	if m == nil {
		return
	}
	ok := "false"
	if extended {
		ok = "true"
	}
	m.extends.WithLabelValues(string(trigger), ok).Inc()
}

func (m *Metrics) login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) logout() {
	if m == nil {
		return
	}
	m.logouts.Inc()
}

func (m *Metrics) profileUpdated() {
	if m == nil {
		return
	}
	m.profileUpdates.Inc()
}

// AlertType identifies the kind of anomaly detected.
type AlertType string

const (
	AlertLoginFailureSpike AlertType = "login_failure_spike"
)

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

// metricsCollector tracks a sliding window of login failures.
type metricsCollector struct {
	mu sync.Mutex

	loginFailures  []time.Time
	loginWindow    time.Duration
	loginThreshold int

	alertFn AlertFunc
}

const (
	defaultLoginFailureWindow    = 1 * time.Minute
	defaultLoginFailureThreshold = 50
)

func newMetricsCollector(alertFn AlertFunc) *metricsCollector {
	return &metricsCollector{
		loginWindow:    defaultLoginFailureWindow,
		loginThreshold: defaultLoginFailureThreshold,
		alertFn:        alertFn,
	}
}

// recordEvent inspects an audit event and updates the relevant counters.
func (m *metricsCollector) recordEvent(event AuditEvent) {
	if m == nil || m.alertFn == nil {
		return
	}
	if event == AuditLoginFailure {
		m.recordLoginFailure()
	}
}

func (m *metricsCollector) recordLoginFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.loginFailures = append(m.loginFailures, now)
	m.loginFailures = trimWindow(m.loginFailures, now, m.loginWindow)

	if len(m.loginFailures) >= m.loginThreshold {
		m.alertFn(AlertEvent{
			Type:      AlertLoginFailureSpike,
			Message:   "login failure rate exceeds threshold",
			Count:     len(m.loginFailures),
			Threshold: m.loginThreshold,
			Timestamp: now,
		})
		// Reset to avoid repeated alerts within the same spike.
		m.loginFailures = m.loginFailures[:0]
	}
}

// trimWindow removes entries older than (now - window) from the sorted slice.
func trimWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
