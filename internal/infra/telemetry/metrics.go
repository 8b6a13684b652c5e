package telemetry

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "studio"

// Write outcomes recorded by SyncMetrics.
const (
	OutcomeOK     = "ok"
	OutcomeDenied = "denied"
	OutcomeError  = "error"
)

// SyncMetrics tracks live subscriptions, snapshot emissions, denials and writes.
// A nil *SyncMetrics is valid and records nothing.
type SyncMetrics struct {
	activeSubscriptions *prometheus.GaugeVec
	emissions           *prometheus.CounterVec
	denials             *prometheus.CounterVec
	writes              *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	httpInFlight        prometheus.Gauge
}

// NewSyncMetrics registers the collectors on reg. Collectors already registered by an earlier
// call are reused.
func NewSyncMetrics(reg prometheus.Registerer) (*SyncMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &SyncMetrics{
		activeSubscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_subscriptions",
			Help:      "Number of live document and collection subscriptions",
		}, []string{"kind"}),
		emissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_emissions_total",
			Help:      "Snapshots delivered to subscriptions",
		}, []string{"kind"}),
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permission_denied_total",
			Help:      "Operations rejected by access rules",
		}, []string{"operation"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Non-blocking writes by operation and outcome",
		}, []string{"operation", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests partitioned by method, route, and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of HTTP request latencies in seconds partitioned by method, route, and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
	}

	var err error
	if m.activeSubscriptions, err = registerCollector(reg, m.activeSubscriptions); err != nil {
		return nil, err
	}
	if m.emissions, err = registerCollector(reg, m.emissions); err != nil {
		return nil, err
	}
	if m.denials, err = registerCollector(reg, m.denials); err != nil {
		return nil, err
	}
	if m.writes, err = registerCollector(reg, m.writes); err != nil {
		return nil, err
	}
	if m.httpRequests, err = registerCollector(reg, m.httpRequests); err != nil {
		return nil, err
	}
	if m.httpDuration, err = registerCollector(reg, m.httpDuration); err != nil {
		return nil, err
	}
	if m.httpInFlight, err = registerCollector(reg, m.httpInFlight); err != nil {
		return nil, err
	}
	return m, nil
}

func registerCollector[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// SubscriptionOpened increments the live subscription gauge for kind.
func (m *SyncMetrics) SubscriptionOpened(kind string) {
	if m == nil {
		return
	}
	m.activeSubscriptions.WithLabelValues(kind).Inc()
}

// SubscriptionClosed decrements the live subscription gauge for kind.
func (m *SyncMetrics) SubscriptionClosed(kind string) {
	if m == nil {
		return
	}
	m.activeSubscriptions.WithLabelValues(kind).Dec()
}

// SnapshotDelivered counts an emission accepted by a subscription.
func (m *SyncMetrics) SnapshotDelivered(kind string) {
	if m == nil {
		return
	}
	m.emissions.WithLabelValues(kind).Inc()
}

// PermissionDenied counts a rejection published to the error bus.
func (m *SyncMetrics) PermissionDenied(op string) {
	if m == nil {
		return
	}
	m.denials.WithLabelValues(op).Inc()
}

// WriteFinished counts a completed write.
func (m *SyncMetrics) WriteFinished(op, outcome string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(op, outcome).Inc()
}

// HTTPRequestStarted tracks a request entering the handler chain.
func (m *SyncMetrics) HTTPRequestStarted() {
	if m == nil {
		return
	}
	m.httpInFlight.Inc()
}

// HTTPRequestFinished records a served request and its latency.
func (m *SyncMetrics) HTTPRequestFinished(method, route, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpInFlight.Dec()
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
}
