// monitor/monitor.go
package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// dropped event reasons
const (
	DropMalformed   = "malformed"
	DropUnknown     = "unknown"
	DropRateLimited = "rate_limited"
	DropRejected    = "rejected"
)

// snapshot outcomes
const (
	SnapshotOK       = "ok"
	SnapshotMissing  = "missing"
	SnapshotFailed   = "failed"
	SnapshotHydrated = "hydrated"
)

// Metrics 所有方法对 nil 接收者安全，测试里可以直接传 nil
type Metrics struct {
	registry          *prometheus.Registry
	startTime         time.Time
	ActiveRooms       prometheus.Gauge
	OpenConnections   prometheus.Gauge
	EventsReceived    *prometheus.CounterVec
	EventsDropped     *prometheus.CounterVec
	Snapshots         *prometheus.CounterVec
	SnapshotLatency   prometheus.Histogram
	BroadcastFailures prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of rooms live in memory",
		}),
		OpenConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_connections",
			Help:      "Number of attached WebSocket connections",
		}),
		EventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Inbound events by type",
		}, []string{"type"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Inbound events dropped by reason",
		}, []string{"reason"}),
		Snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Snapshot saves and loads by outcome",
		}, []string{"outcome"}),
		SnapshotLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_latency_seconds",
			Help:      "Snapshot save latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		BroadcastFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_failures_total",
			Help:      "Frames that could not be queued to a client",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ActiveRooms,
		m.OpenConnections,
		m.EventsReceived,
		m.EventsDropped,
		m.Snapshots,
		m.SnapshotLatency,
		m.BroadcastFailures,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Uptime() time.Duration {
	if m == nil {
		return 0
	}
	return time.Since(m.startTime)
}

func (m *Metrics) RoomOpened() {
	if m != nil {
		m.ActiveRooms.Inc()
	}
}

func (m *Metrics) RoomClosed() {
	if m != nil {
		m.ActiveRooms.Dec()
	}
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.OpenConnections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.OpenConnections.Dec()
	}
}

func (m *Metrics) EventReceived(eventType string) {
	if m != nil {
		m.EventsReceived.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) EventDropped(reason string) {
	if m != nil {
		m.EventsDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ObserveSnapshot(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Snapshots.WithLabelValues(outcome).Inc()
	if outcome == SnapshotOK {
		m.SnapshotLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) BroadcastFailed() {
	if m != nil {
		m.BroadcastFailures.Inc()
	}
}
