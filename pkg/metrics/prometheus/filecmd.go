// Package prometheus implements the metrics interfaces with client_golang.
package prometheus

import (
	"time"

	"github.com/marmos91/filecmd/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serverMetrics is the Prometheus implementation of metrics.ServerMetrics.
type serverMetrics struct {
	requestsTotal          *prometheus.CounterVec
	requestDuration        *prometheus.HistogramVec
	bytesTransferred       *prometheus.CounterVec
	activeConnections      prometheus.Gauge
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
	framesRejected         prometheus.Counter
	queueDepth             prometheus.Gauge
	workerRestarts         prometheus.Counter
}

// NewServerMetrics creates a Prometheus-backed ServerMetrics.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
// Must be called at most once per registry.
func NewServerMetrics() metrics.ServerMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopServerMetrics()
	}

	reg := metrics.GetRegistry()

	return &serverMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filecmd_requests_total",
				Help: "Total number of requests by verb and status",
			},
			[]string{"verb", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "filecmd_request_duration_milliseconds",
				Help: "Duration of requests in milliseconds",
				Buckets: []float64{
					1,     // 1ms
					10,    // 10ms
					100,   // 100ms
					1000,  // 1s
					10000, // 10s
				},
			},
			[]string{"verb"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filecmd_bytes_transferred_total",
				Help: "Total bytes received and sent on client connections",
			},
			[]string{"direction"},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "filecmd_active_connections",
				Help: "Current number of open client connections",
			},
		),
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "filecmd_connections_accepted_total",
				Help: "Total number of client connections accepted",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "filecmd_connections_closed_total",
				Help: "Total number of client connections closed",
			},
		),
		connectionsForceClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "filecmd_connections_force_closed_total",
				Help: "Total number of connections force-closed during shutdown timeout",
			},
		),
		framesRejected: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "filecmd_frames_rejected_total",
				Help: "Total number of connections closed for exceeding the maximum frame size",
			},
		),
		queueDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "filecmd_pool_queue_depth",
				Help: "Connections accepted but not yet picked up by a worker",
			},
		),
		workerRestarts: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "filecmd_worker_restarts_total",
				Help: "Total number of worker processes respawned",
			},
		),
	}
}

func (m *serverMetrics) RecordRequest(verb string, status string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(verb, status).Inc()
	m.requestDuration.WithLabelValues(verb).Observe(duration.Seconds() * 1000)
}

func (m *serverMetrics) RecordBytes(direction string, bytes int64) {
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}

func (m *serverMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *serverMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *serverMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *serverMetrics) RecordConnectionForceClosed() {
	m.connectionsForceClosed.Inc()
}

func (m *serverMetrics) RecordFrameRejected() {
	m.framesRejected.Inc()
}

func (m *serverMetrics) SetQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

func (m *serverMetrics) RecordWorkerRestart() {
	m.workerRestarts.Inc()
}
