package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Session metrics
	SessionTransitions *prometheus.CounterVec
	SessionState       *prometheus.GaugeVec
	JobsStarted        prometheus.Counter

	// Export metrics
	ExportDuration prometheus.Histogram
	ExportFailures *prometheus.CounterVec
	ExportsSkipped prometheus.Counter

	// Transport metrics
	ConnectionState   *prometheus.GaugeVec
	ReconnectAttempts prometheus.Counter
	BackendLaunches   prometheus.Counter
	WSMessages        *prometheus.CounterVec
	ProtocolDrops     prometheus.Counter

	// Preview metrics
	PreviewFrames *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector on a fresh registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.NewRegistry())
}

// NewMetricsWith creates a metrics collector registered against reg.
func NewMetricsWith(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),
		registry:  reg,

		SessionTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_session_transitions_total",
				Help: "Total number of session state transitions",
			},
			[]string{"from", "to"},
		),
		SessionState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bridge_session_state",
				Help: "Current session state (1 for the active state)",
			},
			[]string{"state"},
		),
		JobsStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_jobs_started_total",
				Help: "Total number of generation requests sent",
			},
		),

		ExportDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bridge_export_duration_seconds",
				Help:    "Export pipeline duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		ExportFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_export_failures_total",
				Help: "Total number of aborted exports",
			},
			[]string{"cause"},
		),
		ExportsSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_exports_skipped_total",
				Help: "Starts that reused artifacts of an unchanged document",
			},
		),

		ConnectionState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bridge_connection_state",
				Help: "Current backend connection state (1 for the active state)",
			},
			[]string{"state"},
		),
		ReconnectAttempts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_reconnect_attempts_total",
				Help: "Total number of scheduled reconnect attempts",
			},
		),
		BackendLaunches: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_backend_launches_total",
				Help: "Total number of local backend launch attempts",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
		ProtocolDrops: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_protocol_drops_total",
				Help: "Inbound messages dropped as unparseable",
			},
		),

		PreviewFrames: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_preview_frames_total",
				Help: "Preview frames received, by outcome",
			},
			[]string{"outcome"},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_uptime_seconds",
				Help: "Bridge uptime in seconds",
			},
		),
	}

	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// UpdateUptime refreshes the uptime gauge. Called on scrape.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}

// RecordTransition records a session state change
func (m *Metrics) RecordTransition(from, to string) {
	m.SessionTransitions.WithLabelValues(from, to).Inc()
	m.SessionState.WithLabelValues(from).Set(0)
	m.SessionState.WithLabelValues(to).Set(1)
}

// IncJobsStarted increments the sent-request counter
func (m *Metrics) IncJobsStarted() {
	m.JobsStarted.Inc()
}

// RecordExport records a finished export attempt
func (m *Metrics) RecordExport(duration time.Duration, cause string) {
	m.ExportDuration.Observe(duration.Seconds())
	if cause != "" {
		m.ExportFailures.WithLabelValues(cause).Inc()
	}
}

// IncExportsSkipped increments the skipped-export counter
func (m *Metrics) IncExportsSkipped() {
	m.ExportsSkipped.Inc()
}

// SetConnectionState records a connection state change
func (m *Metrics) SetConnectionState(from, to string) {
	m.ConnectionState.WithLabelValues(from).Set(0)
	m.ConnectionState.WithLabelValues(to).Set(1)
}

// IncReconnectAttempts increments the reconnect counter
func (m *Metrics) IncReconnectAttempts() {
	m.ReconnectAttempts.Inc()
}

// IncBackendLaunches increments the launch counter
func (m *Metrics) IncBackendLaunches() {
	m.BackendLaunches.Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncProtocolDrops increments the dropped-message counter
func (m *Metrics) IncProtocolDrops() {
	m.ProtocolDrops.Inc()
}

// RecordPreviewFrame records a preview frame outcome ("saved", "throttled", "failed")
func (m *Metrics) RecordPreviewFrame(outcome string) {
	m.PreviewFrames.WithLabelValues(outcome).Inc()
}
