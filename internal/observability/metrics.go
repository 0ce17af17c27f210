package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "chatrelay"

// Stream outcome labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics holds the prometheus collectors for turns, background writes and
// analyses. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// TurnsTotal counts streamed turns by kind (persisted, stateless) and status.
	TurnsTotal *prometheus.CounterVec

	// ColdStartsTotal counts turns that used the no-history provider entry.
	ColdStartsTotal prometheus.Counter

	// ChunksTotal counts fragments relayed to clients.
	ChunksTotal prometheus.Counter

	TimeToFirstChunkSeconds prometheus.Histogram
	TurnDurationSeconds     *prometheus.HistogramVec

	ActiveStreams prometheus.Gauge

	// ClientDisconnectsTotal counts streams whose client went away mid-turn.
	ClientDisconnectsTotal prometheus.Counter

	// PersistTotal counts background writes by status.
	PersistTotal      *prometheus.CounterVec
	PersistQueueDepth prometheus.Gauge

	// EvaluationsTotal counts evaluator calls by status.
	EvaluationsTotal *prometheus.CounterVec

	// FragmentsTotal counts evaluator fragments by outcome (strict, repaired, malformed).
	FragmentsTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
// Pass prometheus.NewRegistry() in tests to keep them isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "stream",
			Name:      "turns_total",
			Help:      "Streamed turns by kind and status",
		}, []string{"kind", "status"}),
		ColdStartsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "stream",
			Name:      "cold_starts_total",
			Help:      "Turns that invoked the provider without history",
		}),
		ChunksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "stream",
			Name:      "chunks_total",
			Help:      "Fragments relayed from the provider",
		}),
		TimeToFirstChunkSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "stream",
			Name:      "time_to_first_chunk_seconds",
			Help:      "Time from provider call to first fragment",
			Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		}),
		TurnDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "stream",
			Name:      "turn_duration_seconds",
			Help:      "Total turn duration",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"status"}),
		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "stream",
			Name:      "active",
			Help:      "Streams currently in flight",
		}),
		ClientDisconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "stream",
			Name:      "client_disconnects_total",
			Help:      "Streams whose client disconnected before the terminal event",
		}),
		PersistTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "persist",
			Name:      "writes_total",
			Help:      "Background message writes by status",
		}, []string{"status"}),
		PersistQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "persist",
			Name:      "queue_depth",
			Help:      "Writes waiting in the background queue",
		}),
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "analysis",
			Name:      "evaluations_total",
			Help:      "Evaluator calls by status",
		}, []string{"status"}),
		FragmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "analysis",
			Name:      "fragments_total",
			Help:      "Evaluator reply fragments by parse outcome",
		}, []string{"outcome"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.TurnsTotal,
			m.ColdStartsTotal,
			m.ChunksTotal,
			m.TimeToFirstChunkSeconds,
			m.TurnDurationSeconds,
			m.ActiveStreams,
			m.ClientDisconnectsTotal,
			m.PersistTotal,
			m.PersistQueueDepth,
			m.EvaluationsTotal,
			m.FragmentsTotal,
		)
	}
	return m
}

func (m *Metrics) StreamStarted() {
	if m == nil {
		return
	}
	m.ActiveStreams.Inc()
}

// StreamFinished records the outcome of one turn. kind is "persisted" or
// "stateless".
func (m *Metrics) StreamFinished(kind, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ActiveStreams.Dec()
	m.TurnsTotal.WithLabelValues(kind, status).Inc()
	m.TurnDurationSeconds.WithLabelValues(status).Observe(elapsed.Seconds())
}

func (m *Metrics) ColdStart() {
	if m == nil {
		return
	}
	m.ColdStartsTotal.Inc()
}

func (m *Metrics) FirstChunk(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.TimeToFirstChunkSeconds.Observe(elapsed.Seconds())
}

func (m *Metrics) Chunk() {
	if m == nil {
		return
	}
	m.ChunksTotal.Inc()
}

func (m *Metrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.ClientDisconnectsTotal.Inc()
}

func (m *Metrics) PersistResult(status string) {
	if m == nil {
		return
	}
	m.PersistTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.PersistQueueDepth.Set(float64(n))
}

func (m *Metrics) Evaluation(status string) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) Fragment(outcome string) {
	if m == nil {
		return
	}
	m.FragmentsTotal.WithLabelValues(outcome).Inc()
}
