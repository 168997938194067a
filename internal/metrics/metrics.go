// Package metrics provides Prometheus metrics for the media stream pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "shield"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal  prometheus.Counter
	SessionsActive prometheus.Gauge
	AuthRejected   *prometheus.CounterVec
	CumulativeRisk prometheus.Histogram

	// Audio metrics
	MediaFrames  prometheus.Counter
	DecodeErrors prometheus.Counter

	// Chunk metrics
	ChunksFlushed   *prometheus.CounterVec
	ChunksDropped   *prometheus.CounterVec
	SegmentsEmitted *prometheus.CounterVec

	// External services
	ExternalLatency  *prometheus.HistogramVec
	ExternalErrors   *prometheus.CounterVec
	SpoofUnavailable prometheus.Counter

	// Persistence and broadcast
	PersistErrors       *prometheus.CounterVec
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the process-wide instance registered on the default registry.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of media stream sessions accepted",
		}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently open media stream sessions",
		}),
		AuthRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_rejected_total",
			Help:      "Media stream connection attempts rejected before upgrade",
		}, []string{"reason"}),
		CumulativeRisk: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cumulative_risk",
			Help:      "Cumulative call risk at session end",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),

		MediaFrames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_frames_total",
			Help:      "Total inbound media frames received",
		}),
		DecodeErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Inbound frames dropped because they could not be decoded",
		}),

		ChunksFlushed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_flushed_total",
			Help:      "Audio chunks flushed into the pipeline",
		}, []string{"reason"}),
		ChunksDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_dropped_total",
			Help:      "Flushed chunks that produced no segment",
		}, []string{"reason"}),
		SegmentsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_emitted_total",
			Help:      "Transcript segments emitted",
		}, []string{"label"}),

		ExternalLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_call_seconds",
			Help:      "Latency of calls to external services",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 1.5, 2, 5, 10},
		}, []string{"service"}),
		ExternalErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_errors_total",
			Help:      "Failed calls to external services",
		}, []string{"service"}),
		SpoofUnavailable: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spoof_unavailable_total",
			Help:      "Chunks for which no anti-spoof result was available",
		}),

		PersistErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Failed persistence writes",
		}, []string{"record"}),
		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordSessionStart records an accepted session.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a closed session and its final cumulative risk.
func (m *Metrics) RecordSessionEnd(cumulativeRisk float64) {
	m.SessionsActive.Dec()
	m.CumulativeRisk.Observe(cumulativeRisk)
}

// RecordAuthRejected records a refused connection attempt.
func (m *Metrics) RecordAuthRejected(reason string) {
	m.AuthRejected.WithLabelValues(reason).Inc()
}

// RecordMediaFrame records one inbound media frame.
func (m *Metrics) RecordMediaFrame() {
	m.MediaFrames.Inc()
}

// RecordDecodeError records a frame dropped at decode.
func (m *Metrics) RecordDecodeError() {
	m.DecodeErrors.Inc()
}

// RecordFlush records a chunk flush. reason is "target" or "final".
func (m *Metrics) RecordFlush(reason string) {
	m.ChunksFlushed.WithLabelValues(reason).Inc()
}

// RecordChunkDropped records a flush that produced no segment.
func (m *Metrics) RecordChunkDropped(reason string) {
	m.ChunksDropped.WithLabelValues(reason).Inc()
}

// RecordSegment records an emitted segment.
func (m *Metrics) RecordSegment(label string) {
	m.SegmentsEmitted.WithLabelValues(label).Inc()
}

// RecordExternalCall records latency and outcome of an external service call.
func (m *Metrics) RecordExternalCall(service string, err error, latencySeconds float64) {
	m.ExternalLatency.WithLabelValues(service).Observe(latencySeconds)
	if err != nil {
		m.ExternalErrors.WithLabelValues(service).Inc()
	}
}

// RecordSpoofUnavailable records a chunk fused without a fresh spoof result.
func (m *Metrics) RecordSpoofUnavailable() {
	m.SpoofUnavailable.Inc()
}

// RecordPersistError records a failed persistence write.
func (m *Metrics) RecordPersistError(record string) {
	m.PersistErrors.WithLabelValues(record).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic).Inc()
	}
}
