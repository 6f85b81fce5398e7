// Package metrics exposes KissVDB's Prometheus instrumentation, adapted
// from fluxor's pkg/observability/prometheus onto the KV/Vector/Event Bus
// domain in place of EventBus-verticle/database-pool metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultRegistry is the default Prometheus registry.
var DefaultRegistry = prometheus.NewRegistry()

// DefaultRegisterer labels every metric with the service name.
var DefaultRegisterer = prometheus.WrapRegistererWith(prometheus.Labels{"service": "kissvdb"}, DefaultRegistry)

var (
	once sync.Once
	m    *Metrics
)

// Metrics holds every KissVDB Prometheus collector.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	EventBusAppendsTotal    prometheus.Counter
	EventBusAppendDuration  prometheus.Histogram
	EventBusLatestOffset    prometheus.Gauge
	EventBusSubscribersOpen prometheus.Gauge

	KVKeysLive   prometheus.Gauge
	KVOperations *prometheus.CounterVec

	VectorCollections   prometheus.Gauge
	VectorLiveItems     *prometheus.GaugeVec
	VectorSearchTotal   *prometheus.CounterVec
	VectorSearchLatency *prometheus.HistogramVec
	VectorVacuumTotal   prometheus.Counter
}

// Get returns the process-wide Metrics, creating it on first use.
func Get() *Metrics {
	once.Do(func() { m = New(DefaultRegisterer) })
	return m
}

// New creates a fresh Metrics collection registered against registerer.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}
	return &Metrics{
		HTTPRequestsTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kissvdb_http_requests_total",
				Help: "Total HTTP requests handled.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.With(registerer).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kissvdb_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		EventBusAppendsTotal: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "kissvdb_eventbus_appends_total",
				Help: "Total events durably appended to the log.",
			},
		),
		EventBusAppendDuration: promauto.With(registerer).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kissvdb_eventbus_append_duration_seconds",
				Help:    "Time spent publishing one durably-appended event into the live ring.",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5},
			},
		),
		EventBusLatestOffset: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "kissvdb_eventbus_latest_offset",
				Help: "The most recently published event offset.",
			},
		),
		EventBusSubscribersOpen: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "kissvdb_eventbus_subscribers_open",
				Help: "Number of currently open event-stream subscriptions.",
			},
		),
		KVKeysLive: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "kissvdb_kv_keys_live",
				Help: "Number of keys currently in the State Engine, including expired keys not yet swept.",
			},
		),
		KVOperations: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kissvdb_kv_operations_total",
				Help: "KV operations by kind and outcome.",
			},
			[]string{"op", "outcome"},
		),
		VectorCollections: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "kissvdb_vector_collections",
				Help: "Number of open vector collections.",
			},
		),
		VectorLiveItems: promauto.With(registerer).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kissvdb_vector_live_items",
				Help: "Live (non-tombstoned) item count per collection.",
			},
			[]string{"collection"},
		),
		VectorSearchTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kissvdb_vector_search_total",
				Help: "Vector searches by collection and path taken (unfiltered, filtered).",
			},
			[]string{"collection", "path"},
		),
		VectorSearchLatency: promauto.With(registerer).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kissvdb_vector_search_duration_seconds",
				Help:    "Vector search latency by collection.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"collection"},
		),
		VectorVacuumTotal: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "kissvdb_vector_vacuum_total",
				Help: "Total collection vacuum/compaction runs completed.",
			},
		),
	}
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}

// RecordAppend records one durable event-bus append.
func (m *Metrics) RecordAppend(d time.Duration, latestOffset uint64) {
	m.EventBusAppendsTotal.Inc()
	m.EventBusAppendDuration.Observe(d.Seconds())
	m.EventBusLatestOffset.Set(float64(latestOffset))
}

// RecordKVOp records one KV operation outcome ("ok" or a kerrors.Kind tag).
func (m *Metrics) RecordKVOp(op, outcome string) {
	m.KVOperations.WithLabelValues(op, outcome).Inc()
}

// RecordVectorSearch records one vector search's latency and path taken.
func (m *Metrics) RecordVectorSearch(collection, path string, d time.Duration) {
	m.VectorSearchTotal.WithLabelValues(collection, path).Inc()
	m.VectorSearchLatency.WithLabelValues(collection).Observe(d.Seconds())
}
