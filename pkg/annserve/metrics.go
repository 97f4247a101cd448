package annserve

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors exposed on /metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestErrors   *prometheus.CounterVec

	SearchLatency    *prometheus.HistogramVec
	SearchRecall     prometheus.Histogram
	SearchResultSize *prometheus.HistogramVec

	IndexSize        *prometheus.GaugeVec
	IndexMemoryBytes *prometheus.GaugeVec

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheSize   prometheus.Gauge
}

// NewMetrics registers and returns the service's metric collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "annserve_requests_total", Help: "Total requests by route and status"},
			[]string{"route", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "annserve_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"route"},
		),
		RequestErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "annserve_request_errors_total", Help: "Total request errors by route and category"},
			[]string{"route", "error_type"},
		),
		SearchLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "annserve_search_latency_seconds",
				Help:    "Index search latency in seconds by method",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"method"},
		),
		SearchRecall: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "annserve_search_recall",
				Help:    "Observed recall@N against ground truth, when known",
				Buckets: []float64{.5, .6, .7, .8, .85, .9, .95, .98, 1.0},
			},
		),
		SearchResultSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "annserve_search_result_size",
				Help:    "Number of results returned by search",
				Buckets: []float64{1, 5, 10, 20, 50, 100, 500},
			},
			[]string{"method"},
		),
		IndexSize: promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "annserve_index_size", Help: "Number of base vectors in a loaded index"},
			[]string{"index"},
		),
		IndexMemoryBytes: promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "annserve_index_memory_bytes", Help: "Approximate memory footprint of a loaded index"},
			[]string{"index"},
		),
		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{Name: "annserve_cache_hits_total", Help: "Total query cache hits"},
		),
		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{Name: "annserve_cache_misses_total", Help: "Total query cache misses"},
		),
		CacheSize: promauto.NewGauge(
			prometheus.GaugeOpts{Name: "annserve_cache_size", Help: "Current query cache entry count"},
		),
	}
}

// RecordRequest records a completed request's route, status, and duration.
func (m *Metrics) RecordRequest(route, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(route, status).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordError records a categorized request error.
func (m *Metrics) RecordError(route, errorType string) {
	m.RequestErrors.WithLabelValues(route, errorType).Inc()
}

// RecordSearch records one index query's latency and result size.
func (m *Metrics) RecordSearch(method string, duration time.Duration, resultSize int) {
	m.SearchLatency.WithLabelValues(method).Observe(duration.Seconds())
	m.SearchResultSize.WithLabelValues(method).Observe(float64(resultSize))
}

// UpdateIndexSize sets the base-vector count gauge for a named index.
func (m *Metrics) UpdateIndexSize(name string, size int) {
	m.IndexSize.WithLabelValues(name).Set(float64(size))
}

// UpdateIndexMemory sets the memory-footprint gauge for a named index.
func (m *Metrics) UpdateIndexMemory(name string, bytes int64) {
	m.IndexMemoryBytes.WithLabelValues(name).Set(float64(bytes))
}
