package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sawpanic/edgarscore/internal/scoring"
)

// MetricsRegistry holds all Prometheus metrics for edgarscore. It satisfies
// scoring.Observer, cache.Recorder and client.Recorder so one registry can be
// handed to every layer.
type MetricsRegistry struct {
	registry *prometheus.Registry

	TickersProcessed *prometheus.CounterVec
	TickerDuration   *prometheus.HistogramVec

	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	ProviderRequests *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec

	HTTPDuration *prometheus.HistogramVec
}

// NewMetricsRegistry creates a registry with all edgarscore metrics plus the
// Go runtime and process collectors.
func NewMetricsRegistry() *MetricsRegistry {
	m := &MetricsRegistry{
		registry: prometheus.NewRegistry(),

		TickersProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgarscore_tickers_processed_total",
				Help: "Tickers that finished the scoring pipeline by final stage and result",
			},
			[]string{"stage", "result"},
		),

		TickerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edgarscore_ticker_duration_seconds",
				Help:    "Time to fetch and score one ticker",
				Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"result"},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgarscore_cache_hits_total",
				Help: "Cache hits by lookup kind",
			},
			[]string{"kind"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgarscore_cache_misses_total",
				Help: "Cache misses by lookup kind",
			},
			[]string{"kind"},
		),

		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgarscore_provider_requests_total",
				Help: "Outbound provider requests by provider and status",
			},
			[]string{"provider", "status"},
		),

		ProviderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edgarscore_provider_request_duration_seconds",
				Help:    "Outbound provider request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edgarscore_http_request_duration_seconds",
				Help:    "API request latency by route, method and status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.TickersProcessed,
		m.TickerDuration,
		m.CacheHits,
		m.CacheMisses,
		m.ProviderRequests,
		m.ProviderDuration,
		m.HTTPDuration,
	)
	return m
}

// Registry exposes the underlying registry for gathering in tests.
func (m *MetricsRegistry) Registry() *prometheus.Registry { return m.registry }

// TickerDone implements scoring.Observer.
func (m *MetricsRegistry) TickerDone(ticker string, stage scoring.Stage, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.TickersProcessed.WithLabelValues(stage.String(), result).Inc()
	m.TickerDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

// CacheLookup implements cache.Recorder.
func (m *MetricsRegistry) CacheLookup(kind string, hit bool) {
	if hit {
		m.CacheHits.WithLabelValues(kind).Inc()
		return
	}
	m.CacheMisses.WithLabelValues(kind).Inc()
}

// ProviderRequest implements client.Recorder.
func (m *MetricsRegistry) ProviderRequest(provider, status string, elapsed time.Duration) {
	m.ProviderRequests.WithLabelValues(provider, status).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveHTTP records one served request.
func (m *MetricsRegistry) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	m.HTTPDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// MetricsHandler returns the Prometheus metrics HTTP handler
func (m *MetricsRegistry) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
