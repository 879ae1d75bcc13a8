// Package metrics defines the Prometheus collectors used by the dataset
// services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	LookupsTotal         *prometheus.CounterVec
	LookupLatency        *prometheus.HistogramVec
	LinesSkipped         *prometheus.HistogramVec
	CollectionSize       *prometheus.GaugeVec
	CollectionShards     *prometheus.GaugeVec
	CacheHitsTotal       *prometheus.CounterVec
	CacheMissesTotal     *prometheus.CounterVec
	PairsSampledTotal    *prometheus.CounterVec
	PairsExportedTotal   *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		LookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dataset_lookups_total",
				Help: "Record lookups by collection and result kind.",
			},
			[]string{"collection", "result"},
		),
		LookupLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dataset_lookup_latency_seconds",
				Help:    "Record lookup latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"collection"},
		),
		LinesSkipped: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dataset_lines_skipped",
				Help:    "Lines decoded and discarded to reach a record.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
			[]string{"collection"},
		),
		CollectionSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dataset_collection_records",
				Help: "Number of records per collection.",
			},
			[]string{"collection"},
		),
		CollectionShards: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dataset_collection_shards",
				Help: "Number of shards per collection.",
			},
			[]string{"collection"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dataset_cache_hits_total",
				Help: "Record cache hits by collection.",
			},
			[]string{"collection"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dataset_cache_misses_total",
				Help: "Record cache misses by collection.",
			},
			[]string{"collection"},
		),
		PairsSampledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairs_sampled_total",
				Help: "Training pairs sampled by result kind.",
			},
			[]string{"result"},
		),
		PairsExportedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairs_exported_total",
				Help: "Training pairs written by sink.",
			},
			[]string{"sink"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.LookupsTotal,
		m.LookupLatency,
		m.LinesSkipped,
		m.CollectionSize,
		m.CollectionShards,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.PairsSampledTotal,
		m.PairsExportedTotal,
		m.CircuitBreakerState,
	)

	return m
}

// ObserveLookup records one record lookup against collection.
func (m *Metrics) ObserveLookup(collection string, err error, elapsed time.Duration, skipped int) {
	if m == nil {
		return
	}
	m.LookupsTotal.WithLabelValues(collection, dserrors.Kind(err)).Inc()
	m.LookupLatency.WithLabelValues(collection).Observe(elapsed.Seconds())
	if skipped >= 0 {
		m.LinesSkipped.WithLabelValues(collection).Observe(float64(skipped))
	}
}

// SetCollection publishes the shape of an opened collection.
func (m *Metrics) SetCollection(collection string, records, shards int) {
	if m == nil {
		return
	}
	m.CollectionSize.WithLabelValues(collection).Set(float64(records))
	m.CollectionShards.WithLabelValues(collection).Set(float64(shards))
}

// CacheResult counts a cache hit or miss for collection.
func (m *Metrics) CacheResult(collection string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(collection).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(collection).Inc()
}

// PairSampled counts one sampling attempt by its outcome.
func (m *Metrics) PairSampled(err error) {
	if m == nil {
		return
	}
	m.PairsSampledTotal.WithLabelValues(dserrors.Kind(err)).Inc()
}

// PairsExported counts n pairs accepted by sink.
func (m *Metrics) PairsExported(sink string, n int) {
	if m == nil {
		return
	}
	m.PairsExportedTotal.WithLabelValues(sink).Add(float64(n))
}

// SetBreakerState publishes a circuit breaker state as its numeric code.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// HandlerFor returns a scrape handler for a specific gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
