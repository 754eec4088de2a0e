// Package metrics exposes Prometheus collectors for the menu service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	refreshCyclesTotal            *prometheus.CounterVec
	refreshCycleDurationSeconds   prometheus.Histogram
	adapterFetchesTotal           *prometheus.CounterVec
	adapterFetchDurationSeconds   *prometheus.HistogramVec
	enrichmentLookupsTotal        *prometheus.CounterVec
	enrichmentCacheEntries        prometheus.Gauge
	snapshotHalls                 prometheus.Gauge
	snapshotItems                 prometheus.Gauge
	snapshotAgeSeconds            prometheus.Gauge
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		refreshCyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "menu_refresh_cycles_total",
				Help: "Total number of refresh cycles, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		refreshCycleDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "menu_refresh_cycle_duration_seconds",
				Help:    "Histogram of refresh cycle wall times.",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
		)

		adapterFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "menu_adapter_fetches_total",
				Help: "Total number of adapter fetches, labeled by university and status.",
			},
			[]string{"university", "status"},
		)

		adapterFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "menu_adapter_fetch_duration_seconds",
				Help:    "Histogram of adapter fetch latencies, labeled by university.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"university"},
		)

		enrichmentLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "menu_enrichment_lookups_total",
				Help: "Total number of nutrition lookups, labeled by result.",
			},
			[]string{"result"},
		)

		enrichmentCacheEntries = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "menu_enrichment_cache_entries",
				Help: "Number of entries currently held in the nutrition cache.",
			},
		)

		snapshotHalls = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "menu_snapshot_halls",
				Help: "Number of dining halls in the current snapshot.",
			},
		)

		snapshotItems = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "menu_snapshot_items",
				Help: "Number of menu items in the current snapshot.",
			},
		)

		snapshotAgeSeconds = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "menu_snapshot_age_seconds",
				Help: "Age of the current snapshot at its last publish, in seconds.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCycle records the outcome and duration of a refresh cycle.
func ObserveCycle(outcome string, duration time.Duration) {
	if refreshCyclesTotal == nil {
		return
	}
	refreshCyclesTotal.WithLabelValues(outcome).Inc()
	refreshCycleDurationSeconds.Observe(duration.Seconds())
}

// ObserveAdapterFetch records one adapter fetch attempt.
func ObserveAdapterFetch(university, status string, duration time.Duration) {
	if adapterFetchesTotal == nil {
		return
	}
	adapterFetchesTotal.WithLabelValues(university, status).Inc()
	adapterFetchDurationSeconds.WithLabelValues(university).Observe(duration.Seconds())
}

// ObserveEnrichment increments the lookup counter for the given result.
func ObserveEnrichment(result string) {
	if enrichmentLookupsTotal == nil {
		return
	}
	enrichmentLookupsTotal.WithLabelValues(result).Inc()
}

// SetEnrichmentCacheEntries updates the nutrition cache size gauge.
func SetEnrichmentCacheEntries(n int) {
	if enrichmentCacheEntries == nil {
		return
	}
	enrichmentCacheEntries.Set(float64(n))
}

// SetSnapshot updates the snapshot gauges after a publish.
func SetSnapshot(halls, items int, age time.Duration) {
	if snapshotHalls == nil {
		return
	}
	snapshotHalls.Set(float64(halls))
	snapshotItems.Set(float64(items))
	snapshotAgeSeconds.Set(age.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
