// Package metrics bundles the Prometheus collectors exposed on the ops
// server. All helpers are nil-safe so instrumentation can be left
// unwired in tests and tools.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector on a dedicated registry.
type Metrics struct {
	Registry *prometheus.Registry

	DiscoverySteps  *prometheus.CounterVec
	DiscoveryNewIDs prometheus.Counter
	SyncOutcomes    *prometheus.CounterVec
	SignalsEmitted  *prometheus.CounterVec
	CatalogFetches  *prometheus.HistogramVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// New constructs and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	discoverySteps := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_discovery_steps_total",
			Help: "Crawl steps taken per discovery surface.",
		},
		[]string{"surface"},
	)
	discoveryNew := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "radar_discovery_new_datasets_total",
			Help: "Dataset ids discovered that were not yet in the registry.",
		},
	)
	syncOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_sync_outcomes_total",
			Help: "Reconciliation and content-sync outcomes.",
		},
		[]string{"outcome"},
	)
	signalsEmitted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_signals_total",
			Help: "Signals produced by refresh passes, by kind.",
		},
		[]string{"kind"},
	)
	catalogFetches := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "radar_catalog_fetch_duration_seconds",
			Help:    "Latency of portal requests by operation.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_http_requests_total",
			Help: "API requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)
	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "radar_http_request_duration_seconds",
			Help:    "API request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	registry.MustRegister(
		discoverySteps, discoveryNew, syncOutcomes, signalsEmitted,
		catalogFetches, httpRequests, httpDuration,
	)

	return &Metrics{
		Registry:        registry,
		DiscoverySteps:  discoverySteps,
		DiscoveryNewIDs: discoveryNew,
		SyncOutcomes:    syncOutcomes,
		SignalsEmitted:  signalsEmitted,
		CatalogFetches:  catalogFetches,
		HTTPRequests:    httpRequests,
		HTTPDuration:    httpDuration,
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// AddDiscoverySteps records crawl steps taken on one surface.
func (m *Metrics) AddDiscoverySteps(surface string, steps int) {
	if m == nil || steps <= 0 {
		return
	}
	m.DiscoverySteps.WithLabelValues(surface).Add(float64(steps))
}

// AddDiscoveryNew records newly found dataset ids.
func (m *Metrics) AddDiscoveryNew(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.DiscoveryNewIDs.Add(float64(count))
}

// AddSyncOutcome records reconcile or content-sync outcomes.
func (m *Metrics) AddSyncOutcome(outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.SyncOutcomes.WithLabelValues(outcome).Add(float64(count))
}

// IncSignal counts one emitted signal.
func (m *Metrics) IncSignal(kind string) {
	if m == nil {
		return
	}
	m.SignalsEmitted.WithLabelValues(kind).Inc()
}

// ObserveCatalogFetch records one portal request.
func (m *Metrics) ObserveCatalogFetch(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.CatalogFetches.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveHTTP records one served API request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
