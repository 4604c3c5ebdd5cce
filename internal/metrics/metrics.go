// Package metrics exposes Prometheus instrumentation for refresh cycles and the local API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RefreshCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "currencycheck_refresh_cycles_total",
			Help: "Refresh cycles by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "currencycheck_cache_hits_total",
			Help: "Refresh cycles served from a valid cached set",
		},
		[]string{"class"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "currencycheck_cache_misses_total",
			Help: "Refresh cycles that had to fetch a class",
		},
		[]string{"class"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "currencycheck_fetch_duration_seconds",
			Help:    "Upstream fetch latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"class", "wave"},
	)

	FetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "currencycheck_fetch_errors_total",
			Help: "Upstream fetch failures by class, wave and kind",
		},
		[]string{"class", "wave", "kind"},
	)

	SnapshotEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "currencycheck_snapshot_entries",
			Help: "Entries in the currently published snapshot",
		},
	)

	PriceAlertsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "currencycheck_price_alerts_total",
			Help: "Price move notifications dispatched",
		},
	)

	StreamSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "currencycheck_stream_subscribers",
			Help: "Connected live stream clients",
		},
	)

	StreamDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "currencycheck_stream_dropped_total",
			Help: "Stream clients disconnected for falling behind",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "currencycheck_http_requests_total",
			Help: "Local API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "currencycheck_http_request_duration_seconds",
			Help:    "Local API latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// ObserveFetch records a fetch latency for a class and wave ("priority" or "deferred").
func ObserveFetch(class, wave string, d time.Duration) {
	FetchDuration.WithLabelValues(class, wave).Observe(d.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
