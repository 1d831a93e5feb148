package telemetry

import "github.com/prometheus/client_golang/prometheus"

var (
	Refreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_refresh_total",
		Help: "Snapshot refresh attempts by trigger and outcome",
	}, []string{"trigger", "outcome"})

	StaleDiscards = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_refresh_stale_discards_total",
		Help: "Refresh results dropped because a newer refresh was already applied",
	})

	SnapshotAge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_snapshot_age_seconds",
		Help: "Age of the snapshot currently served",
	})

	SnapshotCoins = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_snapshot_coins",
		Help: "Number of asset records in the current snapshot",
	})

	UpstreamLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dashboard_upstream_latency_seconds",
		Help:    "Latency of upstream API calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"upstream"})

	UpstreamErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_upstream_errors_total",
		Help: "Failed upstream API calls",
	}, []string{"upstream"})

	InsightFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_insight_fallback_total",
		Help: "Insight requests answered with the fixed fallback",
	})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_http_requests_total",
		Help: "HTTP requests served by status class",
	}, []string{"method", "code"})
)

func init() {
	prometheus.MustRegister(
		Refreshes,
		StaleDiscards,
		SnapshotAge,
		SnapshotCoins,
		UpstreamLatency,
		UpstreamErrors,
		InsightFallbacks,
		HTTPRequests,
	)
}
