// Package metrics exposes Prometheus instrumentation for analyses and
// terrain sampling.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Analysis metrics
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewscout_analyses_total",
			Help: "Total number of viewshed analyses by outcome",
		},
		[]string{"outcome"}, // "ok", "invalid", "terrain_error", "cancelled", "superseded"
	)

	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "viewscout_analysis_duration_seconds",
			Help:    "Duration of complete viewshed analyses",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	ViewScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "viewscout_view_score",
			Help:    "Distribution of computed ViewScore totals",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	// Terrain sampling metrics
	TerrainRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewscout_terrain_requests_total",
			Help: "Total number of terrain API requests by status",
		},
		[]string{"status"}, // "ok", "rate_limited", "error"
	)

	TerrainRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "viewscout_terrain_request_duration_seconds",
			Help:    "Latency of individual terrain API requests",
			Buckets: prometheus.DefBuckets,
		},
	)

	TerrainPoints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewscout_terrain_points_total",
			Help: "Total number of elevation points resolved by source",
		},
		[]string{"source"}, // "cache", "remote"
	)

	// HTTP API metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewscout_http_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "viewscout_http_request_duration_seconds",
			Help:    "API request latency",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"method", "route"},
	)
)

// RecordAnalysis records the outcome and duration of one analysis.
func RecordAnalysis(outcome string, duration time.Duration) {
	AnalysesTotal.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		AnalysisDuration.Observe(duration.Seconds())
	}
}

// RecordTerrainRequest records one terrain API round trip.
func RecordTerrainRequest(status string, duration time.Duration) {
	TerrainRequests.WithLabelValues(status).Inc()
	TerrainRequestDuration.Observe(duration.Seconds())
}

// RecordHTTPRequest records one API request. route is the matched route
// pattern, not the raw path.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
