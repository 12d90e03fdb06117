// Package telemetry provides logging setup and Prometheus metrics for Sharebook.
//
// All metrics are registered against the default Prometheus registry and are
// served by the side-channel metrics server started in cmd/server:
//
//	GET http://<host>:<SHAREBOOK_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// HTTP metrics are labelled with the Gin route template (c.FullPath()) rather than
// the raw URL so project and chapter ids never become label values.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharebook_http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sharebook_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Content pipeline metrics.
//
// ChapterRendersTotal is labelled by renderer variant: "legacy" for the regex
// pipeline and "safe" for the sanitized goldmark renderer.
var (
	ChapterRendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharebook_chapter_renders_total",
			Help: "Total number of chapter bodies rendered to HTML, by renderer variant.",
		},
		[]string{"variant"},
	)

	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharebook_exports_total",
			Help: "Total number of project PDF exports, by outcome.",
		},
		[]string{"status"},
	)
)

// Assistant and credential metrics. Provider labels are the registered provider
// names ("openai", "gemini"); they never carry user data.
var (
	AIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharebook_ai_requests_total",
			Help: "Total number of AI assistant completion requests, by provider, mode, and outcome.",
		},
		[]string{"provider", "mode", "status"},
	)

	AIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sharebook_ai_request_duration_seconds",
			Help:    "Latency of upstream AI completion calls, by provider.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	CredentialOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharebook_credential_operations_total",
			Help: "Total number of credential store operations, by operation and result.",
		},
		[]string{"op", "result"},
	)
)

// StorageOperationsTotal counts object storage calls by logical bucket, operation, and outcome.
var StorageOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sharebook_storage_operations_total",
		Help: "Total number of object storage operations, by bucket, operation, and outcome.",
	},
	[]string{"bucket", "op", "status"},
)

// DBOpenConnections tracks the open connections held by the sql.DB pool.
// It is sampled every 30 seconds by StartDBStatsCollector.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "sharebook_db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StatusLabel turns an error into the "ok"/"error" label used by the outcome metrics.
func StatusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// StartDBStatsCollector samples sql.DB pool statistics every 30 seconds.
// The goroutine exits once the database stops answering pings, which happens
// after main closes the pool on shutdown.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
