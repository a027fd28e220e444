package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "infrasec",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "infrasec",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "infrasec",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// Rule set metrics
	rulesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "infrasec",
			Subsystem: "rules",
			Name:      "total_count",
			Help:      "Number of stored rules by status",
		},
		[]string{"status"},
	)

	openConflicts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "infrasec",
			Subsystem: "rules",
			Name:      "conflicts_open_count",
			Help:      "Number of open rule conflicts",
		},
	)

	// Scan metrics
	scansTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "infrasec",
			Subsystem: "scan",
			Name:      "runs_total",
			Help:      "Total number of scans executed",
		},
	)

	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "infrasec",
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Scan duration in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	evaluationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "infrasec",
			Subsystem: "scan",
			Name:      "evaluations_total",
			Help:      "Total number of rule-resource evaluations",
		},
	)

	findingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "infrasec",
			Subsystem: "scan",
			Name:      "findings_total",
			Help:      "Total number of findings by severity",
		},
		[]string{"severity"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "infrasec",
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation", "table"},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns a middleware that records Prometheus metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()

		// Get route pattern from chi
		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}

		status := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, routePattern, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, routePattern, status).Observe(duration)
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetRulesByStatus sets the gauge for stored rules by status
func SetRulesByStatus(status string, count float64) {
	rulesTotal.WithLabelValues(status).Set(count)
}

// SetOpenConflicts sets the gauge for open rule conflicts
func SetOpenConflicts(count float64) {
	openConflicts.Set(count)
}

// RecordScan records a completed scan run
func RecordScan(duration time.Duration, evaluations int) {
	scansTotal.Inc()
	scanDuration.Observe(duration.Seconds())
	evaluationsTotal.Add(float64(evaluations))
}

// RecordFinding records a finding by severity
func RecordFinding(severity string) {
	findingsTotal.WithLabelValues(severity).Inc()
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation, table string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}
