package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	HTTPResponseSize     *prometheus.HistogramVec

	// Optimization cycle metrics
	CyclesTotal      *prometheus.CounterVec
	CycleDuration    *prometheus.HistogramVec
	CyclesInFlight   *prometheus.GaugeVec
	ArmsProcessed    *prometheus.CounterVec
	ApplyOutcomes    *prometheus.CounterVec

	// Platform API metrics
	PlatformAPICallsTotal   *prometheus.CounterVec
	PlatformAPICallDuration *prometheus.HistogramVec
	PlatformAPIErrors       *prometheus.CounterVec
	PlatformRateLimitHits   *prometheus.CounterVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	namespace      = "budgetloop_optimizer"
)

// Init initializes the metrics
func Init() *Metrics {
	defaultMetrics = &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Optimization cycle metrics
		CyclesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Total number of optimization cycles run, by final status",
			},
			[]string{"status"},
		),
		CycleDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Optimization cycle duration in seconds",
				Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),
		CyclesInFlight: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cycles_in_flight",
				Help:      "Current number of optimization cycles running",
			},
			[]string{"account_id"},
		),
		ArmsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "arms_processed_total",
				Help:      "Total number of arms fetched and scored",
			},
			[]string{"platform"},
		),
		ApplyOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "apply_outcomes_total",
				Help:      "Total number of budget apply outcomes, by platform and outcome",
			},
			[]string{"platform", "outcome"},
		),

		// Platform API metrics
		PlatformAPICallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "platform_api_calls_total",
				Help:      "Total number of platform API calls",
			},
			[]string{"platform", "endpoint", "status"},
		),
		PlatformAPICallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "platform_api_call_duration_seconds",
				Help:      "Platform API call duration in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"platform", "endpoint"},
		),
		PlatformAPIErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "platform_api_errors_total",
				Help:      "Total number of platform API errors",
			},
			[]string{"platform", "endpoint", "error_code"},
		),
		PlatformRateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "platform_rate_limit_hits_total",
				Help:      "Total number of rate limit hits",
			},
			[]string{"platform"},
		),

		// Error metrics
		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors",
			},
			[]string{"type", "severity", "component"},
		),
	}

	return defaultMetrics
}

// Default returns the default metrics instance
func Default() *Metrics {
	if defaultMetrics == nil {
		Init()
	}
	return defaultMetrics
}

// GinMiddleware returns a Gin middleware for metrics collection
func GinMiddleware() gin.HandlerFunc {
	m := Default()

	return func(c *gin.Context) {
		// Skip metrics endpoint
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		m.HTTPRequestsInFlight.Inc()

		// Process request
		c.Next()

		m.HTTPRequestsInFlight.Dec()
		duration := time.Since(start).Seconds()

		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "not_found"
		}

		// Record metrics
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		m.HTTPResponseSize.WithLabelValues(c.Request.Method, path).Observe(float64(c.Writer.Size()))
	}
}

// Handler returns the Prometheus HTTP handler
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// ============================================================================
// Helper functions for recording metrics
// ============================================================================

// RecordCycle records a completed optimization cycle.
func (m *Metrics) RecordCycle(status string, duration time.Duration, armsByPlatform map[string]int) {
	m.CyclesTotal.WithLabelValues(status).Inc()
	m.CycleDuration.WithLabelValues(status).Observe(duration.Seconds())
	for platform, count := range armsByPlatform {
		m.ArmsProcessed.WithLabelValues(platform).Add(float64(count))
	}
}

// RecordApplyOutcome records one per-arm budget-apply result.
func (m *Metrics) RecordApplyOutcome(platform, outcome string) {
	m.ApplyOutcomes.WithLabelValues(platform, outcome).Inc()
}

// RecordPlatformAPICall records a platform API call
func (m *Metrics) RecordPlatformAPICall(platform, endpoint, status string, duration time.Duration) {
	m.PlatformAPICallsTotal.WithLabelValues(platform, endpoint, status).Inc()
	m.PlatformAPICallDuration.WithLabelValues(platform, endpoint).Observe(duration.Seconds())
}

// RecordPlatformAPIError records a platform API error
func (m *Metrics) RecordPlatformAPIError(platform, endpoint, errorCode string) {
	m.PlatformAPIErrors.WithLabelValues(platform, endpoint, errorCode).Inc()
}

// RecordRateLimitHit records a rate limit hit
func (m *Metrics) RecordRateLimitHit(platform string) {
	m.PlatformRateLimitHits.WithLabelValues(platform).Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, severity, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, severity, component).Inc()
}

// StartCycle marks an account's optimization cycle as started
func (m *Metrics) StartCycle(accountID string) {
	m.CyclesInFlight.WithLabelValues(accountID).Inc()
}

// EndCycle marks an account's optimization cycle as ended
func (m *Metrics) EndCycle(accountID string) {
	m.CyclesInFlight.WithLabelValues(accountID).Dec()
}
