package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"creatorchat-service/pkg/config"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Chat request counter by outcome
	ChatRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_requests_total",
			Help: "Total number of chat requests",
		},
		[]string{"outcome"}, // outcome can be "streamed", "unauthorized", "invalid_request", "model_error"
	)

	// Streamed content events emitted to clients
	ChatStreamEventCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_stream_events_total",
			Help: "Total number of content events emitted on chat streams",
		},
	)

	// Retrieval degradations (empty grounding context served)
	RetrievalDegradedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "retrieval_degraded_total",
			Help: "Total number of chat turns answered without grounding context due to retrieval failure",
		},
	)

	// Webhook event counter by type and outcome
	WebhookEventCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_events_total",
			Help: "Total number of payment-processor webhook events",
		},
		[]string{"type", "outcome"}, // outcome can be "applied", "skipped", "invalid_signature", "failed"
	)

	// Subscription operation counter
	SubscriptionOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_operations_total",
			Help: "Total number of subscription operations",
		},
		[]string{"operation"}, // operation can be "free_subscribe", "free_unsubscribe", "checkout_started", etc.
	)

	// Org operation counter
	OrgOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "org_operations_total",
			Help: "Total number of org operations",
		},
		[]string{"operation"},
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creatorchat_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creatorchat_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // type can be "missing_token", "invalid_token", "db_error" etc.
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "creatorchat_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "creatorchat_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "delete"
	)

	// Retrieval round-trip duration
	RetrievalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "retrieval_duration_seconds",
			Help:    "Duration of retrieval-service round trips in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Gauge metrics
var (
	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "creatorchat_info",
			Help: "Information about the creatorchat service",
		},
		[]string{"version", "environment"},
	)
)

func init() {
	prometheus.MustRegister(ChatRequestCounter)
	prometheus.MustRegister(ChatStreamEventCounter)
	prometheus.MustRegister(RetrievalDegradedCounter)
	prometheus.MustRegister(WebhookEventCounter)
	prometheus.MustRegister(SubscriptionOperationCounter)
	prometheus.MustRegister(OrgOperationCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)

	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)
	prometheus.MustRegister(RetrievalDuration)
}

// InitMetrics sets static service information after config load
func InitMetrics(cfg *config.Config) {
	InfoGauge.With(prometheus.Labels{
		"version":     "1.0.0",
		"environment": cfg.Server.Env,
	}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware records request counts and durations per endpoint
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			endpoint := c.Path()
			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status)
			duration := time.Since(start).Seconds()

			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordChatRequest records a chat request by outcome
func RecordChatRequest(outcome string) {
	ChatRequestCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// RecordWebhookEvent records a webhook event by type and outcome
func RecordWebhookEvent(eventType, outcome string) {
	WebhookEventCounter.With(prometheus.Labels{"type": eventType, "outcome": outcome}).Inc()
}

// RecordSubscriptionOperation records a subscription operation
func RecordSubscriptionOperation(operation string) {
	SubscriptionOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordOrgOperation records an org operation
func RecordOrgOperation(operation string) {
	OrgOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}
