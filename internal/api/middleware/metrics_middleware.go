package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestDuration tracks request duration in seconds
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// requestTotal tracks total number of requests
	requestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// pushConnections tracks currently open push stream connections
	pushConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_push_connections",
			Help: "Number of open notification push connections",
		},
	)

	// pushEventsTotal tracks push events written to clients
	pushEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_push_events_total",
			Help: "Total number of push events delivered, by event type",
		},
		[]string{"type"},
	)
)

// MetricsMiddleware collects metrics for HTTP requests
type MetricsMiddleware struct{}

// NewMetricsMiddleware creates a new metrics middleware
func NewMetricsMiddleware() *MetricsMiddleware {
	return &MetricsMiddleware{}
}

// CollectMetrics collects metrics for HTTP requests
func (m *MetricsMiddleware) CollectMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		// Use the route pattern, not the raw URL, to keep label cardinality
		// bounded across path parameters.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		requestDuration.WithLabelValues(method, path, status).Observe(duration)
		requestTotal.WithLabelValues(method, path, status).Inc()
	}
}

// PushConnectionOpened records a new push stream connection.
func PushConnectionOpened() { pushConnections.Inc() }

// PushConnectionClosed records a push stream connection going away.
func PushConnectionClosed() { pushConnections.Dec() }

// PushEventDelivered records one push event written to a client.
func PushEventDelivered(eventType string) {
	pushEventsTotal.WithLabelValues(eventType).Inc()
}
