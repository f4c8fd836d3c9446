package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inbox_http_requests_total",
		Help: "Total number of HTTP requests handled by the notification server.",
	}, []string{"method", "route", "status"})

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inbox_http_request_duration_seconds",
		Help:    "Latency of notification server requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	notificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inbox_notifications_created_total",
		Help: "Total number of notifications created.",
	}, []string{"type"})

	notificationsRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inbox_notifications_marked_read_total",
		Help: "Total number of notifications transitioned to read.",
	})
)

// Metrics records request counts and latency per route.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		requestLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
