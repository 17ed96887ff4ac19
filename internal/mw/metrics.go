package mw

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

var (
	metricsOnce     sync.Once
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
)

func initMetrics() {
	metricsOnce.Do(func() {
		requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "downtime",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"})

		requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "downtime",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"})

		if err := prometheus.Register(requestTotal); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				requestTotal = already.ExistingCollector.(*prometheus.CounterVec)
			}
		}
		if err := prometheus.Register(requestDuration); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				requestDuration = already.ExistingCollector.(*prometheus.HistogramVec)
			}
		}
	})
}

// Metrics records request counts and latencies per route template.
func Metrics() gin.HandlerFunc {
	initMetrics()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		labels := prometheus.Labels{
			"method": c.Request.Method,
			"route":  route,
			"status": strconv.Itoa(c.Writer.Status()),
		}
		requestTotal.With(labels).Inc()
		requestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
