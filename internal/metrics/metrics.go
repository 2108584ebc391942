// Package metrics exposes Prometheus collectors for the read API.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	articlesServed             *prometheus.HistogramVec
	storeErrorsTotal           *prometheus.CounterVec

	once sync.Once
)

// Init registers the collectors on the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
			[]string{"method", "route"},
		)

		articlesServed = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "api_articles_served",
				Help:    "Articles returned per read API response, labeled by route.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 6),
			},
			[]string{"route"},
		)

		storeErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_store_errors_total",
				Help: "Article store failures seen by the read API, labeled by operation.",
			},
			[]string{"op"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveArticlesServed records the size of a list response.
func ObserveArticlesServed(route string, n int) {
	Init()
	articlesServed.WithLabelValues(route).Observe(float64(n))
}

// ObserveStoreError counts a failed store call.
func ObserveStoreError(op string) {
	Init()
	storeErrorsTotal.WithLabelValues(op).Inc()
}
