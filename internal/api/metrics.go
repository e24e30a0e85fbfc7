package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loginshield_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "loginshield_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	authAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loginshield_auth_attempts_total",
		Help: "Login attempts by outcome (success, failure, error).",
	}, []string{"outcome"})

	detectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loginshield_injection_detections_total",
		Help: "Rejected injection payloads by route and identified tool.",
	}, []string{"route", "tool"})

	rateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loginshield_rate_limited_total",
		Help: "Requests rejected by a rate limiter.",
	}, []string{"limiter"})

	activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "loginshield_active_sessions",
		Help: "Number of unexpired sessions.",
	})
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, authAttemptsTotal, detectionsTotal, rateLimitedTotal, activeSessions)
}

// MetricsHandler returns the Prometheus metrics HTTP handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// metricsMiddleware records request metrics. The path label is the matched
// route pattern so probes of random URLs do not grow the label set.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rr := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rr, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}
		dur := time.Since(start).Seconds()
		status := strconv.Itoa(rr.statusCode)
		requestsTotal.WithLabelValues(r.Method, path, status).Inc()
		requestDuration.WithLabelValues(r.Method, path).Observe(dur)
	})
}
