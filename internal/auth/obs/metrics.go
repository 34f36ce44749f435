// Package obs holds the Prometheus instrumentation for the auth service.
package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"outcome"}, // ok, invalid, locked, twofa_pending
	)

	registrationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_registrations_total",
		Help: "Successful account registrations.",
	})

	otpIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_otp_issued_total",
			Help: "One-time codes generated by purpose.",
		},
		[]string{"purpose"},
	)

	otpValidatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_otp_validated_total",
			Help: "One-time code validation attempts by outcome.",
		},
		[]string{"outcome"}, // ok, mismatch, expired, consumed, exhausted, not_found
	)

	rateLimitRejectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_rate_limit_rejects_total",
		Help: "Requests rejected by the HTTP rate limiter.",
	})
)

// Init registers all collectors with the default registry. Call once at
// startup.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		loginsTotal, registrationsTotal,
		otpIssuedTotal, otpValidatedTotal, rateLimitRejectsTotal,
	)
}

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveLogin(outcome string) { loginsTotal.WithLabelValues(outcome).Inc() }

func ObserveRegistration() { registrationsTotal.Inc() }

func ObserveOTPIssued(purpose string) { otpIssuedTotal.WithLabelValues(purpose).Inc() }

func ObserveOTPValidated(outcome string) { otpValidatedTotal.WithLabelValues(outcome).Inc() }

func ObserveRateLimitReject() { rateLimitRejectsTotal.Inc() }

// Instrument wraps an http.Handler with request counting and latency
// observation.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpInFlight.Dec()
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(duration)
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
