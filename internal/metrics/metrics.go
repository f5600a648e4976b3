package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "qr_menu",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qr_menu",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "qr_menu",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	otpIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qr_menu",
			Subsystem: "otp",
			Name:      "issued_total",
			Help:      "Total number of one-time codes issued.",
		},
		[]string{"purpose"},
	)

	otpVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qr_menu",
			Subsystem: "otp",
			Name:      "verifications_total",
			Help:      "Total number of one-time code verification attempts.",
		},
		[]string{"purpose", "result"},
	)

	otpReaped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "qr_menu",
			Subsystem: "otp",
			Name:      "reaped_total",
			Help:      "Total number of expired one-time codes deleted by the reaper.",
		},
	)

	logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qr_menu",
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Total number of login attempts by method and result.",
		},
		[]string{"method", "result"},
	)

	artifacts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qr_menu",
			Subsystem: "menu",
			Name:      "qr_artifacts_total",
			Help:      "QR artifact operations by kind.",
		},
		[]string{"op"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		otpIssued,
		otpVerifications,
		otpReaped,
		logins,
		artifacts,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RequestStarted marks an in-flight request and returns the function recording its outcome.
func RequestStarted() func(method, route string, status int) {
	start := time.Now()
	httpInFlight.Inc()
	return func(method, route string, status int) {
		httpInFlight.Dec()
		httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// OTPIssued counts a code issued for purpose ("registration", "login").
func OTPIssued(purpose string) {
	otpIssued.WithLabelValues(purpose).Inc()
}

// OTPVerification counts a verification attempt and its result.
func OTPVerification(purpose, result string) {
	otpVerifications.WithLabelValues(purpose, result).Inc()
}

// OTPReaped adds n to the reaper's deletion counter.
func OTPReaped(n int64) {
	if n > 0 {
		otpReaped.Add(float64(n))
	}
}

// Login counts a login attempt for method ("password", "otp").
func Login(method string, ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	logins.WithLabelValues(method, result).Inc()
}

// Artifact counts a QR artifact operation ("generate", "delete", "repair").
func Artifact(op string) {
	artifacts.WithLabelValues(op).Inc()
}
