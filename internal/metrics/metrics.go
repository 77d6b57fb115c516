package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stylebook",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stylebook",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	admissionRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stylebook",
			Subsystem: "admission",
			Name:      "rejections_total",
			Help:      "Requests rejected by a rate limiter, backoff lock or concurrency gate.",
		},
		[]string{"limiter"},
	)

	gateInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "stylebook",
			Subsystem: "admission",
			Name:      "gate_inflight",
			Help:      "Permits currently held on a concurrency gate.",
		},
		[]string{"gate"},
	)

	bookingConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stylebook",
			Subsystem: "booking",
			Name:      "slot_conflicts_total",
			Help:      "Slot conflicts, by where they were detected (precheck or constraint).",
		},
		[]string{"stage"},
	)

	aiSuggestions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stylebook",
			Subsystem: "ai",
			Name:      "suggestions_total",
			Help:      "Haircut suggestion calls by result.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		admissionRejections,
		gateInFlight,
		bookingConflicts,
		aiSuggestions,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler records request counts and latency labelled by chi route pattern.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordRejection counts one admission rejection for the named limiter.
func RecordRejection(limiter string) {
	admissionRejections.WithLabelValues(limiter).Inc()
}

// GateAcquired and GateReleased track held permits for the named gate.
func GateAcquired(gate string) {
	gateInFlight.WithLabelValues(gate).Inc()
}

func GateReleased(gate string) {
	gateInFlight.WithLabelValues(gate).Dec()
}

// RecordBookingConflict counts a slot conflict. stage is "precheck" or "constraint".
func RecordBookingConflict(stage string) {
	bookingConflicts.WithLabelValues(stage).Inc()
}

// RecordAISuggestion counts a haircut suggestion outcome.
func RecordAISuggestion(result string) {
	if result == "" {
		result = "unknown"
	}
	aiSuggestions.WithLabelValues(result).Inc()
}

// routePattern keeps label cardinality bounded by using the matched chi pattern
// instead of the raw path, which carries ids.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
