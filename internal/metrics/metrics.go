// Package metrics holds the Prometheus collectors shared across HTTP
// surfaces, grounded on r3e-network-service_layer's infrastructure/metrics
// package: a single struct of vectors built once and registered against an
// injected prometheus.Registerer, scaled down to the HTTP-request subset
// relevant to the autonomy core's management surface (no blockchain/database
// metrics families — those named the R3E service's own domain, not this
// one's).
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTP holds the request-level instrumentation for a net/http surface.
type HTTP struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
}

// New builds HTTP metrics registered against prometheus.DefaultRegisterer.
func New(service string) *HTTP {
	return NewWithRegistry(service, prometheus.DefaultRegisterer)
}

// NewWithRegistry builds HTTP metrics registered against registerer, e.g. a
// fresh prometheus.NewRegistry() per test to avoid cross-test double
// registration.
func NewWithRegistry(service string, registerer prometheus.Registerer) *HTTP {
	h := &HTTP{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests handled.",
				ConstLabels: prometheus.Labels{"service": service},
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "HTTP request duration in seconds.",
				ConstLabels: prometheus.Labels{"service": service},
				Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "http_requests_in_flight",
				Help:        "Current number of HTTP requests being processed.",
				ConstLabels: prometheus.Labels{"service": service},
			},
		),
	}

	if registerer != nil {
		registerer.MustRegister(h.RequestsTotal, h.RequestDuration, h.RequestsInFlight)
	}
	return h
}

// statusRecorder captures the status code an http.Handler wrote, since
// http.ResponseWriter doesn't expose it after the fact.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Instrument wraps next with request count/duration/in-flight tracking
// labeled by route (the caller's logical route name, not the raw path, so
// path-parameterized routes like /goals/{id} don't explode cardinality).
func (h *HTTP) Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.RequestsInFlight.Inc()
		defer h.RequestsInFlight.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		h.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		h.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
	})
}
