package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "timeguild"

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	VerificationFailures prometheus.Counter
	SuggestionFailures   prometheus.Counter
	AssistantDuration    *prometheus.HistogramVec
	HTTPRequests         *prometheus.CounterVec
	PushFailures         prometheus.Counter
	StoreEvents          *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		VerificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_failures_total",
			Help:      "Capture verifications that could not be judged.",
		}),
		SuggestionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suggestion_failures_total",
			Help:      "Project suggestions that failed.",
		}),
		AssistantDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assistant_request_duration_seconds",
			Help:      "Latency of AI model calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120},
		}, []string{"kind", "outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status.",
		}, []string{"method", "route", "status"}),
		PushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_failures_total",
			Help:      "Push notifications that could not be delivered.",
		}),
		StoreEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_events_total",
			Help:      "Store change events by type.",
		}, []string{"type"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.VerificationFailures,
		m.SuggestionFailures,
		m.AssistantDuration,
		m.HTTPRequests,
		m.PushFailures,
		m.StoreEvents,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveAssistant records one AI call started at start.
func (m *Metrics) ObserveAssistant(kind string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.AssistantDuration.WithLabelValues(kind, outcome).Observe(time.Since(start).Seconds())
}

// Middleware counts requests by chi route pattern, keeping label
// cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}
