package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/poller"
)

const namespace = "checkout_client"

type Metrics struct {
	Registry *prometheus.Registry

	Requests        *prometheus.CounterVec
	LatencyMS       *prometheus.HistogramVec
	Outcomes        *prometheus.CounterVec
	PaymentDuration prometheus.Histogram
	Polls           *prometheus.CounterVec
	PollLatencyMS   prometheus.Histogram
}

// New registers every collector on a fresh registry so tests and multiple
// instances never clash on the global one.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		Registry: reg,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_outcomes_total",
			Help:      "Payment attempts by final checkout state and failure kind.",
		}, []string{"state", "failure_kind"}),
		PaymentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payment_duration_seconds",
			Help:      "Time from payment submission to a confirmed or failed payment.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		}),
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_polls_total",
			Help:      "Job status fetches by reported status, or error.",
		}, []string{"status"}),
		PollLatencyMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_poll_duration_ms",
			Help:      "Job status fetch latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}),
	}
	reg.MustRegister(m.Requests, m.LatencyMS, m.Outcomes, m.PaymentDuration, m.Polls, m.PollLatencyMS)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Record counts a finished payment attempt.
func (m *Metrics) Record(_ context.Context, res checkout.Result) error {
	kind := ""
	if res.Failure != nil {
		kind = string(res.Failure.Kind)
	}
	m.Outcomes.WithLabelValues(res.State.String(), kind).Inc()
	if !res.StartedAt.IsZero() {
		m.PaymentDuration.Observe(res.Duration().Seconds())
	}
	return nil
}

// ObservePoll is meant for poller.Config.OnAttempt. Statuses the server
// invents later are folded into "other" to keep the label set fixed.
func (m *Metrics) ObservePoll(a poller.Attempt) {
	status := string(a.Status)
	switch {
	case a.Err != nil:
		status = "error"
	case !a.Status.IsKnown():
		status = "other"
	}
	m.Polls.WithLabelValues(status).Inc()
	m.PollLatencyMS.Observe(float64(a.Duration.Milliseconds()))
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Instrument records request count and latency per chi route pattern.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		handler := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				handler = r.Method + " " + p
			}
		}
		m.Requests.WithLabelValues(handler, strconv.Itoa(sw.status)).Inc()
		m.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
	})
}

var _ checkout.Sink = (*Metrics)(nil)
