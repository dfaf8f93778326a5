package fbmetrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Metrics struct {
	registry *prometheus.Registry

	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Events          *prometheus.CounterVec
	Payments        *prometheus.CounterVec
	Webhooks        *prometheus.CounterVec
	Sweeps          *prometheus.CounterVec
}

// New registers the collectors on a private registry, so several instances
// can live in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "funnelboard_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "funnelboard_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "funnelboard_tracked_events_total",
			Help: "Visitor events recorded by type",
		}, []string{"event_type"}),
		Payments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "funnelboard_payments_created_total",
			Help: "Payments created by method and result",
		}, []string{"method", "result"}),
		Webhooks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "funnelboard_webhooks_total",
			Help: "Gateway webhooks by outcome",
		}, []string{"outcome"}),
		Sweeps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "funnelboard_maintenance_rows_total",
			Help: "Rows touched by the maintenance sweeps",
		}, []string{"job"}),
	}
}

// ObserveRequest is safe on a nil receiver.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) Event(eventType string) {
	if m != nil {
		m.Events.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) Payment(method string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.Payments.WithLabelValues(method, result).Inc()
}

func (m *Metrics) Webhook(outcome string) {
	if m != nil {
		m.Webhooks.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Sweep(job string, rows int64) {
	if m != nil {
		m.Sweeps.WithLabelValues(job).Add(float64(rows))
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	log.Info().Str("addr", addr).Msg("metrics listener started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
