package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"banalert/internal/model"
)

// Metrics holds the collectors for one process. Methods are safe on a nil
// receiver so callers can run without metrics.
type Metrics struct {
	registry   *prometheus.Registry
	deliveries *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	latency    prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "banalert",
		Name:      "notifications_total",
		Help:      "Ban notifications processed, by ingest source and outcome",
	}, []string{"source", "outcome"})
	m.rejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "banalert",
		Name:      "rejected_total",
		Help:      "Inbound events rejected before forwarding",
	}, []string{"source", "reason"})
	m.latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "banalert",
		Name:      "webhook_duration_seconds",
		Help:      "Time spent posting to the webhook",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
	m.registry.MustRegister(
		m.deliveries,
		m.rejected,
		m.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveDelivery(d model.Delivery) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(d.Source, string(d.Outcome)).Inc()
	if d.Outcome == model.OutcomeDelivered || d.Outcome == model.OutcomeFailed {
		m.latency.Observe(d.Latency.Seconds())
	}
}

func (m *Metrics) ObserveRejected(source, reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(source, reason).Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
