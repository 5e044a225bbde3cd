// Package metrics exposes Prometheus counters for the forwarding pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so tests can construct isolated instances
// without duplicate-registration panics.
type Metrics struct {
	registry *prometheus.Registry

	EventsForwarded *prometheus.CounterVec
	EventsDropped   *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	return &Metrics{
		registry: reg,
		EventsForwarded: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "tracking_events_forwarded_total",
			Help: "Events handed to the analytics provider client, by type.",
		}, []string{"type"}),
		EventsDropped: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "tracking_events_dropped_total",
			Help: "Events dropped before or during delivery, by type and reason.",
		}, []string{"type", "reason"}),
	}
}

// Handler serves the Prometheus exposition format for this instance's
// registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
