package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts engine activity. Callers own exposition; the engine
// only increments.
type Metrics struct {
	classified     *prometheus.CounterVec
	transforms     *prometheus.CounterVec
	renderFailures *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		classified: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventshift",
			Name:      "events_classified_total",
			Help:      "Events classified, by resolved event type.",
		}, []string{"event_type"}),
		transforms: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventshift",
			Name:      "transforms_total",
			Help:      "Transform attempts, by output format and outcome.",
		}, []string{"format", "outcome"}),
		renderFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventshift",
			Name:      "render_failures_total",
			Help:      "Hard per-event template render failures, by event type.",
		}, []string{"event_type"}),
	}
}
