// Package metrics exposes Prometheus counters for the hot paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the instrument set shared across handlers.
type Metrics struct {
	EventMutations   *prometheus.CounterVec
	DashboardRenders prometheus.Counter
	PlantDeletes     prometheus.Counter
}

// New registers the instruments on the provided registerer.
func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		EventMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "plantlog_event_mutations_total",
			Help: "Event log mutations by kind (insert, update, delete).",
		}, []string{"kind"}),
		DashboardRenders: factory.NewCounter(prometheus.CounterOpts{
			Name: "plantlog_dashboard_renders_total",
			Help: "Dashboard list assemblies served.",
		}),
		PlantDeletes: factory.NewCounter(prometheus.CounterOpts{
			Name: "plantlog_plant_deletes_total",
			Help: "Plant cascade deletions performed.",
		}),
	}
}
