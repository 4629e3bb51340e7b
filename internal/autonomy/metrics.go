package autonomy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the autonomy loop, built with
// an explicit Registerer the same way infrastructure/metrics.Metrics does
// in the r3e-network-service_layer example — avoids double-registration
// panics when more than one Orchestrator is constructed in a test binary.
type Metrics struct {
	TicksTotal   prometheus.Counter
	TickDuration prometheus.Histogram
	ActiveGoals  prometheus.Gauge
	PendingTasks prometheus.Gauge
}

// NewMetrics builds and registers the autonomy loop's collectors against
// registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autonomy_ticks_total",
			Help: "Total number of autonomy loop ticks executed.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "autonomy_tick_duration_seconds",
			Help:    "Wall-clock duration of one autonomy loop tick.",
			Buckets: prometheus.DefBuckets,
		}),
		ActiveGoals: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autonomy_active_goals",
			Help: "Number of goals not yet in a terminal state.",
		}),
		PendingTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autonomy_pending_tasks",
			Help: "Number of tasks tracked by the planner in pending status.",
		}),
	}
	registerer.MustRegister(m.TicksTotal, m.TickDuration, m.ActiveGoals, m.PendingTasks)
	return m
}

func (m *Metrics) observeTick(d time.Duration) {
	m.TicksTotal.Inc()
	m.TickDuration.Observe(d.Seconds())
}
