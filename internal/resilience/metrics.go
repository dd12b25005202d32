package resilience

import "github.com/prometheus/client_golang/prometheus"

// Breaker telemetry shares the gateway's metric namespace so provider
// dashboards can join breaker state with charge outcomes.
var (
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pixgw",
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Current breaker state per target: 0=closed, 1=open, 2=half-open.",
		},
		[]string{"target"},
	)
	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixgw",
			Subsystem: "breaker",
			Name:      "transitions_total",
			Help:      "Count of breaker state transitions per target.",
		},
		[]string{"target", "from", "to"},
	)
	BreakerOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixgw",
			Subsystem: "breaker",
			Name:      "opened_total",
			Help:      "Number of times a breaker tripped open per target.",
		},
		[]string{"target"},
	)
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal)
}
