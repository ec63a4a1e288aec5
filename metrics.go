package chronos

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chronos_transitions_dispatched_total",
		Help: "Operating-state transitions dispatched, by kind.",
	}, []string{"kind"})
	dispatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chronos_transition_dispatch_failures_total",
		Help: "Transition dispatches that returned an error, by kind.",
	}, []string{"kind"})
	cooldownSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chronos_transition_cooldown_skips_total",
		Help: "Transitions suppressed by the cooldown window, by kind.",
	}, []string{"kind"})
)
