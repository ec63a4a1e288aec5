package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chronos_events_applied_total",
		Help: "Special events whose station overrides were applied.",
	})
	eventsRestored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chronos_events_restored_total",
		Help: "Special events whose stations were fully restored.",
	})
	restoreFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chronos_events_restore_failures_total",
		Help: "Event restores that left at least one station overridden.",
	})
)
