package chronos

import (
	"context"
	"log"
	"time"

	"github.com/theoremus-urban-solutions/transit-chronos/diff"
	"github.com/theoremus-urban-solutions/transit-chronos/schedule"
)

// Kinds of operating-state transitions the watcher can emit.
const (
	TransitionServiceStart  = "service-start"
	TransitionServiceEnd    = "service-end"
	TransitionFarePeriod    = "fare-period-changed"
	TransitionExpressStart  = "express-start"
	TransitionExpressEnd    = "express-end"
	TransitionExtendedStart = "extended-hours-start"
	TransitionExtendedEnd   = "extended-hours-end"
)

// TransitionEvent describes one detected flip of the operating state.
// Express transitions qualify themselves with the window that flipped and
// the lines running express service; the state booleans alone cannot tell a
// morning end from an evening end.
type TransitionEvent struct {
	Kind       string                  `json:"kind"`
	At         time.Time               `json:"at"`
	State      schedule.CompositeState `json:"state"`
	Period     schedule.FarePeriod     `json:"farePeriod,omitempty"`
	PeriodName string                  `json:"farePeriodName,omitempty"`
	Express    string                  `json:"expressWindow,omitempty"`
	Lines      []string                `json:"affectedLines,omitempty"`
	Hours      schedule.Hours          `json:"hours"`
}

// Dispatcher publishes transitions and accumulated network changes to
// whatever consumes them. Implementations must be safe for concurrent use.
type Dispatcher interface {
	DispatchTransition(ctx context.Context, ev TransitionEvent) error
	DispatchChanges(ctx context.Context, changes []diff.Change) error
}

// LogDispatcher writes every dispatch to the process log. It is the default
// sink when no external consumer is wired.
type LogDispatcher struct{}

func (LogDispatcher) DispatchTransition(_ context.Context, ev TransitionEvent) error {
	log.Printf("[dispatch] %s at %s (period=%s)", ev.Kind, ev.At.Format("15:04"), ev.State.FarePeriod)
	return nil
}

func (LogDispatcher) DispatchChanges(_ context.Context, changes []diff.Change) error {
	for _, c := range changes {
		log.Printf("[dispatch] change %s", c.Key())
	}
	return nil
}
