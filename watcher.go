package chronos

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/theoremus-urban-solutions/transit-chronos/schedule"
)

// EventSource supplies the currently persisted special events to the
// watcher so extended hours and event fare periods are reflected in the
// computed state.
type EventSource interface {
	ActiveEvents(ctx context.Context) ([]schedule.ActiveEvent, error)
}

// Watcher polls the schedule engine and dispatches a transition whenever
// one of the state dimensions flips between consecutive checks. The first
// check only records a baseline.
type Watcher struct {
	engine     *schedule.Engine
	events     EventSource
	dispatcher Dispatcher
	cooldown   *CooldownCache
	clock      Clock

	mu      sync.Mutex
	last    schedule.CompositeState
	hasLast bool
}

func NewWatcher(engine *schedule.Engine, events EventSource, dispatcher Dispatcher, cooldown *CooldownCache, clock Clock) *Watcher {
	return &Watcher{
		engine:     engine,
		events:     events,
		dispatcher: dispatcher,
		cooldown:   cooldown,
		clock:      clock,
	}
}

// State computes the current composite state, including any active events.
func (w *Watcher) State(ctx context.Context) (schedule.CompositeState, schedule.Hours, error) {
	now := w.clock.Now().In(w.engine.Location())
	events, err := w.activeEvents(ctx)
	if err != nil {
		return schedule.CompositeState{}, schedule.Hours{}, err
	}
	return w.engine.ComputeState(now, events), w.engine.OperatingHours(now, events), nil
}

func (w *Watcher) activeEvents(ctx context.Context) ([]schedule.ActiveEvent, error) {
	if w.events == nil {
		return nil, nil
	}
	events, err := w.events.ActiveEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading active events: %w", err)
	}
	return events, nil
}

// CheckTime compares the current state against the previous check and
// dispatches one transition per flipped dimension. The previous state is
// replaced unconditionally, so a missed dispatch is not retried until the
// dimension flips again.
func (w *Watcher) CheckTime(ctx context.Context) error {
	now := w.clock.Now().In(w.engine.Location())
	events, err := w.activeEvents(ctx)
	if err != nil {
		return err
	}
	state := w.engine.ComputeState(now, events)
	hours := w.engine.OperatingHours(now, events)

	w.mu.Lock()
	last, hasLast := w.last, w.hasLast
	w.last, w.hasLast = state, true
	w.mu.Unlock()

	if !hasLast {
		log.Printf("[watcher] baseline state: running=%v period=%s", state.IsServiceRunning, state.FarePeriod)
		return nil
	}

	base := TransitionEvent{At: now, State: state, Hours: hours}

	if last.IsServiceRunning != state.IsServiceRunning {
		ev := base
		ev.Kind = TransitionServiceEnd
		if state.IsServiceRunning {
			ev.Kind = TransitionServiceStart
		}
		w.dispatch(ctx, ev.Kind, ev)
	}

	// Entering NOCHE coincides with service end and is not announced on its
	// own.
	if last.FarePeriod != state.FarePeriod && state.FarePeriod != schedule.PeriodNoche {
		ev := base
		ev.Kind = TransitionFarePeriod
		ev.Period = state.FarePeriod
		ev.PeriodName = state.FarePeriod.Name()
		w.dispatch(ctx, fmt.Sprintf("fare-%s", state.FarePeriod), ev)
	}

	if last.IsExtendedHours != state.IsExtendedHours {
		ev := base
		ev.Kind = TransitionExtendedEnd
		if state.IsExtendedHours {
			ev.Kind = TransitionExtendedStart
		}
		w.dispatch(ctx, ev.Kind, ev)
	}

	if last.ExpressMorning != state.ExpressMorning {
		ev := base
		ev.Kind = TransitionExpressEnd
		if state.ExpressMorning {
			ev.Kind = TransitionExpressStart
		}
		ev.Express = "morning"
		ev.Lines = w.engine.ExpressLines()
		w.dispatch(ctx, fmt.Sprintf("express-morning-%s", ev.Kind), ev)
	}

	if last.ExpressEvening != state.ExpressEvening {
		ev := base
		ev.Kind = TransitionExpressEnd
		if state.ExpressEvening {
			ev.Kind = TransitionExpressStart
		}
		ev.Express = "evening"
		ev.Lines = w.engine.ExpressLines()
		w.dispatch(ctx, fmt.Sprintf("express-evening-%s", ev.Kind), ev)
	}

	return nil
}

func (w *Watcher) dispatch(ctx context.Context, key string, ev TransitionEvent) {
	if !w.cooldown.Allow(key) {
		cooldownSkips.WithLabelValues(ev.Kind).Inc()
		log.Printf("[watcher] %s suppressed by cooldown", key)
		return
	}
	if err := w.dispatcher.DispatchTransition(ctx, ev); err != nil {
		dispatchFailures.WithLabelValues(ev.Kind).Inc()
		log.Printf("[watcher] dispatching %s failed: %v", ev.Kind, err)
		return
	}
	w.cooldown.Mark(key)
	transitionsDispatched.WithLabelValues(ev.Kind).Inc()
	log.Printf("[watcher] dispatched %s at %s", ev.Kind, ev.At.Format("15:04"))
}
