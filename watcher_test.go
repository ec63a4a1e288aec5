package chronos

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/theoremus-urban-solutions/transit-chronos/config"
	"github.com/theoremus-urban-solutions/transit-chronos/diff"
	"github.com/theoremus-urban-solutions/transit-chronos/schedule"
)

type fakeDispatcher struct {
	mu     sync.Mutex
	events []TransitionEvent
	err    error
}

func (d *fakeDispatcher) DispatchTransition(_ context.Context, ev TransitionEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.events = append(d.events, ev)
	return nil
}

func (d *fakeDispatcher) DispatchChanges(context.Context, []diff.Change) error { return nil }

func (d *fakeDispatcher) kinds() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.events))
	for i, ev := range d.events {
		out[i] = ev.Kind
	}
	return out
}

func (d *fakeDispatcher) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

type fakeEvents struct {
	mu     sync.Mutex
	active []schedule.ActiveEvent
}

func (f *fakeEvents) ActiveEvents(context.Context) ([]schedule.ActiveEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, nil
}

func (f *fakeEvents) set(evs []schedule.ActiveEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = evs
}

func testWatcher(t *testing.T, start time.Time) (*Watcher, *fakeDispatcher, *fakeClock, *fakeEvents) {
	t.Helper()
	engine := schedule.New(config.DefaultSchedule())
	clock := newFakeClock(start)
	dispatcher := &fakeDispatcher{}
	events := &fakeEvents{}
	cooldown := NewCooldownCache(30*time.Minute, clock)
	w := NewWatcher(engine, events, dispatcher, cooldown, clock)
	return w, dispatcher, clock, events
}

// santiago builds a timestamp in the default schedule's timezone.
func santiago(t *testing.T, date, clock string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/Santiago")
	if err != nil {
		t.Fatal(err)
	}
	ts, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

func TestFirstCheckOnlyRecordsBaseline(t *testing.T) {
	w, dispatcher, _, _ := testWatcher(t, santiago(t, "2025-03-10", "12:00"))
	if err := w.CheckTime(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := dispatcher.kinds(); len(got) != 0 {
		t.Errorf("baseline check dispatched %v", got)
	}
}

func TestServiceOpeningDispatchesOnce(t *testing.T) {
	// 2025-03-10 is a Monday; weekday service opens at 06:00.
	w, dispatcher, clock, _ := testWatcher(t, santiago(t, "2025-03-10", "05:55"))
	ctx := context.Background()
	if err := w.CheckTime(ctx); err != nil {
		t.Fatal(err)
	}

	clock.Set(santiago(t, "2025-03-10", "06:05"))
	if err := w.CheckTime(ctx); err != nil {
		t.Fatal(err)
	}

	kinds := dispatcher.kinds()
	want := map[string]bool{
		TransitionServiceStart: false,
		TransitionFarePeriod:   false,
		TransitionExpressStart: false, // morning express window opens at 06:00
	}
	for _, k := range kinds {
		if _, ok := want[k]; !ok {
			t.Errorf("unexpected kind %s", k)
			continue
		}
		want[k] = true
	}
	for k, seen := range want {
		if !seen {
			t.Errorf("missing %s in %v", k, kinds)
		}
	}

	// Repeated checks with an unchanged state dispatch nothing further.
	for i := 0; i < 10; i++ {
		clock.Advance(time.Minute)
		if err := w.CheckTime(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if got := dispatcher.kinds(); len(got) != len(kinds) {
		t.Errorf("steady state kept dispatching: %v", got)
	}
}

func TestExpressTransitionCarriesWindowAndLines(t *testing.T) {
	// Morning express ends at 09:00 on a regular Monday.
	w, dispatcher, clock, _ := testWatcher(t, santiago(t, "2025-03-10", "08:55"))
	ctx := context.Background()
	if err := w.CheckTime(ctx); err != nil {
		t.Fatal(err)
	}

	clock.Set(santiago(t, "2025-03-10", "09:05"))
	if err := w.CheckTime(ctx); err != nil {
		t.Fatal(err)
	}

	var express *TransitionEvent
	for i, ev := range dispatcher.events {
		if ev.Kind == TransitionExpressEnd {
			express = &dispatcher.events[i]
		}
	}
	if express == nil {
		t.Fatalf("no express end among %v", dispatcher.kinds())
	}
	if express.Express != "morning" {
		t.Errorf("express window = %q, want morning", express.Express)
	}
	if len(express.Lines) == 0 || express.Lines[0] != "L2" {
		t.Errorf("affected lines = %v, want the configured express lines", express.Lines)
	}
}

func TestEnteringNocheIsNotAnnounced(t *testing.T) {
	w, dispatcher, clock, _ := testWatcher(t, santiago(t, "2025-03-10", "22:50"))
	ctx := context.Background()
	if err := w.CheckTime(ctx); err != nil {
		t.Fatal(err)
	}

	clock.Set(santiago(t, "2025-03-10", "23:05"))
	if err := w.CheckTime(ctx); err != nil {
		t.Fatal(err)
	}

	kinds := dispatcher.kinds()
	if len(kinds) != 1 || kinds[0] != TransitionServiceEnd {
		t.Errorf("kinds = %v, want only %s", kinds, TransitionServiceEnd)
	}
}

func TestCooldownSuppressesFlappingEdge(t *testing.T) {
	w, dispatcher, clock, events := testWatcher(t, santiago(t, "2025-03-10", "12:00"))
	ctx := context.Background()
	if err := w.CheckTime(ctx); err != nil {
		t.Fatal(err)
	}

	ev := schedule.ActiveEvent{
		Name:  "evento",
		Start: santiago(t, "2025-03-10", "11:00"),
		End:   santiago(t, "2025-03-10", "16:00"),
	}

	// VALLE -> EVENT -> VALLE -> EVENT within the cooldown window: the
	// second EVENT edge is suppressed.
	events.set([]schedule.ActiveEvent{ev})
	clock.Advance(time.Minute)
	if err := w.CheckTime(ctx); err != nil {
		t.Fatal(err)
	}
	events.set(nil)
	clock.Advance(time.Minute)
	if err := w.CheckTime(ctx); err != nil {
		t.Fatal(err)
	}
	events.set([]schedule.ActiveEvent{ev})
	clock.Advance(time.Minute)
	if err := w.CheckTime(ctx); err != nil {
		t.Fatal(err)
	}

	periods := []schedule.FarePeriod{}
	for _, e := range dispatcher.events {
		if e.Kind == TransitionFarePeriod {
			periods = append(periods, e.Period)
		}
	}
	if len(periods) != 2 || periods[0] != schedule.PeriodEvent || periods[1] != schedule.PeriodValle {
		t.Errorf("fare dispatches = %v, want one EVENT then one VALLE", periods)
	}
}

func TestFailedDispatchIsNotRetriedUntilNextFlip(t *testing.T) {
	w, dispatcher, clock, events := testWatcher(t, santiago(t, "2025-03-10", "12:00"))
	ctx := context.Background()
	if err := w.CheckTime(ctx); err != nil {
		t.Fatal(err)
	}

	ev := schedule.ActiveEvent{
		Name:  "evento",
		Start: santiago(t, "2025-03-10", "11:00"),
		End:   santiago(t, "2025-03-10", "16:00"),
	}

	dispatcher.fail(errors.New("sink unavailable"))
	events.set([]schedule.ActiveEvent{ev})
	clock.Advance(time.Minute)
	if err := w.CheckTime(ctx); err != nil {
		t.Fatal(err)
	}

	// The state did not flip again, so the failed transition is gone even
	// though the sink has recovered.
	dispatcher.fail(nil)
	clock.Advance(time.Minute)
	if err := w.CheckTime(ctx); err != nil {
		t.Fatal(err)
	}
	if got := dispatcher.kinds(); len(got) != 0 {
		t.Fatalf("missed transition was retried: %v", got)
	}

	// The edge was never marked in the cooldown, so the next flip through
	// the same edge dispatches normally.
	events.set(nil)
	clock.Advance(time.Minute)
	if err := w.CheckTime(ctx); err != nil {
		t.Fatal(err)
	}
	events.set([]schedule.ActiveEvent{ev})
	clock.Advance(time.Minute)
	if err := w.CheckTime(ctx); err != nil {
		t.Fatal(err)
	}

	sawEvent := false
	for _, e := range dispatcher.events {
		if e.Kind == TransitionFarePeriod && e.Period == schedule.PeriodEvent {
			sawEvent = true
		}
	}
	if !sawEvent {
		t.Error("next flip through the failed edge should dispatch")
	}
}

func TestStateReportsExtendedHours(t *testing.T) {
	w, _, _, events := testWatcher(t, santiago(t, "2025-03-10", "23:30"))
	events.set([]schedule.ActiveEvent{{
		Name:            "concierto",
		Start:           santiago(t, "2025-03-10", "20:00"),
		End:             santiago(t, "2025-03-11", "02:00"),
		ExtendedClosing: "01:30",
	}})

	state, hours, err := w.State(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !state.IsServiceRunning || !state.IsExtendedHours {
		t.Errorf("state = %+v, want running extended", state)
	}
	if !hours.Extended || hours.Closing != "01:30" {
		t.Errorf("hours = %+v", hours)
	}
}
