package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	chronos "github.com/theoremus-urban-solutions/transit-chronos"
	"github.com/theoremus-urban-solutions/transit-chronos/config"
	"github.com/theoremus-urban-solutions/transit-chronos/diff"
	"github.com/theoremus-urban-solutions/transit-chronos/events"
	"github.com/theoremus-urban-solutions/transit-chronos/schedule"
	"github.com/theoremus-urban-solutions/transit-chronos/scheduler"
	"github.com/theoremus-urban-solutions/transit-chronos/storage"
)

type recordingDispatcher struct {
	mu          sync.Mutex
	transitions []chronos.TransitionEvent
	batches     [][]diff.Change
}

func (d *recordingDispatcher) DispatchTransition(_ context.Context, ev chronos.TransitionEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transitions = append(d.transitions, ev)
	return nil
}

func (d *recordingDispatcher) DispatchChanges(_ context.Context, changes []diff.Change) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches = append(d.batches, changes)
	return nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type storeEvents struct{ store *storage.Store }

func (s storeEvents) ActiveEvents(ctx context.Context) ([]schedule.ActiveEvent, error) {
	evs, err := s.store.Events(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]schedule.ActiveEvent, 0, len(evs))
	for _, ev := range evs {
		out = append(out, schedule.ActiveEvent{
			Name:            ev.Name,
			Start:           ev.Start,
			End:             ev.End,
			ExtendedClosing: ev.ExtendedClosing,
		})
	}
	return out, nil
}

// TestEventLifecycle walks one special event through the whole stack: the
// manager claims and applies it, the watcher reports the event period, the
// restore puts the stations back, and the change detector propagates the
// resulting status flips.
func TestEventLifecycle(t *testing.T) {
	ctx := context.Background()

	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer func() { _ = store.Close() }()

	engine := schedule.New(config.DefaultSchedule())
	sched := scheduler.New(engine.Location())
	manager := events.New(store, sched)

	now, err := time.ParseInLocation("2006-01-02 15:04", "2025-03-10 21:00", engine.Location())
	if err != nil {
		t.Fatal(err)
	}
	manager.Now = func() time.Time { return now }

	// Seed a live station so the override has a real baseline to restore.
	if err := store.SetStationStatus(ctx, storage.StationStatus{
		StationID:    "l2-estadio",
		StatusTypeID: storage.StatusOperational,
		Description:  "normal",
	}); err != nil {
		t.Fatal(err)
	}

	dispatcher := &recordingDispatcher{}
	detector := chronos.NewChangeDetector(store, dispatcher)
	if err := detector.Run(ctx); err != nil {
		t.Fatal(err)
	}

	ev := storage.SpecialEvent{
		Name:     "concierto",
		Start:    now.Add(-time.Hour),
		End:      now.Add(2 * time.Hour),
		Stations: storage.StationPartition{Closed: []string{"l2-estadio"}},
	}
	id, err := store.InsertEvent(ctx, ev)
	if err != nil {
		t.Fatal(err)
	}
	ev.ID = id

	// The event is already inside its window, so the scan applies it
	// immediately and only the end job lands on the scheduler.
	if err := manager.CheckAndScheduleEvents(ctx); err != nil {
		t.Fatal(err)
	}
	st, ok, err := store.StationStatus(ctx, "l2-estadio")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || st.StatusTypeID != storage.StatusClosed {
		t.Fatalf("station not overridden: %+v", st)
	}
	if len(sched.Jobs()) != 1 {
		t.Errorf("jobs = %+v, want only the end job", sched.Jobs())
	}

	// The watcher sees the event fare period through the store adapter.
	cooldown := chronos.NewCooldownCache(30*time.Minute, fixedClock{now})
	watcher := chronos.NewWatcher(engine, storeEvents{store}, dispatcher, cooldown, fixedClock{now})
	state, _, err := watcher.State(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if state.FarePeriod != schedule.PeriodEvent || !state.IsEventDay {
		t.Errorf("state during event = %+v", state)
	}

	// The detector propagates the override as a station status change.
	if err := detector.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if len(dispatcher.batches) == 0 {
		t.Fatal("override produced no change batch")
	}
	sawClosed := false
	for _, c := range dispatcher.batches[len(dispatcher.batches)-1] {
		if c.Type == diff.ChangeStation && c.ID == "l2-estadio" && c.To == "closed" {
			sawClosed = true
		}
	}
	if !sawClosed {
		t.Errorf("change batch missing the station override: %+v", dispatcher.batches)
	}

	// Restoring puts the original status back and removes the event.
	if err := manager.RestoreEvent(ctx, ev); err != nil {
		t.Fatal(err)
	}
	st, _, err = store.StationStatus(ctx, "l2-estadio")
	if err != nil {
		t.Fatal(err)
	}
	if st.StatusTypeID != storage.StatusOperational || st.Description != "normal" {
		t.Errorf("station not restored: %+v", st)
	}
	evs, err := store.Events(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 0 {
		t.Errorf("event still present after restore: %+v", evs)
	}

	if err := detector.Run(ctx); err != nil {
		t.Fatal(err)
	}
	sawRestored := false
	for _, c := range dispatcher.batches[len(dispatcher.batches)-1] {
		if c.Type == diff.ChangeStation && c.ID == "l2-estadio" && c.To == "operational" {
			sawRestored = true
		}
	}
	if !sawRestored {
		t.Errorf("restore did not propagate: %+v", dispatcher.batches)
	}
}
