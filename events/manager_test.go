package events

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/theoremus-urban-solutions/transit-chronos/scheduler"
	"github.com/theoremus-urban-solutions/transit-chronos/storage"
)

func testManager(t *testing.T) (*Manager, *storage.Store, *scheduler.Scheduler) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	// The scheduler stays unstarted so registrations are inspectable
	// without timers firing.
	sched := scheduler.New(time.UTC)
	m := New(store, sched)
	return m, store, sched
}

func fixedNow(m *Manager, at time.Time) {
	m.Now = func() time.Time { return at }
}

func TestCheckAndScheduleIsIdempotent(t *testing.T) {
	m, store, sched := testManager(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	fixedNow(m, now)

	id, err := store.InsertEvent(ctx, storage.SpecialEvent{
		Name:     "concierto",
		Start:    now.Add(2 * time.Hour),
		End:      now.Add(6 * time.Hour),
		Stations: storage.StationPartition{Closed: []string{"l2-estadio"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := m.CheckAndScheduleEvents(ctx); err != nil {
			t.Fatalf("scan %d: %v", i, err)
		}
	}

	jobs := sched.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want start and end pair: %+v", len(jobs), jobs)
	}
	if _, ok := sched.Job("event-start-" + itoa(id)); !ok {
		t.Error("start job missing")
	}
	if _, ok := sched.Job("event-end-" + itoa(id)); !ok {
		t.Error("end job missing")
	}

	pending, err := store.UnprocessedEvents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Error("scanned event should be claimed")
	}
}

func TestEventAlreadyInWindowAppliesImmediately(t *testing.T) {
	m, store, sched := testManager(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 21, 0, 0, 0, time.UTC)
	fixedNow(m, now)

	id, err := store.InsertEvent(ctx, storage.SpecialEvent{
		Name:     "concierto",
		Start:    now.Add(-time.Hour),
		End:      now.Add(time.Hour),
		Stations: storage.StationPartition{Closed: []string{"l2-estadio"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.CheckAndScheduleEvents(ctx); err != nil {
		t.Fatal(err)
	}

	st, ok, err := store.StationStatus(ctx, "l2-estadio")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || st.StatusTypeID != storage.StatusClosed {
		t.Errorf("station should already be overridden: %+v", st)
	}
	if _, ok := sched.Job("event-start-" + itoa(id)); ok {
		t.Error("no start job should exist for an already-active event")
	}
	if _, ok := sched.Job("event-end-" + itoa(id)); !ok {
		t.Error("end job should still be scheduled")
	}
}

func TestPastEventIsDiscarded(t *testing.T) {
	m, store, _ := testManager(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	fixedNow(m, now)

	_, err := store.InsertEvent(ctx, storage.SpecialEvent{
		Name:  "pasado",
		Start: now.Add(-4 * time.Hour),
		End:   now.Add(-2 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.CheckAndScheduleEvents(ctx); err != nil {
		t.Fatal(err)
	}

	evs, err := store.Events(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 0 {
		t.Errorf("past event should be deleted, got %+v", evs)
	}
}

func TestApplyAndRestoreRoundTrip(t *testing.T) {
	m, store, _ := testManager(t)
	ctx := context.Background()

	before := storage.StationStatus{
		StationID:    "l2-estadio",
		StatusTypeID: storage.StatusOperational,
		Description:  "normal",
	}
	if err := store.SetStationStatus(ctx, before); err != nil {
		t.Fatal(err)
	}

	ev := storage.SpecialEvent{
		ID:   1,
		Name: "concierto",
		Stations: storage.StationPartition{
			Closed:      []string{"l2-estadio"},
			IngressOnly: []string{"l2-lo-ovalle"},
		},
	}
	id, err := store.InsertEvent(ctx, ev)
	if err != nil {
		t.Fatal(err)
	}
	ev.ID = id

	if err := m.ApplyEvent(ctx, ev); err != nil {
		t.Fatal(err)
	}

	st, _, err := store.StationStatus(ctx, "l2-estadio")
	if err != nil {
		t.Fatal(err)
	}
	if st.StatusTypeID != storage.StatusClosed || st.Message != "concierto" {
		t.Errorf("override not applied: %+v", st)
	}
	st, _, err = store.StationStatus(ctx, "l2-lo-ovalle")
	if err != nil {
		t.Fatal(err)
	}
	if st.StatusTypeID != storage.StatusIngressOnly {
		t.Errorf("partition group not honored: %+v", st)
	}

	backups, err := store.BackupsForEvent(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 2 {
		t.Fatalf("got %d backups, want 2", len(backups))
	}

	if err := m.RestoreEvent(ctx, ev); err != nil {
		t.Fatal(err)
	}

	st, _, err = store.StationStatus(ctx, "l2-estadio")
	if err != nil {
		t.Fatal(err)
	}
	if st.StatusTypeID != before.StatusTypeID || st.Description != before.Description {
		t.Errorf("station not restored: %+v", st)
	}
	// A station with no prior row restores to plain operational.
	st, _, err = store.StationStatus(ctx, "l2-lo-ovalle")
	if err != nil {
		t.Fatal(err)
	}
	if st.StatusTypeID != storage.StatusOperational {
		t.Errorf("missing-baseline station should restore to operational: %+v", st)
	}

	backups, err = store.BackupsForEvent(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 0 {
		t.Error("backups should be consumed by the restore")
	}
	evs, err := store.Events(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 0 {
		t.Error("restored event should be deleted")
	}
}

func TestApplyTwiceKeepsOriginalBackup(t *testing.T) {
	m, store, _ := testManager(t)
	ctx := context.Background()

	if err := store.SetStationStatus(ctx, storage.StationStatus{
		StationID:    "l2-estadio",
		StatusTypeID: storage.StatusOperational,
		Description:  "normal",
	}); err != nil {
		t.Fatal(err)
	}

	ev := storage.SpecialEvent{
		Name:     "concierto",
		Stations: storage.StationPartition{Closed: []string{"l2-estadio"}},
	}
	id, err := store.InsertEvent(ctx, ev)
	if err != nil {
		t.Fatal(err)
	}
	ev.ID = id

	if err := m.ApplyEvent(ctx, ev); err != nil {
		t.Fatal(err)
	}
	// The second apply sees the overridden status but must not replace the
	// backup with it.
	if err := m.ApplyEvent(ctx, ev); err != nil {
		t.Fatal(err)
	}
	if err := m.RestoreEvent(ctx, ev); err != nil {
		t.Fatal(err)
	}

	st, _, err := store.StationStatus(ctx, "l2-estadio")
	if err != nil {
		t.Fatal(err)
	}
	if st.StatusTypeID != storage.StatusOperational || st.Description != "normal" {
		t.Errorf("double apply corrupted the restore: %+v", st)
	}
}

func TestScheduleServiceExtension(t *testing.T) {
	m, store, sched := testManager(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC)
	fixedNow(m, now)

	id, err := m.ScheduleServiceExtension(ctx, "l2",
		now.Add(time.Hour), now.Add(3*time.Hour),
		storage.StationPartition{IngressOnly: []string{"l2-estadio"}}, "01:30")
	if err != nil {
		t.Fatal(err)
	}

	evs, err := store.Events(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 || evs[0].ExtendedClosing != "01:30" {
		t.Fatalf("extension event not persisted: %+v", evs)
	}
	if _, ok := sched.Job("event-start-" + itoa(id)); !ok {
		t.Error("extension start job missing")
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
