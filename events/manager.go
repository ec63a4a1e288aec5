// Package events schedules special-event overrides: it claims persisted
// event rows, arms their start/end one-shot jobs, and performs the
// backup-apply-restore of station status around each event window.
package events

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/theoremus-urban-solutions/transit-chronos/scheduler"
	"github.com/theoremus-urban-solutions/transit-chronos/storage"
)

// Override descriptions by status type id, as they appear on the status
// feed.
var overrideDescriptions = map[int]string{
	storage.StatusClosed:      "Cerrada por evento especial",
	storage.StatusIngressOnly: "Servicio extendido solo entrada",
	storage.StatusEgressOnly:  "Servicio extendido solo salida",
}

// Manager consumes unprocessed special events and turns each into a pair of
// one-shot jobs. Claiming flips the persisted processed flag, so rescanning
// the table never schedules a second pair.
type Manager struct {
	store *storage.Store
	sched *scheduler.Scheduler

	// Now is the clock used to decide whether an event is already inside
	// its window. Overridable in tests.
	Now func() time.Time
}

// New creates a manager over the persisted store and job scheduler.
func New(store *storage.Store, sched *scheduler.Scheduler) *Manager {
	return &Manager{store: store, sched: sched, Now: time.Now}
}

// CheckAndScheduleEvents scans unprocessed events and schedules their jobs.
// Events already inside their window are applied immediately; fully past
// events are discarded. Intended to run as a periodic scheduler job.
func (m *Manager) CheckAndScheduleEvents(ctx context.Context) error {
	evs, err := m.store.UnprocessedEvents(ctx)
	if err != nil {
		return fmt.Errorf("scan events: %w", err)
	}
	for _, ev := range evs {
		claimed, err := m.store.ClaimEvent(ctx, ev.ID)
		if err != nil {
			log.Printf("[events] claiming event %d failed: %v", ev.ID, err)
			continue
		}
		if !claimed {
			continue
		}
		m.scheduleEvent(ctx, ev)
	}
	return nil
}

func (m *Manager) scheduleEvent(ctx context.Context, ev storage.SpecialEvent) {
	now := m.Now()

	if !now.Before(ev.End) {
		// The whole window is in the past; there is nothing to apply and no
		// backups to restore.
		log.Printf("[events] event %d (%s) already over, discarding", ev.ID, ev.Name)
		if err := m.store.DeleteEvent(ctx, ev.ID); err != nil {
			log.Printf("[events] discarding event %d failed: %v", ev.ID, err)
		}
		return
	}

	if !now.Before(ev.Start) {
		// Already inside the window: apply without waiting for a timer.
		log.Printf("[events] event %d (%s) already active, applying now", ev.ID, ev.Name)
		if err := m.ApplyEvent(ctx, ev); err != nil {
			log.Printf("[events] applying event %d failed: %v", ev.ID, err)
		}
	} else {
		err := m.sched.AddJob(scheduler.Job{
			Name:    fmt.Sprintf("event-start-%d", ev.ID),
			Trigger: scheduler.OneShot{At: ev.Start},
			Task: func(ctx context.Context) error {
				return m.ApplyEvent(ctx, ev)
			},
		})
		if err != nil {
			log.Printf("[events] scheduling start of event %d failed: %v", ev.ID, err)
		}
	}

	err := m.sched.AddJob(scheduler.Job{
		Name:    fmt.Sprintf("event-end-%d", ev.ID),
		Trigger: scheduler.OneShot{At: ev.End},
		Task: func(ctx context.Context) error {
			return m.RestoreEvent(ctx, ev)
		},
	})
	if err != nil {
		log.Printf("[events] scheduling end of event %d failed: %v", ev.ID, err)
	}
	log.Printf("[events] event %d (%s) scheduled: %s - %s",
		ev.ID, ev.Name, ev.Start.Format(time.RFC3339), ev.End.Format(time.RFC3339))
}

// ApplyEvent marks the event active, backs up each affected station's live
// status, then writes the override for its partition group. A failing
// station is logged and skipped: the event is applied to as many stations
// as possible, and the end job restores whatever backups exist.
func (m *Manager) ApplyEvent(ctx context.Context, ev storage.SpecialEvent) error {
	if err := m.store.SetEventActive(ctx, ev.ID, true); err != nil {
		return err
	}
	for _, stationID := range ev.Stations.All() {
		st, ok, err := m.store.StationStatus(ctx, stationID)
		if err != nil {
			log.Printf("[events] reading status of %s failed, skipping: %v", stationID, err)
			continue
		}
		if !ok {
			st = storage.StationStatus{StationID: stationID, StatusTypeID: storage.StatusOperational}
		}
		if err := m.store.BackupStatus(ctx, ev.ID, st); err != nil {
			// Never override a station whose previous status we failed to
			// save; restore would have nothing to restore from.
			log.Printf("[events] backup of %s failed, skipping override: %v", stationID, err)
			continue
		}
		typeID := ev.Stations.StatusFor(stationID)
		override := storage.StationStatus{
			StationID:    stationID,
			StatusTypeID: typeID,
			Description:  overrideDescriptions[typeID],
			Message:      ev.Name,
		}
		if err := m.store.SetStationStatus(ctx, override); err != nil {
			log.Printf("[events] overriding %s failed: %v", stationID, err)
		}
	}
	eventsApplied.Inc()
	log.Printf("[events] event %d (%s) applied to %d stations", ev.ID, ev.Name, len(ev.Stations.All()))
	return nil
}

// RestoreEvent marks the event inactive, restores every backed-up station
// and deletes the backups, then deletes the event row. A failed restore is
// surfaced as an operational alert: the station stays overridden until an
// operator intervenes, it is not retried.
func (m *Manager) RestoreEvent(ctx context.Context, ev storage.SpecialEvent) error {
	if err := m.store.SetEventActive(ctx, ev.ID, false); err != nil {
		return err
	}
	backups, err := m.store.BackupsForEvent(ctx, ev.ID)
	if err != nil {
		restoreFailures.Inc()
		log.Printf("[events] ALERT: cannot read backups for event %d, stations left overridden: %v", ev.ID, err)
		return err
	}
	failed := 0
	for _, b := range backups {
		prev := storage.StationStatus{
			StationID:    b.StationID,
			StatusTypeID: b.PrevStatusTypeID,
			Description:  b.PrevDescription,
			Message:      b.PrevMessage,
		}
		if err := m.store.SetStationStatus(ctx, prev); err != nil {
			failed++
			log.Printf("[events] ALERT: restoring %s for event %d failed, station left overridden: %v", b.StationID, ev.ID, err)
			continue
		}
		if err := m.store.DeleteBackup(ctx, ev.ID, b.StationID); err != nil {
			failed++
			log.Printf("[events] deleting backup of %s for event %d failed: %v", b.StationID, ev.ID, err)
		}
	}
	if failed > 0 {
		restoreFailures.Inc()
		return fmt.Errorf("event %d: %d of %d stations not fully restored", ev.ID, failed, len(backups))
	}
	if err := m.store.DeleteEvent(ctx, ev.ID); err != nil {
		return err
	}
	eventsRestored.Inc()
	log.Printf("[events] event %d (%s) restored %d stations", ev.ID, ev.Name, len(backups))
	return nil
}

// ScheduleServiceExtension persists an operator-initiated service extension
// for a line as a special event and schedules it right away.
func (m *Manager) ScheduleServiceExtension(ctx context.Context, lineID string, start, end time.Time, stations storage.StationPartition, extendedClosing string) (int64, error) {
	ev := storage.SpecialEvent{
		Name:            fmt.Sprintf("extension-%s", lineID),
		Description:     fmt.Sprintf("Service extension for line %s", lineID),
		Start:           start,
		End:             end,
		Stations:        stations,
		ExtendedClosing: extendedClosing,
	}
	id, err := m.store.InsertEvent(ctx, ev)
	if err != nil {
		return 0, err
	}
	log.Printf("[events] service extension scheduled for line %s (event %d)", lineID, id)
	return id, m.CheckAndScheduleEvents(ctx)
}
