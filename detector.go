package chronos

import (
	"context"
	"log"
	"strings"

	"github.com/theoremus-urban-solutions/transit-chronos/diff"
	"github.com/theoremus-urban-solutions/transit-chronos/storage"
)

// ChangeDetector drains the status-history queue, rebuilds a network
// snapshot from the live station table, diffs it against the previous
// snapshot and dispatches the accumulated changes. History rows are only
// marked processed after a successful dispatch.
type ChangeDetector struct {
	store      *storage.Store
	dispatcher Dispatcher
	acc        *diff.Accumulator
	prev       *diff.Snapshot
}

func NewChangeDetector(store *storage.Store, dispatcher Dispatcher) *ChangeDetector {
	return &ChangeDetector{
		store:      store,
		dispatcher: dispatcher,
		acc:        diff.NewAccumulator(),
	}
}

// Run performs one detection cycle. Intended as a periodic scheduler job.
func (d *ChangeDetector) Run(ctx context.Context) error {
	pending, err := d.store.UnprocessedChanges(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	statuses, err := d.store.AllStationStatuses(ctx)
	if err != nil {
		return err
	}
	snap := BuildSnapshot(statuses)
	if d.prev != nil {
		d.acc.Add(diff.Detect(d.prev, snap)...)
	}
	d.prev = snap

	if d.acc.Len() > 0 {
		changes := d.acc.Flush()
		if err := d.dispatcher.DispatchChanges(ctx, changes); err != nil {
			// Re-accumulate so the next cycle retries the same batch.
			d.acc.Add(changes...)
			return err
		}
		log.Printf("[detector] dispatched %d changes (instance %s)", len(changes), d.acc.InstanceID())
	}

	ids := make([]int64, len(pending))
	for i, c := range pending {
		ids[i] = c.ID
	}
	return d.store.MarkChangesProcessed(ctx, ids)
}

func statusName(typeID int) string {
	switch typeID {
	case storage.StatusOperational:
		return "operational"
	case storage.StatusClosed:
		return "closed"
	case storage.StatusIngressOnly:
		return "ingress_only"
	case storage.StatusEgressOnly:
		return "egress_only"
	}
	return "unknown"
}

// BuildSnapshot folds the station table into the snapshot shape the detector
// diffs. The owning line is the station id prefix before the first dash; a
// line with any non-operational station reports partial, and the network
// status is rolled up from the lines.
func BuildSnapshot(statuses []storage.StationStatus) *diff.Snapshot {
	snap := &diff.Snapshot{
		Lines:    make(map[string]diff.LineStatus),
		Stations: make(map[string]diff.StationStatus),
	}
	degraded := make(map[string]bool)
	for _, st := range statuses {
		line := st.StationID
		if i := strings.Index(st.StationID, "-"); i > 0 {
			line = st.StationID[:i]
		}
		status := statusName(st.StatusTypeID)
		snap.Stations[st.StationID] = diff.StationStatus{
			Line:        line,
			Status:      status,
			Description: st.Description,
		}
		if status != "operational" {
			degraded[line] = true
		}
		if _, ok := snap.Lines[line]; !ok {
			snap.Lines[line] = diff.LineStatus{Status: "operational"}
		}
	}
	for line := range degraded {
		snap.Lines[line] = diff.LineStatus{Status: "partial", Message: "stations affected"}
	}
	snap.Network = diff.NetworkStatus{Status: diff.NetworkStatusFor(snap.Lines)}
	return snap
}
