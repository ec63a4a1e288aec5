package storage

import "time"

// Operational status type ids, mirroring the status taxonomy of the
// network's status feed.
const (
	StatusOperational = 10
	StatusClosed      = 14
	StatusIngressOnly = 15
	StatusEgressOnly  = 16
)

// StationPartition groups an event's affected stations by the override each
// group receives while the event is active.
type StationPartition struct {
	IngressOnly []string `json:"ingress_only,omitempty"`
	EgressOnly  []string `json:"egress_only,omitempty"`
	Closed      []string `json:"closed,omitempty"`
}

// All returns every affected station across the three groups.
func (p StationPartition) All() []string {
	out := make([]string, 0, len(p.IngressOnly)+len(p.EgressOnly)+len(p.Closed))
	out = append(out, p.IngressOnly...)
	out = append(out, p.EgressOnly...)
	out = append(out, p.Closed...)
	return out
}

// StatusFor returns the override status type id for a station in the
// partition.
func (p StationPartition) StatusFor(stationID string) int {
	for _, s := range p.IngressOnly {
		if s == stationID {
			return StatusIngressOnly
		}
	}
	for _, s := range p.EgressOnly {
		if s == stationID {
			return StatusEgressOnly
		}
	}
	return StatusClosed
}

// SpecialEvent is an operator-scheduled override window. Rows are created
// externally with Processed=false; the override manager claims each row
// exactly once.
type SpecialEvent struct {
	ID              int64
	Name            string
	Description     string
	Start           time.Time
	End             time.Time
	Stations        StationPartition
	ExtendedClosing string // "HH:mm", empty when the event does not extend closing
	Active          bool
	Processed       bool
}

// StationStatus is a station's live operational status.
type StationStatus struct {
	StationID    string `json:"stationId"`
	StatusTypeID int    `json:"statusTypeId"`
	Description  string `json:"description,omitempty"`
	Message      string `json:"message,omitempty"`
}

// StatusBackup is the saved pre-override status of one station for one
// event. Its existence is the only source of truth for "this station has
// been overridden by this event"; at most one row exists per (event,
// station) pair.
type StatusBackup struct {
	EventID          int64
	StationID        string
	PrevStatusTypeID int
	PrevDescription  string
	PrevMessage      string
}

// StatusChange is one appended status-history row awaiting propagation.
type StatusChange struct {
	ID           int64
	StationID    string
	StatusTypeID int
	Description  string
	Message      string
	ChangedAt    time.Time
}
