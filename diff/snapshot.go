package diff

// NetworkStatus is the network-wide section of a snapshot.
type NetworkStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp,omitempty"`
}

// LineStatus is one line's slice of a snapshot.
type LineStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// StationStatus is one station's slice of a snapshot. Line is the owning
// line id.
type StationStatus struct {
	Line        string `json:"line"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
}

// Snapshot is a full view of the network's live topology and status at one
// refresh. Snapshots are opaque to the detector beyond the keys it compares;
// they are never mutated, only replaced.
type Snapshot struct {
	Network  NetworkStatus            `json:"network"`
	Lines    map[string]LineStatus    `json:"lines"`
	Stations map[string]StationStatus `json:"stations"`
}

// NetworkStatusFor rolls line statuses up into an overall network status.
func NetworkStatusFor(lines map[string]LineStatus) string {
	if len(lines) == 0 {
		return "unknown"
	}
	operational := 0
	for _, l := range lines {
		if l.Status == "operational" {
			operational++
		}
	}
	switch {
	case operational == 0:
		return "suspended"
	case operational < len(lines):
		return "partial"
	}
	return "operational"
}
