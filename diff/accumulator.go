package diff

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Accumulator merges change records across refresh cycles until a flush
// pushes them downstream in one batch. Records for the same target replace
// each other, newest wins, so a flap between two refreshes reports only the
// final value.
type Accumulator struct {
	mu      sync.Mutex
	id      string
	pending map[string]Change
}

// NewAccumulator creates an empty accumulator with a unique instance id.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		id:      uuid.NewString(),
		pending: map[string]Change{},
	}
}

// InstanceID returns the accumulator's unique id, carried on flush logging
// so overlapping deployments can be told apart.
func (a *Accumulator) InstanceID() string {
	return a.id
}

// Add merges change records into the pending set.
func (a *Accumulator) Add(changes ...Change) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range changes {
		a.pending[c.Key()] = c
	}
}

// Len returns the number of pending records.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Flush returns the pending records in deterministic order and clears the
// set. It returns nil when nothing is pending.
func (a *Accumulator) Flush() []Change {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pending) == 0 {
		return nil
	}
	out := make([]Change, 0, len(a.pending))
	for _, c := range a.pending {
		out = append(out, c)
	}
	a.pending = map[string]Change{}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
