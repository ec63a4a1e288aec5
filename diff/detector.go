package diff

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ChangeType classifies a change record.
type ChangeType string

const (
	ChangeNetwork  ChangeType = "network"
	ChangeLine     ChangeType = "line"
	ChangeStation  ChangeType = "station"
	ChangeDeepDiff ChangeType = "deep_diff"
)

// Change is one classified difference between two snapshots. From and To are
// opaque views of the compared substructure: full network sections for
// network records, status strings for line/station records, leaf values for
// deep_diff records (where ID is the leaf path).
type Change struct {
	Type ChangeType `json:"type"`
	ID   string     `json:"id"`
	Line string     `json:"line,omitempty"`
	From any        `json:"from"`
	To   any        `json:"to"`
}

// Key identifies the compared substructure, so an accumulator can replace an
// older record for the same target with a newer one.
func (c Change) Key() string {
	return fmt.Sprintf("%s|%s", c.Type, c.ID)
}

// Detect structurally compares two snapshots and returns classified change
// records. The targeted passes cover the network section and per-line and
// per-station status; a final generic diff picks up everything else, with
// paths already covered by a targeted pass filtered out so no underlying
// change is reported twice.
func Detect(old, new *Snapshot) []Change {
	if new == nil {
		return nil
	}
	if old == nil {
		old = &Snapshot{}
	}
	var changes []Change

	if !jsonEqual(old.Network, new.Network) {
		changes = append(changes, Change{
			Type: ChangeNetwork,
			ID:   "network",
			From: old.Network,
			To:   new.Network,
		})
	}

	for _, id := range sortedKeys(new.Lines) {
		line := new.Lines[id]
		prev, ok := old.Lines[id]
		if !ok {
			// Absent in the old snapshot compares as a change from null.
			changes = append(changes, Change{Type: ChangeLine, ID: id, From: nil, To: line.Status})
			continue
		}
		if prev.Status != line.Status {
			changes = append(changes, Change{Type: ChangeLine, ID: id, From: prev.Status, To: line.Status})
		}
	}

	for _, id := range sortedKeys(new.Stations) {
		st := new.Stations[id]
		prev, ok := old.Stations[id]
		if !ok {
			changes = append(changes, Change{Type: ChangeStation, ID: id, Line: st.Line, From: nil, To: st.Status})
			continue
		}
		if prev.Status != st.Status {
			changes = append(changes, Change{Type: ChangeStation, ID: id, Line: st.Line, From: prev.Status, To: st.Status})
		}
	}

	for _, leaf := range deepDiff(old, new) {
		if strings.HasPrefix(leaf.path, "network") || strings.Contains(leaf.path, "status") {
			continue
		}
		changes = append(changes, Change{Type: ChangeDeepDiff, ID: leaf.path, From: leaf.from, To: leaf.to})
	}
	return changes
}

type leafDiff struct {
	path     string
	from, to any
}

// deepDiff walks the JSON form of both snapshots and collects every
// differing leaf with its dotted path.
func deepDiff(old, new *Snapshot) []leafDiff {
	var a, b any
	if err := reencode(old, &a); err != nil {
		return nil
	}
	if err := reencode(new, &b); err != nil {
		return nil
	}
	var out []leafDiff
	walkDiff("", a, b, &out)
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

func walkDiff(path string, a, b any, out *[]leafDiff) {
	am, aok := a.(map[string]any)
	bm, bok := b.(map[string]any)
	if aok && bok {
		keys := map[string]bool{}
		for k := range am {
			keys[k] = true
		}
		for k := range bm {
			keys[k] = true
		}
		for k := range keys {
			walkDiff(joinPath(path, k), am[k], bm[k], out)
		}
		return
	}
	if !jsonEqual(a, b) {
		*out = append(*out, leafDiff{path: path, from: a, to: b})
	}
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

func reencode(v any, out *any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, out)
}

func jsonEqual(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
