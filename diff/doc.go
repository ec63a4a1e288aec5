// Package diff detects structural changes between two full network
// snapshots.
//
// Detect runs three targeted passes (network section, per-line status,
// per-station status) followed by a generic leaf diff. Leaves already
// covered by a targeted pass are filtered from the generic results, so one
// underlying change never produces two records. Detect is stateless; the
// Accumulator merges results across refresh cycles before a downstream
// flush.
package diff
