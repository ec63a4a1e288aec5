// Package scheduler runs named jobs on cron, interval or one-shot triggers.
//
// Overlap protection is a per-name running guard: a fire that lands while
// the same job is still executing is skipped and logged, never queued.
// Interval triggers rearm after completion, so an interval job can never
// overlap itself; cron triggers follow the wall clock, so a task that
// outlives the gap to the next fire simply loses that fire. Different jobs
// have no ordering relationship and may run concurrently.
package scheduler
