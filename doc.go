// Package chronos ties the schedule engine, the persisted event store and
// the job scheduler into a running service: a watcher that detects state
// transitions against a cooldown, dispatchers that publish them, and the
// operational HTTP surface.
package chronos
