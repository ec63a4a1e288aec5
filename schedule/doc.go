// Package schedule computes the network's time-dependent operating state.
//
// The Engine is a pure calculator: given an instant, the static schedule
// configuration and the currently active special events, it produces a
// CompositeState (service running, fare period, extended hours, express
// windows, event day) and can report the next upcoming schedule edge.
//
// All interval membership is half-open [start, end). Intervals whose end
// sorts before their start wrap past midnight, so an overnight period such
// as 23:00-06:00 classifies both 23:30 and 05:30 as inside.
//
// Event overrides take absolute priority: while a special event is active
// the fare period is always EVENT, regardless of the configured peaks.
package schedule
