package scheduler

import (
	"fmt"
	"time"
)

// Trigger describes when a job fires. It is a closed set: Cron, Interval or
// OneShot. Making the variants distinct types keeps a job from carrying both
// a cron expression and an interval at once.
type Trigger interface {
	trigger()
	String() string
}

// Cron fires on a 5-field cron expression (minute hour dom month dow),
// evaluated in the scheduler's timezone. Cron fires follow the wall clock
// regardless of how long the previous run took; the running guard is the
// only overlap protection.
type Cron struct {
	Expr string
}

func (Cron) trigger() {}

func (c Cron) String() string { return fmt.Sprintf("cron(%s)", c.Expr) }

// Interval fires Every after the previous run completes. Rearming from
// completion rather than from the previous fire keeps a slow task from ever
// overlapping itself and avoids drift-induced pileup; there is no backlog.
type Interval struct {
	Every time.Duration
}

func (Interval) trigger() {}

func (i Interval) String() string { return fmt.Sprintf("every(%s)", i.Every) }

// OneShot fires once at At and removes the job afterwards. A timestamp in
// the past fires immediately.
type OneShot struct {
	At time.Time
}

func (OneShot) trigger() {}

func (o OneShot) String() string { return fmt.Sprintf("at(%s)", o.At.Format(time.RFC3339)) }
