package schedule

import "time"

// FarePeriod is a named time-of-day bucket determining pricing and service
// character.
type FarePeriod string

const (
	PeriodPunta    FarePeriod = "PUNTA"
	PeriodValle    FarePeriod = "VALLE"
	PeriodBajo     FarePeriod = "BAJO"
	PeriodNoche    FarePeriod = "NOCHE"
	PeriodExtended FarePeriod = "EXTENDED"
	PeriodEvent    FarePeriod = "EVENT"
)

// Name returns the human-readable period name used on announcements.
func (p FarePeriod) Name() string {
	switch p {
	case PeriodPunta:
		return "Hora Punta"
	case PeriodValle:
		return "Horario Valle"
	case PeriodBajo:
		return "Horario Bajo"
	case PeriodNoche:
		return "Horario Nocturno"
	case PeriodExtended:
		return "Horario Extendido"
	case PeriodEvent:
		return "Evento Especial"
	}
	return string(p)
}

// DayType classifies a calendar date for schedule lookup. Festive dates win
// over the weekday/weekend split.
type DayType string

const (
	DayWeekday  DayType = "weekday"
	DaySaturday DayType = "saturday"
	DaySunday   DayType = "sunday"
	DayFestive  DayType = "festive"
)

// CompositeState is the full time-dependent operating state at one instant.
// It is produced fresh on every ComputeState call and never mutated.
type CompositeState struct {
	IsServiceRunning bool       `json:"isServiceRunning"`
	FarePeriod       FarePeriod `json:"farePeriod"`
	IsExtendedHours  bool       `json:"isExtendedHours"`
	ExpressMorning   bool       `json:"expressMorning"`
	ExpressEvening   bool       `json:"expressEvening"`
	IsEventDay       bool       `json:"isEventDay"`
}

// Hours is the operating interval for one day, in "HH:mm" notation. Extended
// reports whether Closing was replaced by an event's extended-closing
// override.
type Hours struct {
	Opening  string `json:"opening"`
	Closing  string `json:"closing"`
	Extended bool   `json:"extended,omitempty"`
}

// Transition is an upcoming schedule edge.
type Transition struct {
	At    time.Time `json:"at"`
	Kind  string    `json:"kind"`
	Label string    `json:"label"`
}

// Clock returns the transition time in "HH:mm" notation.
func (t Transition) Clock() string {
	return t.At.Format("15:04")
}

// ActiveEvent is the slice of a special event the time engine needs: its
// window and the optional extended-closing override. Station details stay in
// the events package.
type ActiveEvent struct {
	Name            string
	Start           time.Time
	End             time.Time
	ExtendedClosing string // "HH:mm", empty when the event does not extend closing
}

// ActiveAt reports whether the event window [Start, End) contains t.
func (e ActiveEvent) ActiveAt(t time.Time) bool {
	return !t.Before(e.Start) && t.Before(e.End)
}
