package schedule

import (
	"log"
	"sort"
	"time"

	"github.com/theoremus-urban-solutions/transit-chronos/config"
)

// Engine is the pure time-state calculator. It carries only resolved
// configuration: the composite state is a total, deterministic function of
// (now, config, active events).
type Engine struct {
	loc     *time.Location
	service map[DayType]span
	raw     map[DayType]config.Interval
	punta   []span
	valle   []span
	bajo    []span
	noche   []span
	morning span
	evening span
	lines   []string
	festive map[string]bool
}

// New resolves cfg into an Engine. A malformed time value anywhere in the
// schedule falls back to the hard-coded default schedule: callers always get
// a working engine, never an error for bad schedule data.
func New(cfg config.ScheduleConfig) *Engine {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Printf("[schedule] invalid timezone %q, falling back to default: %v", cfg.Timezone, err)
		loc, _ = time.LoadLocation(config.DefaultSchedule().Timezone)
		if loc == nil {
			loc = time.UTC
		}
	}

	e, err := resolve(cfg, loc)
	if err != nil {
		log.Printf("[schedule] malformed schedule config, using default schedule: %v", err)
		e, _ = resolve(config.DefaultSchedule(), loc)
	}
	return e
}

func resolve(cfg config.ScheduleConfig, loc *time.Location) (*Engine, error) {
	e := &Engine{
		loc:     loc,
		service: map[DayType]span{},
		raw:     map[DayType]config.Interval{},
		festive: map[string]bool{},
	}
	for day, iv := range map[DayType]config.Interval{
		DayWeekday:  cfg.ServiceHours.Weekday,
		DaySaturday: cfg.ServiceHours.Saturday,
		DaySunday:   cfg.ServiceHours.Sunday,
		DayFestive:  cfg.ServiceHours.Festive,
	} {
		s, err := resolveSpan(iv)
		if err != nil {
			return nil, err
		}
		e.service[day] = s
		e.raw[day] = iv
	}
	var err error
	if e.punta, err = resolveSpans(cfg.FarePeriods.Punta); err != nil {
		return nil, err
	}
	if e.valle, err = resolveSpans(cfg.FarePeriods.Valle); err != nil {
		return nil, err
	}
	if e.bajo, err = resolveSpans(cfg.FarePeriods.Bajo); err != nil {
		return nil, err
	}
	if e.noche, err = resolveSpans(cfg.FarePeriods.Noche); err != nil {
		return nil, err
	}
	if e.morning, err = resolveSpan(cfg.ExpressHours.Morning); err != nil {
		return nil, err
	}
	if e.evening, err = resolveSpan(cfg.ExpressHours.Evening); err != nil {
		return nil, err
	}
	e.lines = append([]string(nil), cfg.ExpressLines...)
	for _, d := range cfg.FestiveDays {
		e.festive[d] = true
	}
	return e, nil
}

func resolveSpan(iv config.Interval) (span, error) {
	if iv.Start == "" && iv.End == "" {
		return span{}, nil
	}
	start, err := parseClock(iv.Start)
	if err != nil {
		return span{}, err
	}
	end, err := parseClock(iv.End)
	if err != nil {
		return span{}, err
	}
	return span{start: start, end: end}, nil
}

func resolveSpans(ivs []config.Interval) ([]span, error) {
	out := make([]span, 0, len(ivs))
	for _, iv := range ivs {
		s, err := resolveSpan(iv)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Location returns the engine's timezone.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// ExpressLines returns the lines that run express service during the
// configured windows.
func (e *Engine) ExpressLines() []string {
	return append([]string(nil), e.lines...)
}

// IsFestive reports whether the "YYYY-MM-DD" date is in the festive calendar.
func (e *Engine) IsFestive(date string) bool {
	return e.festive[date]
}

// DayTypeAt classifies now's calendar date. Festive dates win over the
// weekday split.
func (e *Engine) DayTypeAt(now time.Time) DayType {
	now = now.In(e.loc)
	if e.festive[now.Format("2006-01-02")] {
		return DayFestive
	}
	switch now.Weekday() {
	case time.Sunday:
		return DaySunday
	case time.Saturday:
		return DaySaturday
	}
	return DayWeekday
}

// OperatingHours returns today's service interval. When an event's
// extended-closing override applies to now, Closing is replaced by the
// override (service end is extended, never shortened).
func (e *Engine) OperatingHours(now time.Time, events []ActiveEvent) Hours {
	now = now.In(e.loc)
	iv := e.raw[e.DayTypeAt(now)]
	h := Hours{Opening: iv.Start, Closing: iv.End}
	if ev, ok := e.extensionFor(now, events); ok {
		h.Closing = ev.ExtendedClosing
		h.Extended = true
	}
	return h
}

// ComputeState computes the composite operating state at now. It is pure:
// repeated calls with the same inputs return the same state.
func (e *Engine) ComputeState(now time.Time, events []ActiveEvent) CompositeState {
	now = now.In(e.loc)
	day := e.DayTypeAt(now)
	m := now.Hour()*60 + now.Minute()
	svc := e.service[day]

	running := svc.contains(m)
	extended := e.inExtendedWindow(now, events)
	if extended {
		running = true
	}

	state := CompositeState{
		IsServiceRunning: running,
		IsExtendedHours:  extended,
		IsEventDay:       eventDayAt(now, events),
		FarePeriod:       e.farePeriod(now, m, running, extended, events),
	}

	// Express windows only run on regular weekdays: a festive Monday
	// gets no express service. Each window is evaluated independently of
	// the other.
	if day == DayWeekday {
		state.ExpressMorning = e.morning.contains(m)
		state.ExpressEvening = e.evening.contains(m)
	}
	return state
}

func (e *Engine) farePeriod(now time.Time, m int, running, extended bool, events []ActiveEvent) FarePeriod {
	// Event overrides take absolute priority over any time-of-day bucket.
	for _, ev := range events {
		if ev.ActiveAt(now) {
			return PeriodEvent
		}
	}
	if extended {
		return PeriodExtended
	}
	switch {
	case anyContains(e.punta, m):
		return PeriodPunta
	case anyContains(e.valle, m):
		return PeriodValle
	case anyContains(e.bajo, m):
		return PeriodBajo
	case anyContains(e.noche, m):
		return PeriodNoche
	}
	if running {
		return PeriodValle
	}
	return PeriodNoche
}

// extensionFor returns the event whose extended-closing override applies to
// now, if any. An override applies from the event's start until its window
// closes (which may be past midnight).
func (e *Engine) extensionFor(now time.Time, events []ActiveEvent) (ActiveEvent, bool) {
	for _, ev := range events {
		if ev.ExtendedClosing == "" {
			continue
		}
		if _, _, ok := e.extensionWindow(ev); !ok {
			continue
		}
		start := ev.Start.In(e.loc)
		if sameDate(now, start) {
			return ev, true
		}
		// Past midnight inside the extension window the calendar date has
		// already rolled over.
		if from, until, _ := e.extensionWindow(ev); !now.Before(from) && now.Before(until) {
			return ev, true
		}
	}
	return ActiveEvent{}, false
}

// inExtendedWindow reports whether now falls between the normal closing time
// and an event's extended closing, handling extensions that cross midnight.
func (e *Engine) inExtendedWindow(now time.Time, events []ActiveEvent) bool {
	for _, ev := range events {
		if ev.ExtendedClosing == "" {
			continue
		}
		from, until, ok := e.extensionWindow(ev)
		if !ok {
			continue
		}
		if !now.Before(from) && now.Before(until) {
			return true
		}
	}
	return false
}

// extensionWindow resolves an event's extension to concrete timestamps: from
// the normal closing on the event's start date until the extended closing,
// rolling to the next day when the override sorts before the normal closing.
func (e *Engine) extensionWindow(ev ActiveEvent) (from, until time.Time, ok bool) {
	ext, err := parseClock(ev.ExtendedClosing)
	if err != nil {
		log.Printf("[schedule] event %q has malformed extended closing %q, ignoring", ev.Name, ev.ExtendedClosing)
		return time.Time{}, time.Time{}, false
	}
	day := ev.Start.In(e.loc)
	closing := e.service[e.DayTypeAt(day)].end
	if ext <= closing {
		// Override does not extend the day; service end is never shortened.
		if ext > e.service[e.DayTypeAt(day)].start {
			return time.Time{}, time.Time{}, false
		}
		// Extension crosses midnight (e.g. closing 23:00, override 01:30).
		from = atMinute(day, closing)
		until = atMinute(day.AddDate(0, 0, 1), ext)
		return from, until, true
	}
	from = atMinute(day, closing)
	until = atMinute(day, ext)
	return from, until, true
}

// NextTransition returns the next schedule edge strictly after now. The
// candidate set is today's peak starts/ends, today's open/close, and
// tomorrow's open; tomorrow's open is the guaranteed fallback.
func (e *Engine) NextTransition(now time.Time) Transition {
	now = now.In(e.loc)
	day := e.DayTypeAt(now)
	svc := e.service[day]

	candidates := []Transition{
		{At: atMinute(now, svc.start), Kind: "service-open", Label: "service opening"},
		{At: atMinute(now, svc.end), Kind: "service-close", Label: "service closing"},
	}
	for _, p := range e.punta {
		candidates = append(candidates,
			Transition{At: atMinute(now, p.start), Kind: "start-punta", Label: "peak fare start"},
			Transition{At: atMinute(now, p.end), Kind: "end-punta", Label: "peak fare end"},
		)
	}
	tomorrow := now.AddDate(0, 0, 1)
	tomorrowSvc := e.service[e.DayTypeAt(tomorrow)]
	candidates = append(candidates, Transition{
		At: atMinute(tomorrow, tomorrowSvc.start), Kind: "service-open", Label: "service opening",
	})

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].At.Before(candidates[j].At) })
	for _, c := range candidates {
		if c.At.After(now) {
			return c
		}
	}
	// Unreachable: tomorrow's open is always after now.
	return candidates[len(candidates)-1]
}

func atMinute(day time.Time, m int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), m/60, m%60, 0, 0, day.Location())
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// eventDayAt reports whether any event window overlaps now's calendar date.
func eventDayAt(now time.Time, events []ActiveEvent) bool {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	for _, ev := range events {
		if ev.Start.Before(dayEnd) && dayStart.Before(ev.End) {
			return true
		}
	}
	return false
}
