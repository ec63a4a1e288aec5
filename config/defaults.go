package config

// DefaultSchedule returns the hard-coded fallback schedule. It is used
// whenever the configured schedule is missing or carries a malformed time
// value: callers of the time engine must always receive a valid state, so a
// bad config degrades to these values instead of propagating an error.
func DefaultSchedule() ScheduleConfig {
	return ScheduleConfig{
		Timezone: "America/Santiago",
		ServiceHours: ServiceHours{
			Weekday:  Interval{Start: "06:00", End: "23:00"},
			Saturday: Interval{Start: "06:30", End: "23:00"},
			Sunday:   Interval{Start: "07:30", End: "23:00"},
			Festive:  Interval{Start: "07:30", End: "23:00"},
		},
		FarePeriods: FarePeriods{
			Punta: []Interval{
				{Start: "07:00", End: "09:00"},
				{Start: "18:00", End: "20:00"},
			},
			Valle: []Interval{
				{Start: "06:00", End: "07:00"},
				{Start: "09:00", End: "18:00"},
				{Start: "20:00", End: "20:45"},
			},
			Bajo: []Interval{
				{Start: "20:45", End: "23:00"},
			},
			Noche: []Interval{
				{Start: "23:00", End: "06:00"},
			},
		},
		ExpressHours: ExpressHours{
			Morning: Interval{Start: "06:00", End: "09:00"},
			Evening: Interval{Start: "18:00", End: "21:00"},
		},
		ExpressLines: []string{"L2", "L4", "L5"},
		FestiveDays: []string{
			"2025-01-01", "2025-04-18", "2025-04-19", "2025-05-01",
			"2025-05-21", "2025-06-20", "2025-06-29", "2025-07-16",
			"2025-08-15", "2025-09-18", "2025-09-19", "2025-10-12",
			"2025-10-31", "2025-11-01", "2025-12-08", "2025-12-25",
		},
	}
}

// Default returns the full application configuration fallback.
func Default() AppConfig {
	return AppConfig{
		Server:   ServerConfig{Port: 16181},
		Schedule: DefaultSchedule(),
		Storage:  StorageConfig{Path: "chronos.db"},
		Watcher:  WatcherConfig{CheckIntervalSec: 60, CooldownMin: 30},
		Jobs:     JobsConfig{CheckEventsSec: 60, ChangeDetectionSec: 30},
	}
}
