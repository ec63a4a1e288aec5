package config

// Interval is a clock interval in "HH:mm" notation. Membership is half-open
// [Start, End); an interval whose End sorts before its Start wraps past
// midnight.
type Interval struct {
	Start string `yaml:"start" validate:"required"`
	End   string `yaml:"end" validate:"required"`
}

// ServiceHours holds the operating interval per day type.
type ServiceHours struct {
	Weekday  Interval `yaml:"weekday"`
	Saturday Interval `yaml:"saturday"`
	Sunday   Interval `yaml:"sunday"`
	Festive  Interval `yaml:"festive"`
}

// FarePeriods holds the configured intervals for each named fare period.
// PUNTA intervals are checked in declaration order.
type FarePeriods struct {
	Punta []Interval `yaml:"PUNTA"`
	Valle []Interval `yaml:"VALLE"`
	Bajo  []Interval `yaml:"BAJO"`
	Noche []Interval `yaml:"NOCHE"`
}

// ExpressHours holds the morning and evening express-service windows.
// Express service only runs Monday through Friday.
type ExpressHours struct {
	Morning Interval `yaml:"morning"`
	Evening Interval `yaml:"evening"`
}

// ScheduleConfig is the static schedule configuration the time engine
// computes against. It is immutable once loaded.
type ScheduleConfig struct {
	Timezone     string       `yaml:"timezone" validate:"required"`
	ServiceHours ServiceHours `yaml:"serviceHours"`
	FarePeriods  FarePeriods  `yaml:"farePeriods"`
	ExpressHours ExpressHours `yaml:"expressHours"`
	ExpressLines []string     `yaml:"expressLines"`
	FestiveDays  []string     `yaml:"festiveDays" validate:"dive,datetime=2006-01-02"`
}

// ServerConfig contains the ops HTTP server configuration.
type ServerConfig struct {
	Port int `yaml:"port" validate:"gte=0"`
}

// StorageConfig contains the persisted store configuration.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// WatcherConfig contains transition watcher tuning.
type WatcherConfig struct {
	CheckIntervalSec int `yaml:"checkIntervalSec" validate:"gte=0"`
	CooldownMin      int `yaml:"cooldownMin" validate:"gte=0"`
}

// JobsConfig contains the polling intervals of the built-in scheduler jobs.
type JobsConfig struct {
	CheckEventsSec     int `yaml:"checkEventsSec" validate:"gte=0"`
	ChangeDetectionSec int `yaml:"changeDetectionSec" validate:"gte=0"`
}

// AppConfig is the root configuration structure.
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Schedule ScheduleConfig `yaml:"schedule" validate:"required"`
	Storage  StorageConfig  `yaml:"storage"`
	Watcher  WatcherConfig  `yaml:"watcher"`
	Jobs     JobsConfig     `yaml:"jobs"`
}
