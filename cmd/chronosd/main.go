package main

import (
	"context"
	"flag"
	"log"
	"time"

	chronos "github.com/theoremus-urban-solutions/transit-chronos"
	"github.com/theoremus-urban-solutions/transit-chronos/config"
	"github.com/theoremus-urban-solutions/transit-chronos/events"
	"github.com/theoremus-urban-solutions/transit-chronos/schedule"
	"github.com/theoremus-urban-solutions/transit-chronos/scheduler"
	"github.com/theoremus-urban-solutions/transit-chronos/storage"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml (defaults to built-in schedule)")
	dbPath := flag.String("db", "", "sqlite database path (overrides config)")
	port := flag.Int("port", 0, "ops HTTP port (overrides config)")
	flag.Parse()

	chronos.InitLogging()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("config load failed, using defaults: %v", err)
		cfg = config.Default()
	}
	if *dbPath != "" {
		cfg.Storage.Path = *dbPath
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer func() { _ = store.Close() }()

	engine := schedule.New(cfg.Schedule)
	sched := scheduler.New(engine.Location())
	manager := events.New(store, sched)

	clock := chronos.RealClock{}
	dispatcher := chronos.LogDispatcher{}
	cooldown := chronos.NewCooldownCache(time.Duration(cfg.Watcher.CooldownMin)*time.Minute, clock)
	watcher := chronos.NewWatcher(engine, storeEvents{store}, dispatcher, cooldown, clock)
	detector := chronos.NewChangeDetector(store, dispatcher)

	jobs := []scheduler.Job{
		{
			Name:    "transition-watch",
			Trigger: scheduler.Interval{Every: time.Duration(cfg.Watcher.CheckIntervalSec) * time.Second},
			Task:    watcher.CheckTime,
		},
		{
			Name:    "check-events",
			Trigger: scheduler.Interval{Every: time.Duration(cfg.Jobs.CheckEventsSec) * time.Second},
			Task:    manager.CheckAndScheduleEvents,
		},
		{
			Name:    "change-detection",
			Trigger: scheduler.Interval{Every: time.Duration(cfg.Jobs.ChangeDetectionSec) * time.Second},
			Task:    detector.Run,
		},
		{
			// Daily summary shortly before weekday opening.
			Name:    "daily-summary",
			Trigger: scheduler.Cron{Expr: "30 5 * * *"},
			Task: func(ctx context.Context) error {
				state, hours, err := watcher.State(ctx)
				if err != nil {
					return err
				}
				next := engine.NextTransition(clock.Now())
				log.Printf("today %s-%s, period %s, next %s at %s",
					hours.Opening, hours.Closing, state.FarePeriod, next.Kind, next.Clock())
				return nil
			},
		},
	}
	for _, job := range jobs {
		if err := sched.AddJob(job); err != nil {
			log.Fatalf("registering job %s: %v", job.Name, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)

	chronos.StartServer(cfg.Server.Port, watcher, sched)
	chronos.HandleGracefulShutdown()
	sched.Stop()
}

// storeEvents adapts the persisted event rows to the watcher's view of
// active events.
type storeEvents struct {
	store *storage.Store
}

func (s storeEvents) ActiveEvents(ctx context.Context) ([]schedule.ActiveEvent, error) {
	evs, err := s.store.Events(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]schedule.ActiveEvent, 0, len(evs))
	for _, ev := range evs {
		out = append(out, schedule.ActiveEvent{
			Name:            ev.Name,
			Start:           ev.Start,
			End:             ev.End,
			ExtendedClosing: ev.ExtendedClosing,
		})
	}
	return out, nil
}
