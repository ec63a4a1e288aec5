package scheduler

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Task is a job body. Errors are logged at the wrapper boundary and never
// escape to the timer goroutine.
type Task func(ctx context.Context) error

// Job is a named unit of scheduled work. Names are unique: re-adding a name
// replaces the previous registration.
type Job struct {
	Name    string
	Trigger Trigger
	Task    Task
}

// JobInfo is a read-only view of a registered job.
type JobInfo struct {
	Name    string    `json:"name"`
	Trigger string    `json:"trigger"`
	NextRun time.Time `json:"nextRun,omitzero"`
	Running bool      `json:"running"`
}

type entry struct {
	job     Job
	timer   *time.Timer
	nextRun time.Time
}

// Scheduler runs named jobs on cron, interval or one-shot triggers. The same
// job name never executes twice concurrently: a fire that lands while the
// job is still running is skipped, not queued.
type Scheduler struct {
	mu      sync.Mutex
	loc     *time.Location
	parser  cron.Parser
	jobs    map[string]*entry
	running map[string]struct{}
	started bool
	ctx     context.Context
}

// New creates a scheduler whose cron expressions are evaluated in loc.
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		loc:     loc,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		jobs:    map[string]*entry{},
		running: map[string]struct{}{},
	}
}

// AddJob registers a job. Cron expressions are validated here so a bad
// expression surfaces at registration, not at fire time. If the scheduler is
// already started the job is armed immediately, which is how one-shot event
// jobs land after startup.
func (s *Scheduler) AddJob(job Job) error {
	if job.Name == "" || job.Trigger == nil || job.Task == nil {
		return errors.New("job must have a name, a trigger and a task")
	}
	if c, ok := job.Trigger.(Cron); ok {
		if _, err := s.parser.Parse(c.Expr); err != nil {
			return err
		}
	}

	s.mu.Lock()
	if old, ok := s.jobs[job.Name]; ok {
		log.Printf("[scheduler] job %q already exists, replacing", job.Name)
		if old.timer != nil {
			old.timer.Stop()
		}
	}
	en := &entry{job: job}
	s.jobs[job.Name] = en
	started := s.started
	s.mu.Unlock()

	if started {
		s.arm(en)
	}
	log.Printf("[scheduler] job added: %s %s", job.Name, job.Trigger)
	return nil
}

// Start arms every registered job. ctx is passed to task invocations; Stop
// does not cancel it, so in-flight work is never interrupted, only future
// scheduling.
func (s *Scheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.ctx = ctx
	entries := make([]*entry, 0, len(s.jobs))
	for _, en := range s.jobs {
		entries = append(entries, en)
	}
	s.mu.Unlock()

	for _, en := range entries {
		s.arm(en)
	}
	log.Printf("[scheduler] started with %d jobs", len(entries))
}

// Stop cancels all timers and clears the running set. In-flight tasks run to
// completion; they are just not rescheduled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	for _, en := range s.jobs {
		if en.timer != nil {
			en.timer.Stop()
		}
	}
	s.jobs = map[string]*entry{}
	s.running = map[string]struct{}{}
	log.Printf("[scheduler] stopped")
}

// Job returns the registered job with the given name.
func (s *Scheduler) Job(name string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	en, ok := s.jobs[name]
	if !ok {
		return Job{}, false
	}
	return en.job, true
}

// Jobs lists registered jobs sorted by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.jobs))
	for name, en := range s.jobs {
		_, running := s.running[name]
		out = append(out, JobInfo{
			Name:    name,
			Trigger: en.job.Trigger.String(),
			NextRun: en.nextRun,
			Running: running,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Running returns the names of jobs currently executing.
func (s *Scheduler) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.running))
	for name := range s.running {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// arm schedules the next fire for an entry based on its trigger kind.
func (s *Scheduler) arm(en *entry) {
	switch tr := en.job.Trigger.(type) {
	case Interval:
		// Interval jobs run once immediately on arming, then rearm after
		// each completion.
		s.armAfter(en, 0)
	case OneShot:
		delay := time.Until(tr.At)
		if delay < 0 {
			delay = 0
		}
		s.mu.Lock()
		if s.live(en) {
			en.nextRun = tr.At
			en.timer = time.AfterFunc(delay, func() { s.runJob(en) })
		}
		s.mu.Unlock()
	case Cron:
		sched, err := s.parser.Parse(tr.Expr)
		if err != nil {
			// Validated in AddJob; kept as a guard.
			log.Printf("[scheduler] job %q has invalid cron expression: %v", en.job.Name, err)
			return
		}
		s.armCron(en, sched)
	}
}

func (s *Scheduler) armAfter(en *entry, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live(en) {
		return
	}
	en.nextRun = time.Now().Add(d)
	en.timer = time.AfterFunc(d, func() { s.runJob(en) })
}

// armCron rearms on the wall-clock schedule at fire time, before the task
// runs, so long tasks do not delay subsequent fires. The running guard then
// decides whether an overlapping fire is skipped.
func (s *Scheduler) armCron(en *entry, sched cron.Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live(en) {
		return
	}
	next := sched.Next(time.Now().In(s.loc))
	en.nextRun = next
	en.timer = time.AfterFunc(time.Until(next), func() {
		s.armCron(en, sched)
		s.runJob(en)
	})
}

// live reports whether en is still the current registration for its name.
// Callers must hold mu. Stale timer callbacks from replaced or stopped jobs
// fail this check and do nothing.
func (s *Scheduler) live(en *entry) bool {
	return s.started && s.jobs[en.job.Name] == en
}

func (s *Scheduler) runJob(en *entry) {
	name := en.job.Name

	s.mu.Lock()
	if !s.live(en) {
		s.mu.Unlock()
		return
	}
	if _, busy := s.running[name]; busy {
		s.mu.Unlock()
		log.Printf("[scheduler] job %q is already running, skipping this fire", name)
		jobSkips.WithLabelValues(name).Inc()
		return
	}
	s.running[name] = struct{}{}
	ctx := s.ctx
	s.mu.Unlock()

	defer s.finishJob(en)

	jobRuns.WithLabelValues(name).Inc()
	if err := en.job.Task(ctx); err != nil {
		jobFailures.WithLabelValues(name).Inc()
		log.Printf("[scheduler] job %q failed: %v", name, err)
	}
}

// finishJob releases the running guard and schedules what comes next:
// intervals rearm measured from completion, one-shots remove themselves,
// cron entries were already rearmed at fire time.
func (s *Scheduler) finishJob(en *entry) {
	name := en.job.Name
	if r := recover(); r != nil {
		jobFailures.WithLabelValues(name).Inc()
		log.Printf("[scheduler] job %q panicked: %v", name, r)
	}

	s.mu.Lock()
	delete(s.running, name)
	live := s.live(en)
	s.mu.Unlock()
	if !live {
		return
	}

	switch tr := en.job.Trigger.(type) {
	case Interval:
		s.armAfter(en, tr.Every)
	case OneShot:
		s.mu.Lock()
		if s.jobs[name] == en {
			delete(s.jobs, name)
		}
		s.mu.Unlock()
	}
}
