package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vnykmshr/pageflow/pkg/common/validation"
	"github.com/vnykmshr/pageflow/pkg/metrics"
)

// Job is a unit of work triggered by the scheduler. Every pipeline
// satisfies it through its Run method.
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc is a function type that implements the Job interface.
type JobFunc func(ctx context.Context) error

// Run implements the Job interface for JobFunc.
func (f JobFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Task describes a scheduled job.
type Task struct {
	ID        string
	Spec      string
	Next      time.Time
	Prev      time.Time
	Created   time.Time
	Runs      int64
	Failures  int64
	LastError error
}

// Stats holds scheduler-wide counters.
type Stats struct {
	Scheduled int64
	Runs      int64
	Failures  int64
	Skipped   int64
}

// Scheduler triggers jobs on cron schedules. A job never overlaps itself:
// a trigger that fires while the previous run is still going is skipped.
type Scheduler interface {
	// ScheduleCron schedules job using a cron expression.
	// Supports standard five-field cron format with an optional leading
	// seconds field, and descriptors:
	//   "0 */2 * * *"     - Every 2 hours
	//   "30 14 * * 1-5"   - 2:30 PM on weekdays
	//   "*/10 * * * * *"  - Every 10 seconds
	//   "@daily"          - Every day at midnight
	//   "@every 1m30s"    - Every 90 seconds
	ScheduleCron(id string, spec string, job Job) error

	// ScheduleEvery schedules job at a fixed interval, rounded to whole seconds.
	ScheduleEvery(id string, interval time.Duration, job Job) error

	// Cancel removes a job. Returns false if id is unknown.
	Cancel(id string) bool

	// CancelAll removes every job.
	CancelAll()

	// List returns scheduled jobs ordered by next run time.
	List() []Task

	// Start begins triggering jobs.
	Start() error

	// Stop halts triggering and cancels the context of running jobs.
	// The returned channel closes once running jobs have returned.
	Stop() <-chan struct{}

	// Stats returns scheduler-wide counters.
	Stats() Stats
}

// Config holds scheduler configuration.
type Config struct {
	// Name identifies the scheduler in logs and metrics.
	Name string

	// Location is the time zone used to evaluate schedules (default: time.Local).
	Location *time.Location

	// MaxTasks is the maximum number of scheduled jobs (default: 10000).
	MaxTasks int

	// Logger receives scheduler diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics enables Prometheus instrumentation when Enabled is set.
	Metrics metrics.Config

	// OnRunComplete is called after every job run.
	OnRunComplete func(id string, err error, duration time.Duration)
}

type entry struct {
	id      string
	spec    string
	entryID cron.EntryID
	created time.Time

	runs     int64
	failures int64
	lastErr  error
}

type scheduler struct {
	name     string
	maxTasks int
	log      *zap.Logger
	registry *metrics.Registry
	onRun    func(id string, err error, duration time.Duration)
	parser   cron.Parser
	cron     *cron.Cron
	skips    *skipCounter

	mu      sync.Mutex
	entries map[string]*entry
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	stats   Stats
}

// New creates a scheduler with default configuration.
func New() Scheduler {
	return NewWithConfig(Config{})
}

// NewWithMetrics creates a scheduler with metrics on a private registry.
func NewWithMetrics(name string, logger *zap.Logger) Scheduler {
	return NewWithConfig(Config{
		Name:    name,
		Logger:  logger,
		Metrics: metrics.Config{Enabled: true, Registry: prometheus.NewRegistry()},
	})
}

// NewWithConfig creates a scheduler with custom configuration.
func NewWithConfig(cfg Config) Scheduler {
	name := cfg.Name
	if name == "" {
		name = "scheduler"
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	maxTasks := cfg.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 10000 // Reasonable default
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("scheduler", name))

	s := &scheduler{
		name:     name,
		maxTasks: maxTasks,
		log:      log,
		onRun:    cfg.OnRunComplete,
		parser: cron.NewParser(
			cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		),
		entries: make(map[string]*entry),
	}
	if cfg.Metrics.Enabled {
		s.registry = cfg.Metrics.Resolve()
	}

	s.skips = &skipCounter{}
	cronLog := newCronLogger(log, s.skips)
	s.cron = cron.New(
		cron.WithLocation(location),
		cron.WithParser(s.parser),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

func (s *scheduler) ScheduleCron(id string, spec string, job Job) error {
	if err := validation.ValidateNotEmpty("scheduler", "spec", spec); err != nil {
		return err
	}

	schedule, err := s.parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return s.add(id, spec, schedule, job)
}

func (s *scheduler) ScheduleEvery(id string, interval time.Duration, job Job) error {
	if interval < time.Second {
		return fmt.Errorf("interval %v is below the one second resolution", interval)
	}
	return s.add(id, "@every "+interval.String(), cron.Every(interval), job)
}

func (s *scheduler) add(id, spec string, schedule cron.Schedule, job Job) error {
	if err := validation.ValidateNotEmpty("scheduler", "id", id); err != nil {
		return err
	}
	if len(id) > 255 {
		return fmt.Errorf("task ID too long (max 255 characters)")
	}
	if job == nil {
		return validation.ValidateNotNil("scheduler", "job", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; exists {
		return fmt.Errorf("task with ID %q already exists, use a different ID or cancel the existing task first", id)
	}
	if len(s.entries) >= s.maxTasks {
		return fmt.Errorf("cannot schedule task: maximum number of tasks (%d) reached", s.maxTasks)
	}

	e := &entry{id: id, spec: spec, created: time.Now()}
	e.entryID = s.cron.Schedule(schedule, cron.FuncJob(func() { s.execute(e, job) }))
	s.entries[id] = e
	s.stats.Scheduled++

	if s.registry != nil {
		s.registry.TasksScheduled.WithLabelValues(s.name).Inc()
	}
	s.log.Debug("job scheduled", zap.String("id", id), zap.String("spec", spec))
	return nil
}

// execute runs one triggered job. The cron chain has already ruled out
// an overlapping run of the same job.
func (s *scheduler) execute(e *entry, job Job) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	start := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(start)

	s.mu.Lock()
	e.runs++
	e.lastErr = err
	s.stats.Runs++
	if err != nil {
		e.failures++
		s.stats.Failures++
	}
	s.mu.Unlock()

	if s.registry != nil {
		s.registry.TasksExecuted.WithLabelValues(s.name).Inc()
		s.registry.TaskExecutionDuration.WithLabelValues(s.name).Observe(elapsed.Seconds())
		if err != nil {
			s.registry.TasksFailed.WithLabelValues(s.name).Inc()
		} else {
			s.registry.TasksCompleted.WithLabelValues(s.name).Inc()
		}
	}

	if err != nil {
		s.log.Warn("job failed", zap.String("id", e.id), zap.Duration("duration", elapsed), zap.Error(err))
	} else {
		s.log.Debug("job completed", zap.String("id", e.id), zap.Duration("duration", elapsed))
	}

	if s.onRun != nil {
		s.onRun(e.id, err, elapsed)
	}
}

func (s *scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[id]
	if !exists {
		return false
	}
	s.cron.Remove(e.entryID)
	delete(s.entries, id)
	return true
}

func (s *scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		s.cron.Remove(e.entryID)
		delete(s.entries, id)
	}
}

func (s *scheduler) List() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]Task, 0, len(s.entries))
	for _, e := range s.entries {
		ce := s.cron.Entry(e.entryID)
		tasks = append(tasks, Task{
			ID:        e.id,
			Spec:      e.spec,
			Next:      ce.Next,
			Prev:      ce.Prev,
			Created:   e.created,
			Runs:      e.runs,
			Failures:  e.failures,
			LastError: e.lastErr,
		})
	}

	// Sort by next run, then ID for jobs that have not been planned yet
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].Next.Equal(tasks[j].Next) {
			return tasks[i].Next.Before(tasks[j].Next)
		}
		return tasks[i].ID < tasks[j].ID
	})

	return tasks
}

func (s *scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running, call Stop() first")
	}
	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}

	s.running = true
	s.cron.Start()
	s.log.Debug("scheduler started", zap.Int("jobs", len(s.entries)))
	return nil
}

func (s *scheduler) Stop() <-chan struct{} {
	stopped := make(chan struct{})

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		close(stopped)
		return stopped
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	done := s.cron.Stop()
	cancel()

	go func() {
		defer close(stopped)
		<-done.Done()
		s.log.Debug("scheduler stopped")
	}()
	return stopped
}

func (s *scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.Skipped = s.skips.load()
	return stats
}
