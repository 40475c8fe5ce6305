package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"cine-match/logging"
)

// DefaultJobTimeout bounds a single scheduled run.
const DefaultJobTimeout = 30 * time.Minute

// Job represents a scheduled job
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs jobs on cron schedules. Overlapping runs of the same entry are
// skipped rather than queued.
type Scheduler struct {
	cron       *cron.Cron
	mu         sync.Mutex
	jobs       map[string]Job
	isRunning  bool
	stopped    bool
	jobTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// cronLogger forwards robfig/cron's internal logging to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logging.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logging.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}

// NewScheduler creates a new scheduler
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	l := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		jobs:       make(map[string]Job),
		jobTimeout: DefaultJobTimeout,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// AddJob schedules job with a six-field cron expression or a descriptor such as
// "@every 5s". Each job name may be registered once.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	_, err := s.cron.AddFunc(schedule, func() {
		logging.Debug().Str("job", name).Msg("Starting scheduled job")
		start := time.Now()

		if err := s.run(job); err != nil {
			logging.Warn().Err(err).Str("job", name).Msg("Scheduled job failed")
			return
		}
		logging.Info().Str("job", name).Dur("duration", time.Since(start)).Msg("Completed scheduled job")
	})
	if err != nil {
		return fmt.Errorf("failed to add job %s: %w", name, err)
	}

	s.jobs[name] = job
	return nil
}

// AddIntervalJob runs job every interval, rounded to whole seconds.
func (s *Scheduler) AddIntervalJob(interval time.Duration, job Job) error {
	if interval < time.Second {
		return fmt.Errorf("interval %s is shorter than one second", interval)
	}
	return s.AddJob("@every "+interval.String(), job)
}

func (s *Scheduler) run(job Job) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.jobTimeout)
	defer cancel()
	return job.Run(ctx)
}

// Start starts the scheduler. A stopped scheduler stays stopped.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning || s.stopped {
		return
	}
	s.cron.Start()
	s.isRunning = true
	logging.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.isRunning = false
	s.stopped = true
	logging.Info().Msg("Scheduler stopped")
}

// RunJobNow runs a job immediately outside of schedule
func (s *Scheduler) RunJobNow(name string) error {
	s.mu.Lock()
	job, exists := s.jobs[name]
	s.mu.Unlock()
	if !exists {
		return fmt.Errorf("job %s not registered", name)
	}

	logging.Info().Str("job", name).Msg("Manually running job")
	return s.run(job)
}
