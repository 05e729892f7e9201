// Package scheduler runs periodic background jobs. Each tick takes a short
// lease from a cache.Locker so only one instance runs a given job at a time.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/storefront/inventory/internal/infrastructure/cache"
	"github.com/storefront/inventory/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// JobStatus represents the outcome of a job run
type JobStatus string

const (
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
	// JobStatusSkipped means another instance held the lease
	JobStatusSkipped JobStatus = "SKIPPED"
)

// Job is one unit of periodic work
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobConfig controls how often a job runs and how long one run may take
type JobConfig struct {
	Interval time.Duration
	// LockTTL is the lease length; zero uses Interval
	LockTTL time.Duration
	// Timeout bounds one run; zero uses Interval
	Timeout time.Duration
	// RunOnStart runs the job once immediately instead of waiting a full interval
	RunOnStart bool
}

// JobRun records the most recent run of a job
type JobRun struct {
	Status      JobStatus
	StartedAt   time.Time
	CompletedAt time.Time
	Error       string
}

type scheduledJob struct {
	job    Job
	config JobConfig
}

// Scheduler runs registered jobs on fixed intervals
type Scheduler struct {
	locker cache.Locker
	logger *zap.Logger

	mu        sync.Mutex
	jobs      map[string]*scheduledJob
	lastRuns  map[string]JobRun
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
}

// NewScheduler creates a scheduler. A nil locker runs every job without coordination.
func NewScheduler(locker cache.Locker, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		locker:   locker,
		logger:   logger,
		jobs:     make(map[string]*scheduledJob),
		lastRuns: make(map[string]JobRun),
	}
}

// Register adds a job. Jobs must be registered before Start.
func (s *Scheduler) Register(job Job, config JobConfig) error {
	if job == nil || job.Name() == "" {
		return ErrInvalidJob
	}
	if config.Interval <= 0 {
		return ErrInvalidConfig
	}
	if config.LockTTL <= 0 {
		config.LockTTL = config.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = config.Interval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return ErrSchedulerRunning
	}
	if _, exists := s.jobs[job.Name()]; exists {
		return ErrDuplicateJob
	}
	s.jobs[job.Name()] = &scheduledJob{job: job, config: config}
	return nil
}

// Start launches one loop per registered job
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, sj := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, sj)
	}

	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.jobs)))
	return nil
}

// Stop cancels the loops and waits for in-flight runs until ctx expires
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether Start has been called without a matching Stop
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// RunNow runs the named job once on the caller's goroutine, under the same lease
func (s *Scheduler) RunNow(ctx context.Context, name string) (JobRun, error) {
	s.mu.Lock()
	sj, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return JobRun{}, ErrJobNotFound
	}
	run := s.runJob(ctx, sj)
	if run.Status == JobStatusFailed {
		return run, errors.New(run.Error)
	}
	return run, nil
}

// LastRun returns the most recent run of the named job
func (s *Scheduler) LastRun(name string) (JobRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.lastRuns[name]
	return run, ok
}

func (s *Scheduler) loop(ctx context.Context, sj *scheduledJob) {
	defer s.wg.Done()

	if sj.config.RunOnStart {
		s.runJob(ctx, sj)
	}

	ticker := time.NewTicker(sj.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runJob(ctx, sj)
		}
	}
}

// runJob takes the lease, runs the job with a timeout and records the outcome
func (s *Scheduler) runJob(ctx context.Context, sj *scheduledJob) JobRun {
	name := sj.job.Name()
	run := JobRun{Status: JobStatusRunning, StartedAt: time.Now().UTC()}

	if s.locker != nil {
		lock, err := s.locker.TryLock(ctx, "scheduler:"+name, sj.config.LockTTL)
		if errors.Is(err, cache.ErrLockHeld) {
			s.logger.Debug("Job lease held elsewhere, skipping", zap.String("job", name))
			run.Status = JobStatusSkipped
			run.CompletedAt = time.Now().UTC()
			s.record(name, run)
			return run
		}
		if err != nil {
			// Lock backend down: skip rather than risk concurrent runs
			s.logger.Warn("Failed to acquire job lease", zap.String("job", name), zap.Error(err))
			run.Status = JobStatusFailed
			run.Error = err.Error()
			run.CompletedAt = time.Now().UTC()
			s.record(name, run)
			return run
		}
		defer func() {
			if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("Failed to release job lease", zap.String("job", name), zap.Error(err))
			}
		}()
	}

	jobCtx, cancel := context.WithTimeout(ctx, sj.config.Timeout)
	defer cancel()
	jobCtx, span := telemetry.StartSpan(jobCtx, "scheduler."+name)
	defer span.End()

	err := sj.job.Run(jobCtx)
	run.CompletedAt = time.Now().UTC()
	if err != nil {
		telemetry.RecordError(span, err)
		run.Status = JobStatusFailed
		run.Error = err.Error()
		s.logger.Error("Job failed",
			zap.String("job", name),
			zap.Duration("duration", run.CompletedAt.Sub(run.StartedAt)),
			zap.Error(err),
		)
	} else {
		run.Status = JobStatusSuccess
		s.logger.Debug("Job completed",
			zap.String("job", name),
			zap.Duration("duration", run.CompletedAt.Sub(run.StartedAt)),
		)
	}
	s.record(name, run)
	return run
}

func (s *Scheduler) record(name string, run JobRun) {
	s.mu.Lock()
	s.lastRuns[name] = run
	s.mu.Unlock()
}
