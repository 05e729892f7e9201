package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when a job's interval is not positive
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrInvalidJob is returned for a nil or unnamed job
	ErrInvalidJob = errors.New("job must be non-nil and named")

	// ErrDuplicateJob is returned when a job name is registered twice
	ErrDuplicateJob = errors.New("job already registered")

	// ErrSchedulerRunning is returned when registering after Start
	ErrSchedulerRunning = errors.New("scheduler is already running")

	// ErrJobNotFound is returned when a job is not found
	ErrJobNotFound = errors.New("job not found")
)
