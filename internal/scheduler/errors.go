package scheduler

import "errors"

var (
	// ErrInvalidCronExpression is returned when a cron specification
	// cannot be parsed.
	ErrInvalidCronExpression = errors.New("scheduler: invalid cron expression")

	// ErrJobCancelled is reported by Job.Err when the job was cancelled
	// before completing.
	ErrJobCancelled = errors.New("scheduler: job cancelled")

	// ErrJobPanicked is reported by Job.Err when the job function panicked.
	ErrJobPanicked = errors.New("scheduler: job panicked")

	// ErrSchedulerClosed is returned when scheduling on a closed scheduler.
	ErrSchedulerClosed = errors.New("scheduler: closed")
)
