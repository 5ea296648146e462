package scheduler

import (
	"sync"
	"time"
)

// Logger defines the logging interface used by the Scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NextFunc computes the next fire time strictly after t. Returning
// ok=false ends a recurring schedule.
type NextFunc func(t time.Time) (time.Time, bool)

// JobFunc is the work a job performs, invoked with the scheduled fire
// time. For recurring jobs a returned error ends the recurrence.
type JobFunc func(fireTime time.Time) error

// Job is a handle to one scheduled execution chain.
type Job struct {
	s *Scheduler

	mu        sync.Mutex
	timer     *time.Timer
	target    time.Time
	cancelled bool
	finished  bool
	err       error

	done chan struct{}
}

// Cancel stops the job. Cancelling a finished job is a no-op; a job
// function already running is not interrupted, but a recurring job will
// not fire again.
func (j *Job) Cancel() {
	j.mu.Lock()
	if j.finished || j.cancelled {
		j.mu.Unlock()
		return
	}
	j.cancelled = true
	if j.timer != nil {
		j.timer.Stop()
	}
	j.err = ErrJobCancelled
	j.finishLocked()
	j.mu.Unlock()
}

// Done returns a channel closed when the job has finished: completed,
// errored, or cancelled.
func (j *Job) Done() <-chan struct{} { return j.done }

// Err returns the job outcome once Done is closed: nil on completion,
// ErrJobCancelled, or the error returned by the job function.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Until returns the remaining delay to the next fire time.
func (j *Job) Until() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	return time.Until(j.target)
}

// finishLocked marks the job finished. Callers hold j.mu.
func (j *Job) finishLocked() {
	if j.finished {
		return
	}
	j.finished = true
	close(j.done)
	if j.s != nil {
		j.s.forget(j)
	}
}

// Scheduler runs one-shot and recurring jobs on goroutine timers.
//
// All public methods are thread-safe.
type Scheduler struct {
	logger Logger

	mu     sync.Mutex
	jobs   map[*Job]struct{}
	closed bool
}

// New creates a scheduler.
func New(logger Logger) *Scheduler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Scheduler{
		logger: logger,
		jobs:   make(map[*Job]struct{}),
	}
}

// After runs fn once after the given delay. A zero or negative delay
// fires immediately.
func (s *Scheduler) After(d time.Duration, fn JobFunc) *Job {
	if d < 0 {
		d = 0
	}
	j := s.newJob()
	if j.err != nil {
		return j
	}

	j.mu.Lock()
	j.target = time.Now().Add(d)
	j.timer = time.AfterFunc(d, func() {
		j.mu.Lock()
		if j.cancelled {
			j.mu.Unlock()
			return
		}
		target := j.target
		j.mu.Unlock()

		err := s.run(fn, target)

		j.mu.Lock()
		j.err = err
		j.finishLocked()
		j.mu.Unlock()
	})
	j.mu.Unlock()
	return j
}

// Schedule runs fn repeatedly at the times produced by next, until next
// reports no further time, fn returns an error, or the job is cancelled.
// The first fire time is next(now); when there is none the job completes
// immediately without running.
func (s *Scheduler) Schedule(next NextFunc, fn JobFunc) *Job {
	j := s.newJob()
	if j.err != nil {
		return j
	}
	s.arm(j, next, fn)
	return j
}

// arm sets the timer for the next occurrence, completing the job when
// the recurrence is exhausted.
func (s *Scheduler) arm(j *Job, next NextFunc, fn JobFunc) {
	target, ok := next(time.Now())
	if !ok {
		j.mu.Lock()
		j.finishLocked()
		j.mu.Unlock()
		return
	}

	j.mu.Lock()
	if j.cancelled {
		j.mu.Unlock()
		return
	}
	j.target = target
	j.timer = time.AfterFunc(time.Until(target), func() {
		j.mu.Lock()
		if j.cancelled {
			j.mu.Unlock()
			return
		}
		fireTime := j.target
		j.mu.Unlock()

		if err := s.run(fn, fireTime); err != nil {
			j.mu.Lock()
			j.err = err
			j.finishLocked()
			j.mu.Unlock()
			return
		}
		s.arm(j, next, fn)
	})
	j.mu.Unlock()
}

// run invokes fn, converting panics into errors so a broken job cannot
// take the process down.
func (s *Scheduler) run(fn JobFunc, fireTime time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled job panic recovered", "panic", r)
			err = ErrJobPanicked
		}
	}()
	return fn(fireTime)
}

// Close cancels all outstanding jobs. Further After/Schedule calls
// return already-finished jobs with ErrSchedulerClosed.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	jobs := make([]*Job, 0, len(s.jobs))
	for j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	for _, j := range jobs {
		j.Cancel()
	}
}

// Pending returns the number of jobs not yet finished.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Scheduler) newJob() *Job {
	j := &Job{s: s, done: make(chan struct{})}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		j.err = ErrSchedulerClosed
		j.finished = true
		close(j.done)
		j.s = nil
		return j
	}
	s.jobs[j] = struct{}{}
	s.mu.Unlock()
	return j
}

func (s *Scheduler) forget(j *Job) {
	s.mu.Lock()
	delete(s.jobs, j)
	s.mu.Unlock()
}
