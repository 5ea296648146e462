package scheduler

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitDone(t *testing.T, j *Job) {
	t.Helper()
	select {
	case <-j.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("job did not finish in time")
	}
}

func TestScheduler_AfterFires(t *testing.T) {
	s := New(nil)
	defer s.Close()

	fired := make(chan time.Time, 1)
	before := time.Now()
	j := s.After(20*time.Millisecond, func(fireTime time.Time) error {
		fired <- fireTime
		return nil
	})

	waitDone(t, j)
	if err := j.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}
	select {
	case ft := <-fired:
		if ft.Before(before) {
			t.Errorf("fire time %v precedes scheduling time %v", ft, before)
		}
	default:
		t.Fatal("job finished without running")
	}
}

func TestScheduler_AfterNegativeDelayFiresImmediately(t *testing.T) {
	s := New(nil)
	defer s.Close()

	j := s.After(-time.Hour, func(time.Time) error { return nil })
	waitDone(t, j)
	if err := j.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}
}

func TestScheduler_AfterCancel(t *testing.T) {
	s := New(nil)
	defer s.Close()

	var ran atomic.Bool
	j := s.After(time.Hour, func(time.Time) error {
		ran.Store(true)
		return nil
	})
	if u := j.Until(); u <= 59*time.Minute || u > time.Hour {
		t.Errorf("Until() = %v, want just under an hour", u)
	}

	j.Cancel()
	waitDone(t, j)
	if !errors.Is(j.Err(), ErrJobCancelled) {
		t.Errorf("Err() = %v, want ErrJobCancelled", j.Err())
	}
	if ran.Load() {
		t.Error("cancelled job still ran")
	}

	// Cancelling twice is harmless.
	j.Cancel()
	if !errors.Is(j.Err(), ErrJobCancelled) {
		t.Errorf("Err() after second Cancel = %v", j.Err())
	}
}

func TestScheduler_ScheduleRecurs(t *testing.T) {
	s := New(nil)
	defer s.Close()

	var mu sync.Mutex
	asked := 0
	next := func(now time.Time) (time.Time, bool) {
		mu.Lock()
		defer mu.Unlock()
		asked++
		if asked > 3 {
			return time.Time{}, false
		}
		return now.Add(10 * time.Millisecond), true
	}

	var runs atomic.Int32
	j := s.Schedule(next, func(time.Time) error {
		runs.Add(1)
		return nil
	})

	waitDone(t, j)
	if err := j.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}
	if got := runs.Load(); got != 3 {
		t.Errorf("job ran %d times, want 3", got)
	}
}

func TestScheduler_ScheduleExhaustedImmediately(t *testing.T) {
	s := New(nil)
	defer s.Close()

	var ran atomic.Bool
	j := s.Schedule(
		func(time.Time) (time.Time, bool) { return time.Time{}, false },
		func(time.Time) error {
			ran.Store(true)
			return nil
		},
	)

	waitDone(t, j)
	if err := j.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}
	if ran.Load() {
		t.Error("job ran despite an empty recurrence")
	}
}

func TestScheduler_ScheduleErrorStopsRecurrence(t *testing.T) {
	s := New(nil)
	defer s.Close()

	boom := errors.New("boom")
	var runs atomic.Int32
	j := s.Schedule(
		func(now time.Time) (time.Time, bool) { return now.Add(5 * time.Millisecond), true },
		func(time.Time) error {
			runs.Add(1)
			return boom
		},
	)

	waitDone(t, j)
	if !errors.Is(j.Err(), boom) {
		t.Errorf("Err() = %v, want the job's error", j.Err())
	}
	time.Sleep(30 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Errorf("job ran %d times after failing, want 1", got)
	}
}

func TestScheduler_ScheduleCancelStopsRecurrence(t *testing.T) {
	s := New(nil)
	defer s.Close()

	var runs atomic.Int32
	started := make(chan struct{}, 1)
	j := s.Schedule(
		func(now time.Time) (time.Time, bool) { return now.Add(5 * time.Millisecond), true },
		func(time.Time) error {
			runs.Add(1)
			select {
			case started <- struct{}{}:
			default:
			}
			return nil
		},
	)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
	j.Cancel()
	waitDone(t, j)
	if !errors.Is(j.Err(), ErrJobCancelled) {
		t.Errorf("Err() = %v, want ErrJobCancelled", j.Err())
	}

	settled := runs.Load()
	time.Sleep(50 * time.Millisecond)
	if got := runs.Load(); got != settled {
		t.Errorf("job kept running after cancel: %d then %d", settled, got)
	}
}

func TestScheduler_PanicBecomesError(t *testing.T) {
	s := New(nil)
	defer s.Close()

	j := s.After(time.Millisecond, func(time.Time) error {
		panic("scheduled job blew up")
	})

	waitDone(t, j)
	if !errors.Is(j.Err(), ErrJobPanicked) {
		t.Errorf("Err() = %v, want ErrJobPanicked", j.Err())
	}
}

func TestScheduler_Close(t *testing.T) {
	s := New(nil)

	var ran atomic.Bool
	fn := func(time.Time) error {
		ran.Store(true)
		return nil
	}
	j1 := s.After(time.Hour, fn)
	j2 := s.Schedule(
		func(now time.Time) (time.Time, bool) { return now.Add(time.Hour), true },
		fn,
	)

	s.Close()
	waitDone(t, j1)
	waitDone(t, j2)
	if !errors.Is(j1.Err(), ErrJobCancelled) || !errors.Is(j2.Err(), ErrJobCancelled) {
		t.Errorf("Err() after Close = %v, %v, want ErrJobCancelled", j1.Err(), j2.Err())
	}
	if ran.Load() {
		t.Error("job ran despite Close")
	}
	if got := s.Pending(); got != 0 {
		t.Errorf("Pending() = %d after Close, want 0", got)
	}

	j3 := s.After(time.Millisecond, fn)
	waitDone(t, j3)
	if !errors.Is(j3.Err(), ErrSchedulerClosed) {
		t.Errorf("After() on closed scheduler Err() = %v, want ErrSchedulerClosed", j3.Err())
	}
	if ran.Load() {
		t.Error("job ran on a closed scheduler")
	}

	// Closing twice is harmless.
	s.Close()
}

func TestScheduler_PendingTracksJobs(t *testing.T) {
	s := New(nil)
	defer s.Close()

	j := s.After(time.Hour, func(time.Time) error { return nil })
	if got := s.Pending(); got != 1 {
		t.Fatalf("Pending() = %d, want 1", got)
	}
	j.Cancel()
	if got := s.Pending(); got != 0 {
		t.Errorf("Pending() = %d after cancel, want 0", got)
	}
}
