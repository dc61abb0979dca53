package session

import (
	"sync"
	"time"
)

// Scheduler arranges at most one future wake-up call. Scheduling replaces any
// pending wake, and Stop guarantees a cancelled wake never fires, so a torn
// down session cannot be poked by a stale timer.
type Scheduler struct {
	mu    sync.Mutex
	timer *time.Timer
	gen   int
}

// NewScheduler creates an idle scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// ScheduleWake arranges fn to run at the given instant, immediately when at
// is already in the past. A previously pending wake is cancelled first.
func (s *Scheduler) ScheduleWake(at time.Time, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.gen++
	gen := s.gen

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	s.timer = time.AfterFunc(delay, func() {
		// The generation check closes the race between a firing timer and a
		// concurrent Stop or reschedule.
		s.mu.Lock()
		live := s.gen == gen
		s.mu.Unlock()
		if live {
			fn()
		}
	})
}

// Stop cancels the pending wake, if any.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.gen++
}

func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
