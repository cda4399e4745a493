// Package scheduler runs keyed callbacks at wall-clock deadlines. Deadlines
// are expected to be derived from persisted state so that they can be
// scheduled again after a restart.
package scheduler

import (
	"log/slog"
	"sync"
	"time"
)

type Scheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	now     func() time.Time
}

func New() *Scheduler {
	return &Scheduler{
		timers: make(map[string]*time.Timer),
		now:    time.Now,
	}
}

// Schedule runs fn at the given time, replacing any pending task with the
// same key. Deadlines in the past fire immediately.
func (s *Scheduler) Schedule(key string, at time.Time, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		slog.Warn("scheduler stopped; dropping task", "key", key, "at", at)
		return
	}
	if existing, ok := s.timers[key]; ok {
		existing.Stop()
	}
	delay := at.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.timers[key] != timer {
			s.mu.Unlock()
			return
		}
		delete(s.timers, key)
		s.mu.Unlock()
		fn()
	})
	s.timers[key] = timer
	slog.Debug("task scheduled", "key", key, "at", at, "delay", delay)
}

// Cancel drops the pending task for key and reports whether one existed.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	timer, ok := s.timers[key]
	if !ok {
		return false
	}
	timer.Stop()
	delete(s.timers, key)
	return true
}

func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

// Stop cancels every pending task; later Schedule calls are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
	s.stopped = true
}
