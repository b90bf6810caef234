// Package scheduler provides named, cancellable delayed actions on top of an
// injectable clock. Arming a key always cancels the prior timer for that key,
// which is what makes debouncing and retry ladders explicit and testable.
package scheduler

import (
	"log/slog"
	"sync"
	"time"
)

// Scheduler manages keyed one-shot timers. A key has at most one pending
// timer set; scheduling a key that already has timers cancels them first.
// After Stop no callback will run, even if its underlying timer already
// expired concurrently.
type Scheduler struct {
	mu      sync.Mutex
	clock   Clock
	timers  map[string][]*handle
	stopped bool
	logger  *slog.Logger
}

type handle struct {
	key       string
	timer     Timer
	cancelled bool
}

// New creates a Scheduler using the given clock. A nil clock selects the
// system clock.
func New(clock Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		clock:  clock,
		timers: make(map[string][]*handle),
		logger: logger,
	}
}

// Clock returns the scheduler's clock, for callers that need Now.
func (s *Scheduler) Clock() Clock {
	return s.clock
}

// Schedule arms a one-shot timer under key, cancelling any pending timers
// for the same key first. The callback runs on the clock's timer goroutine.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.cancelLocked(key)
	s.armLocked(key, delay, func(int, bool) { fn() }, 0, true)
}

// ScheduleSequence arms one timer per delay under the same key, cancelling
// any pending timers for the key first. The callback receives the attempt
// index and whether it is the final attempt of the sequence.
func (s *Scheduler) ScheduleSequence(key string, delays []time.Duration, fn func(attempt int, final bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || len(delays) == 0 {
		return
	}
	s.cancelLocked(key)
	for i, d := range delays {
		s.armLocked(key, d, fn, i, i == len(delays)-1)
	}
}

func (s *Scheduler) armLocked(key string, delay time.Duration, fn func(int, bool), attempt int, final bool) {
	h := &handle{key: key}
	h.timer = s.clock.AfterFunc(delay, func() {
		// Re-check cancellation under the lock so no callback can run
		// after Stop or Cancel returned.
		s.mu.Lock()
		if s.stopped || h.cancelled {
			s.mu.Unlock()
			return
		}
		s.removeLocked(h)
		s.mu.Unlock()
		fn(attempt, final)
	})
	s.timers[key] = append(s.timers[key], h)
}

// Cancel stops all pending timers for key. Safe to call for unknown keys.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(key)
}

func (s *Scheduler) cancelLocked(key string) {
	for _, h := range s.timers[key] {
		h.cancelled = true
		h.timer.Stop()
	}
	delete(s.timers, key)
}

func (s *Scheduler) removeLocked(h *handle) {
	remaining := s.timers[h.key][:0]
	for _, other := range s.timers[h.key] {
		if other != h {
			remaining = append(remaining, other)
		}
	}
	if len(remaining) == 0 {
		delete(s.timers, h.key)
	} else {
		s.timers[h.key] = remaining
	}
}

// Pending reports the number of timers currently armed for key.
func (s *Scheduler) Pending(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers[key])
}

// Stop cancels every outstanding timer. No callback runs after Stop returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	cancelled := 0
	for key := range s.timers {
		cancelled += len(s.timers[key])
		s.cancelLocked(key)
	}
	if cancelled > 0 {
		s.logger.Debug("scheduler stopped", "cancelled_timers", cancelled)
	}
}
