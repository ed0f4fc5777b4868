package models

import (
	"sync"
	"time"
)

// StatusChange is one entry of a station's status history.
type StatusChange struct {
	At   time.Time     `json:"at"`
	From StationStatus `json:"from"`
	To   StationStatus `json:"to"`
}

// StatusObserver is told about every recorded transition. It runs after the
// state lock is released.
type StatusObserver func(slug string, change StatusChange)

// StationState is the live, in-memory status of a running station.
// It is NOT persisted; the catalog row is Station.
type StationState struct {
	Slug      string
	ManagedBy ManagedBy

	mu       sync.RWMutex
	status   StationStatus
	history  []StatusChange
	now      func() time.Time
	observer StatusObserver
}

// NewStationState creates a state in OFF_LINE with an empty history.
func NewStationState(slug string, managedBy ManagedBy) *StationState {
	return &StationState{
		Slug:      slug,
		ManagedBy: managedBy,
		status:    StatusOffline,
		history:   make([]StatusChange, 0, 8),
		now:       time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *StationState) WithClock(now func() time.Time) *StationState {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

// Observe installs the transition observer.
func (s *StationState) Observe(fn StatusObserver) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

// Status returns the current status (thread-safe)
func (s *StationState) Status() StationStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SetStatus moves to next and records it. Setting the current status again
// changes nothing and returns false.
func (s *StationState) SetStatus(next StationStatus) bool {
	s.mu.Lock()
	change, ok := s.transitionLocked(next)
	observer := s.observer
	s.mu.Unlock()

	if ok && observer != nil {
		observer(s.Slug, change)
	}
	return ok
}

// CompareAndSetStatus moves to next only if the current status is from.
func (s *StationState) CompareAndSetStatus(from, next StationStatus) bool {
	s.mu.Lock()
	if s.status != from {
		s.mu.Unlock()
		return false
	}
	change, ok := s.transitionLocked(next)
	observer := s.observer
	s.mu.Unlock()

	if ok && observer != nil {
		observer(s.Slug, change)
	}
	return ok
}

func (s *StationState) transitionLocked(next StationStatus) (StatusChange, bool) {
	if s.status == next {
		return StatusChange{}, false
	}
	change := StatusChange{At: s.now(), From: s.status, To: next}
	s.history = append(s.history, change)
	s.status = next
	return change, true
}

// History returns a copy of the recorded transitions, oldest first.
func (s *StationState) History() []StatusChange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StatusChange, len(s.history))
	copy(out, s.history)
	return out
}

// StartTime is the time of the first recorded transition, zero if none.
func (s *StationState) StartTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.history) == 0 {
		return time.Time{}
	}
	return s.history[0].At
}

// AliveDuration measures the most recent stretch spent on air. A stretch
// starts on a transition into an alive status (ON_LINE or QUEUE_SATURATED)
// from a non-alive one and ends on the first transition out of the alive
// statuses. An open stretch runs until now.
func (s *StationState) AliveDuration(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var since, until time.Time
	open := false
	for _, ch := range s.history {
		switch {
		case ch.To.IsAlive() && !ch.From.IsAlive():
			since, until, open = ch.At, time.Time{}, true
		case open && ch.From.IsAlive() && !ch.To.IsAlive():
			until, open = ch.At, false
		}
	}

	if since.IsZero() {
		return 0
	}
	if open {
		return now.Sub(since)
	}
	return until.Sub(since)
}
