package streaming

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(threshold int, reset time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(threshold, reset)
	cb.now = clock.Now
	return cb, clock
}

func TestCircuitState_String(t *testing.T) {
	tests := []struct {
		name     string
		state    CircuitState
		expected string
	}{
		{"Closed", StateClosed, "closed"},
		{"Open", StateOpen, "open"},
		{"Half Open", StateHalfOpen, "half_open"},
		{"Unknown", CircuitState(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.state.String(); result != tt.expected {
				t.Errorf("CircuitState.String() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestNewCircuitBreaker_ClampsThreshold(t *testing.T) {
	cb := NewCircuitBreaker(0, time.Second)
	if cb.failureThreshold != 1 {
		t.Errorf("failureThreshold = %v, want 1", cb.failureThreshold)
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want %v", cb.State(), StateClosed)
	}
}

func TestCircuitBreaker_OpensOnceAtThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	opened := 0
	for i := 0; i < 5; i++ {
		if cb.RecordFailure() {
			opened++
		}
	}

	if opened != 1 {
		t.Errorf("RecordFailure reported opening %d times, want 1", opened)
	}
	if cb.State() != StateOpen {
		t.Errorf("State = %v, want %v", cb.State(), StateOpen)
	}
	if cb.CanAttempt() {
		t.Error("CanAttempt should be false while open")
	}
	if cb.Failures() != 5 {
		t.Errorf("Failures = %v, want 5", cb.Failures())
	}
}

func TestCircuitBreaker_SuccessBetweenFailuresKeepsClosed(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Minute)

	cb.RecordFailure()
	if recovered := cb.RecordSuccess(); recovered {
		t.Error("RecordSuccess on a closed breaker should not report recovery")
	}
	cb.RecordFailure()

	if cb.State() != StateClosed {
		t.Errorf("State = %v, want %v", cb.State(), StateClosed)
	}
}

func TestCircuitBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	cb, clock := newTestBreaker(1, 30*time.Second)
	cb.RecordFailure()

	clock.Advance(29 * time.Second)
	if cb.CanAttempt() {
		t.Error("CanAttempt should be false before the reset timeout")
	}

	clock.Advance(time.Second)
	if cb.State() != StateHalfOpen {
		t.Fatalf("State = %v, want %v", cb.State(), StateHalfOpen)
	}
	if !cb.CanAttempt() {
		t.Error("CanAttempt should be true when half-open")
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Second)
	cb.RecordFailure()
	clock.Advance(time.Second)
	_ = cb.State()

	if cb.RecordFailure() {
		t.Error("a half-open failure should not report a fresh opening")
	}
	if cb.State() != StateOpen {
		t.Errorf("State = %v, want %v", cb.State(), StateOpen)
	}
}

func TestCircuitBreaker_SuccessClosesHalfOpen(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Second)
	cb.RecordFailure()
	clock.Advance(2 * time.Second)

	if !cb.RecordSuccess() {
		t.Error("RecordSuccess after opening should report recovery")
	}
	if cb.State() != StateClosed {
		t.Errorf("State = %v, want %v", cb.State(), StateClosed)
	}
	if cb.Failures() != 0 {
		t.Errorf("Failures = %v, want 0", cb.Failures())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Hour)
	cb.RecordFailure()
	cb.Reset()

	if cb.State() != StateClosed || cb.Failures() != 0 {
		t.Errorf("after Reset state = %v failures = %v", cb.State(), cb.Failures())
	}
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker(10, 100*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if j%2 == 0 {
					cb.RecordFailure()
				} else {
					cb.RecordSuccess()
				}
				_ = cb.CanAttempt()
			}
		}()
	}
	wg.Wait()

	state := cb.State()
	if state != StateClosed && state != StateOpen && state != StateHalfOpen {
		t.Errorf("Invalid state after concurrent access: %v", state)
	}
}
