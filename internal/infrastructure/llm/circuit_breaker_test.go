package llm

import (
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterFailureStreak(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
	}
	if !cb.Allow() {
		t.Fatal("two failures should not trip a threshold of three")
	}

	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}
	if cb.Allow() {
		t.Fatal("open breaker must fail fast")
	}
}

func TestCircuitBreaker_SuccessClearsStreak(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	if cb.State() != CircuitClosed {
		t.Fatal("interleaved success should have reset the streak")
	}
}

func TestCircuitBreaker_ProbeAfterRecoveryTimeout(t *testing.T) {
	cb := NewCircuitBreaker(2, 10*time.Millisecond)

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.Allow() {
		t.Fatal("breaker should be open")
	}

	time.Sleep(15 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("recovery timeout should admit a probe")
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("state = %s, want half_open", cb.State())
	}
}

func TestCircuitBreaker_ProbeOutcome(t *testing.T) {
	trip := func() *CircuitBreaker {
		cb := NewCircuitBreaker(2, 10*time.Millisecond)
		cb.RecordFailure()
		cb.RecordFailure()
		time.Sleep(15 * time.Millisecond)
		cb.Allow()
		return cb
	}

	cb := trip()
	cb.RecordSuccess()
	if cb.State() != CircuitClosed {
		t.Fatal("successful probe should close the breaker")
	}

	cb = trip()
	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Fatal("failed probe should reopen the breaker")
	}
	if cb.Allow() {
		t.Fatal("reopened breaker must fail fast again")
	}
}

func TestCircuitBreaker_StateLabels(t *testing.T) {
	tests := []struct {
		state CircuitState
		want  string
	}{
		{CircuitClosed, "closed"},
		{CircuitOpen, "open"},
		{CircuitHalfOpen, "half_open"},
		{CircuitState(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("state %d = %q, want %q", tt.state, got, tt.want)
		}
	}
}
