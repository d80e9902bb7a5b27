package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitOpensAfterThreshold(t *testing.T) {
	cb := New(&Config{Name: "t", FailureThreshold: 3, SuccessThreshold: 1, OpenTimeout: time.Minute}, nil)

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
		if cb.State() != StateClosed {
			t.Fatalf("state = %v after %d failures, want closed", cb.State(), i+1)
		}
	}
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("state = %v after threshold failures, want open", cb.State())
	}
}

func TestOpenCircuitRejects(t *testing.T) {
	cb := New(&Config{Name: "t", FailureThreshold: 1, SuccessThreshold: 1, OpenTimeout: time.Minute}, nil)
	cb.RecordFailure()

	err := cb.Execute(func() error { return nil })
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("Execute on an open breaker = %v, want ErrOpen", err)
	}
}

func TestHalfOpenRecoversAfterSuccesses(t *testing.T) {
	cb := New(&Config{Name: "t", FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: time.Millisecond}, nil)
	cb.RecordFailure()

	time.Sleep(5 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("Allow should probe once OpenTimeout has elapsed")
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open", cb.State())
	}

	cb.RecordSuccess()
	if cb.State() != StateHalfOpen {
		t.Fatal("should still be half-open after one success when SuccessThreshold=2")
	}
	cb.RecordSuccess()
	if cb.State() != StateClosed {
		t.Fatalf("state = %v after SuccessThreshold successes, want closed", cb.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := New(&Config{Name: "t", FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: time.Millisecond}, nil)
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	cb.Allow()

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open after a half-open probe fails", cb.State())
	}
}

func TestExecuteRecordsOutcome(t *testing.T) {
	cb := New(DefaultConfig("t"), nil)
	boom := errors.New("boom")

	err := cb.Execute(func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Execute returned %v, want %v", err, boom)
	}
}
