package sqlite

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerTripsAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	failing := errors.New("boom")

	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return failing })
		if !errors.Is(err, failing) {
			t.Fatalf("attempt %d: expected failing error, got %v", i, err)
		}
	}

	if cb.State() != StateOpen {
		t.Fatalf("expected breaker open after threshold failures, got %s", cb.State())
	}

	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen while breaker open, got %v", err)
	}
}

func TestCircuitBreakerHalfOpenRecovers(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)

	_ = cb.Execute(func() error { return errors.New("boom") })
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	time.Sleep(15 * time.Millisecond)

	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected half-open probe to succeed: %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %s", cb.State())
	}
}

func TestCircuitBreakerOnStateChange(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	var transitions []string
	cb.OnStateChange(func(from, to BreakerState) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	_ = cb.Execute(func() error { return errors.New("boom") })

	if len(transitions) != 1 || transitions[0] != "closed->open" {
		t.Fatalf("expected one closed->open transition, got %v", transitions)
	}
}
