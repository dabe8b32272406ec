package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"insufficient", NewInsufficientDataError("group %q has %d values", "a", 1), KindInsufficientData},
		{"nonconvergence", NewNonConvergenceError("loglik not finite"), KindModelNonConvergence},
		{"memory", NewMemoryExceededError(10, 5), KindMemoryExceeded},
		{"design", NewInvalidDesignError("two group variables"), KindInvalidDesign},
		{"wrapped", fmt.Errorf("task x: %w", ErrInsufficientData), KindInsufficientData},
		{"other", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecoverableVersusFatal(t *testing.T) {
	if !IsTaskRecoverable(NewInsufficientDataError("x")) || !IsTaskRecoverable(NewNonConvergenceError("x")) {
		t.Error("task-level kinds must be recoverable")
	}
	if IsTaskRecoverable(NewInvalidDesignError("x")) {
		t.Error("InvalidDesign must not be task-recoverable")
	}
	if !IsBatchFatal(NewMemoryExceededError(2, 1)) || !IsBatchFatal(NewInvalidDesignError("x")) {
		t.Error("batch-level kinds must be fatal")
	}
}

func TestDeriveIDIsDeterministic(t *testing.T) {
	a := DeriveID("outcome", "hb", "arm")
	b := DeriveID("outcome", "hb", "arm")
	c := DeriveID("outcome", "hb", "site")
	if a != b {
		t.Fatalf("expected equal IDs, got %s and %s", a, b)
	}
	if a == c {
		t.Fatal("expected different IDs for different keys")
	}
	if a.IsEmpty() {
		t.Fatal("derived ID is empty")
	}
}

func TestHashKeyValuesOrderIndependent(t *testing.T) {
	h1 := HashKeyValues(map[string]string{"a": "1", "b": "2"})
	h2 := HashKeyValues(map[string]string{"b": "2", "a": "1"})
	if h1 != h2 {
		t.Fatal("hash must not depend on map iteration order")
	}
	if len(h1.Short()) != 12 {
		t.Fatalf("Short() length = %d", len(h1.Short()))
	}
}
