package models

import "testing"

func TestExceededAttempts(t *testing.T) {
	cases := []struct {
		name     string
		attempt  int
		retries  int
		expected bool
	}{
		{"within bound", 1, 2, false},
		{"at bound", 3, 2, false},
		{"over bound", 4, 2, true},
		{"zero retries first attempt", 1, 0, false},
		{"zero retries second attempt", 2, 0, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := &Work{Attempt: c.attempt, Retries: c.retries}
			if got := w.ExceededAttempts(); got != c.expected {
				t.Errorf("ExceededAttempts() = %v, want %v", got, c.expected)
			}
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []Status{StatusSuccess, StatusFailure, StatusCancelled, StatusExpired}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%q should be terminal", s)
		}
	}

	nonTerminal := []Status{StatusCreated, StatusQueued, StatusRunning}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Errorf("%q should not be terminal", s)
		}
	}
}

func TestHasFunctionHasCommand(t *testing.T) {
	w := &Work{Function: "pkg.mod.fn"}
	if !w.HasFunction() || w.HasCommand() {
		t.Errorf("expected function-only Work")
	}

	w = &Work{Command: []string{"sh", "-c", "true"}}
	if w.HasFunction() || !w.HasCommand() {
		t.Errorf("expected command-only Work")
	}
}
