package domain

import "testing"

func TestRunStateTransitions(t *testing.T) {
	cases := []struct {
		from, to RunState
		ok       bool
	}{
		{RunPending, RunRunning, true},
		{RunPending, RunCancelled, true},
		{RunPending, RunSuccess, false},
		{RunPending, RunFailed, false},
		{RunRunning, RunSuccess, true},
		{RunRunning, RunFailed, true},
		{RunRunning, RunCancelled, true},
		{RunRunning, RunPending, false},
		{RunSuccess, RunFailed, false},
		{RunSuccess, RunCancelled, false},
		{RunFailed, RunRunning, false},
		{RunCancelled, RunRunning, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.ok {
			t.Errorf("%s -> %s = %v, want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestRunStateTerminal(t *testing.T) {
	for _, s := range []RunState{RunSuccess, RunFailed, RunCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []RunState{RunPending, RunRunning} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if RunState("IDLE").Valid() {
		t.Fatal("unknown state reported valid")
	}
}
