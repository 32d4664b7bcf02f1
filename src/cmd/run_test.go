package cmd

import (
	"testing"

	"pybun/src/internal/envelope"
)

func TestReachedRunStartTrueAfterRunStartEvent(t *testing.T) {
	c := envelope.New("run", "trace-1")
	c.Emit(envelope.KindCommandStart, nil)
	c.Emit(envelope.KindRunStart, map[string]any{"script": "main.py"})
	env := c.Finish(envelope.StatusOK, nil)

	if !reachedRunStart(env) {
		t.Fatalf("reachedRunStart = false, want true once KindRunStart was emitted")
	}
}

func TestReachedRunStartFalseBeforeRunStartEvent(t *testing.T) {
	c := envelope.New("run", "trace-1")
	c.Emit(envelope.KindCommandStart, nil)
	env := c.Finish(envelope.StatusError, nil)

	if reachedRunStart(env) {
		t.Fatalf("reachedRunStart = true, want false when KindRunStart was never emitted")
	}
}
