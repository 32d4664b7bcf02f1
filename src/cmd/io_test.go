package cmd

import (
	"testing"

	"pybun/src/internal/diagnostics"
	"pybun/src/internal/envelope"
)

func TestExitCodeForOK(t *testing.T) {
	c := envelope.New("test", "trace-1")
	env := c.Finish(envelope.StatusOK, nil)
	if got := exitCodeFor(env); got != 0 {
		t.Fatalf("exitCodeFor(ok) = %d, want 0", got)
	}
}

func TestExitCodeForKnownDiagnostics(t *testing.T) {
	cases := []struct {
		code string
		want int
	}{
		{diagnostics.CodeUsage, 2},
		{diagnostics.CodeResolveConflict, 64},
		{diagnostics.CodeResolveMissing, 64},
		{diagnostics.CodeDownloadVerify, 65},
		{diagnostics.CodeIndexOfflineMiss, 74},
		{diagnostics.CodeInstallIO, 74},
		{diagnostics.CodeScriptNotFound, 74},
		{"E_SOMETHING_UNMAPPED", 1},
	}

	for _, tc := range cases {
		c := envelope.New("test", "trace-1")
		c.Diagnose(diagnostics.New(envelope.DiagIO, tc.code, "boom", nil))
		env := c.Finish(envelope.StatusError, nil)
		if got := exitCodeFor(env); got != tc.want {
			t.Errorf("exitCodeFor(%s) = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestExitCodeForErrorWithNoDiagnostics(t *testing.T) {
	c := envelope.New("test", "trace-1")
	env := c.Finish(envelope.StatusError, nil)
	if got := exitCodeFor(env); got != 1 {
		t.Fatalf("exitCodeFor(error, no diagnostics) = %d, want 1", got)
	}
}
