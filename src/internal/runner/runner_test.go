package runner

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pybun/src/internal/diagnostics"
	"pybun/src/internal/env"
	"pybun/src/internal/envelope"
	"pybun/src/internal/python"
)

// stubLaunch swaps launchFunc for the duration of a test so Run never spawns
// a real interpreter, and restores the original on cleanup.
func stubLaunch(t *testing.T, code int, err error) {
	t.Helper()
	orig := launchFunc
	launchFunc = func(pythonExe string, argv, env []string) (int, error) {
		return code, err
	}
	t.Cleanup(func() { launchFunc = orig })
}

func newTestRunner(t *testing.T) (*Runner, *env.Manager) {
	t.Helper()
	mgr, err := env.New(filepath.Join(t.TempDir(), "envs"))
	if err != nil {
		t.Fatalf("env.New: %v", err)
	}
	r := &Runner{
		Envs:       mgr,
		BaseInterp: python.Interpreter{Path: "fake-python3", Source: "test"},
	}
	return r, mgr
}

// seedReusableEnv writes the same on-disk record shape Manager.Create would
// produce, without actually invoking `python -m venv`, so tests can exercise
// the reuse branch of Run without a real interpreter present.
func seedReusableEnv(t *testing.T, mgr *env.Manager, hash string, deps []string) {
	t.Helper()
	dir := filepath.Join(mgr.Root, hash)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir env dir: %v", err)
	}
	record := struct {
		Deps     []string  `json:"deps"`
		LastUsed time.Time `json:"last_used"`
	}{Deps: deps, LastUsed: time.Now()}
	body, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "deps.json"), body, 0644); err != nil {
		t.Fatalf("write record: %v", err)
	}
}

func eventKinds(env envelope.Envelope) []envelope.Kind {
	kinds := make([]envelope.Kind, len(env.Events))
	for i, e := range env.Events {
		kinds[i] = e.Kind
	}
	return kinds
}

func containsKind(kinds []envelope.Kind, want envelope.Kind) bool {
	for _, k := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

func TestRunInlineCodeNoPreambleExitsZero(t *testing.T) {
	stubLaunch(t, 0, nil)
	r, _ := newTestRunner(t)
	collector := envelope.New("x", "trace-1")

	code, err := r.Run(Script{Inline: true, InlineCode: "print('hi')\n"}, collector)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 0 {
		t.Fatalf("code = %d, want 0", code)
	}

	env := collector.Finish(envelope.StatusOK, nil)
	kinds := eventKinds(env)
	if !containsKind(kinds, envelope.KindRunStart) || !containsKind(kinds, envelope.KindRunExit) {
		t.Fatalf("expected RunStart/RunExit events, got %v", kinds)
	}
	if containsKind(kinds, envelope.KindResolveStart) {
		t.Fatalf("did not expect ResolveStart with no preamble, got %v", kinds)
	}
}

func TestRunInlineEmptyBodyExitsZero(t *testing.T) {
	stubLaunch(t, 0, nil)
	r, _ := newTestRunner(t)
	collector := envelope.New("x", "trace-1b")

	code, err := r.Run(Script{Inline: true, InlineCode: ""}, collector)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 0 {
		t.Fatalf("code = %d, want 0 for an empty inline body", code)
	}
}

func TestRunMissingScriptEmitsScriptNotFound(t *testing.T) {
	stubLaunch(t, 0, nil)
	r, _ := newTestRunner(t)
	collector := envelope.New("x", "trace-2")

	missing := filepath.Join(t.TempDir(), "missing.py")
	code, err := r.Run(Script{Path: missing}, collector)
	if err == nil {
		t.Fatalf("expected error for missing script")
	}
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}

	env := collector.Finish(envelope.StatusError, nil)
	if len(env.Diagnostics) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", len(env.Diagnostics))
	}
	if env.Diagnostics[0].Code != diagnostics.CodeScriptNotFound {
		t.Fatalf("code = %s, want %s", env.Diagnostics[0].Code, diagnostics.CodeScriptNotFound)
	}
}

func TestRunPreambleReuseSkipsInstallEvents(t *testing.T) {
	stubLaunch(t, 0, nil)
	r, mgr := newTestRunner(t)

	deps := []string{"requests"}
	hash := env.CreationHash(deps)
	seedReusableEnv(t, mgr, hash, deps)

	source := "# /// script\n# dependencies = [\"requests\"]\n# ///\nimport requests\n"
	collector := envelope.New("x", "trace-3")

	code, err := r.Run(Script{Inline: true, InlineCode: source}, collector)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 0 {
		t.Fatalf("code = %d, want 0", code)
	}

	result := collector.Finish(envelope.StatusOK, nil)
	kinds := eventKinds(result)
	if !containsKind(kinds, envelope.KindResolveStart) || !containsKind(kinds, envelope.KindResolveComplete) {
		t.Fatalf("expected Resolve events on reuse, got %v", kinds)
	}
	if containsKind(kinds, envelope.KindInstallStart) || containsKind(kinds, envelope.KindInstallComplete) {
		t.Fatalf("did not expect Install events on env reuse, got %v", kinds)
	}
}

func TestRunPropagatesNonZeroExitCode(t *testing.T) {
	stubLaunch(t, 7, nil)
	r, _ := newTestRunner(t)
	collector := envelope.New("x", "trace-4")

	code, err := r.Run(Script{Inline: true, InlineCode: "import sys; sys.exit(7)\n"}, collector)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 7 {
		t.Fatalf("code = %d, want 7", code)
	}

	result := collector.Finish(envelope.StatusError, nil)
	kinds := eventKinds(result)
	if !containsKind(kinds, envelope.KindCommandEnd) {
		t.Fatalf("expected CommandEnd, got %v", kinds)
	}
}
