package python

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func writeExecutable(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestDiscoverExplicitEnvOverrideWins(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix-style fixture path")
	}
	dir := t.TempDir()
	exe := filepath.Join(dir, "custom-python")
	writeExecutable(t, exe)

	interp, err := Discover(dir, exe, "")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if interp.Path != exe {
		t.Fatalf("expected env override to win, got %s", interp.Path)
	}
	if interp.Source != "env_override" {
		t.Fatalf("expected source env_override, got %s", interp.Source)
	}
}

func TestDiscoverIsolatedEnvBeforeSystem(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix-style fixture path")
	}
	dir := t.TempDir()
	envRoot := filepath.Join(dir, "isolated")
	exe := filepath.Join(envRoot, "bin", "python3")
	writeExecutable(t, exe)

	interp, err := Discover(dir, "", envRoot)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if interp.Path != exe {
		t.Fatalf("expected isolated env interpreter, got %s", interp.Path)
	}
	if interp.Source != "isolated_env" {
		t.Fatalf("expected source isolated_env, got %s", interp.Source)
	}
}

func TestHashInputsChangesWithVersionFile(t *testing.T) {
	dir := t.TempDir()
	h1 := HashInputs(dir, "", "")

	if err := os.WriteFile(filepath.Join(dir, ".python-version"), []byte("3.12"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	h2 := HashInputs(dir, "", "")

	if h1 == h2 {
		t.Fatal("expected hash to change once a .python-version file appears")
	}
}
