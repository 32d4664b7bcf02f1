// Package python discovers pre-existing interpreters on the host. Unlike
// the teacher's python.PythonManager, it never downloads or installs a
// CPython distribution: spec.md §1 treats the interpreter as a pre-existing
// external binary, so only the GetPythonExe/GetEffectivePythonExe half of
// the teacher's manager survives (install.go's download/extract/pip-
// bootstrap path is dropped — see DESIGN.md §4.5).
package python

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Interpreter is one discovered Python installation.
type Interpreter struct {
	Path    string `json:"path"`
	Version string `json:"version,omitempty"`
	Source  string `json:"source"` // which priority-chain step found it
}

// Discover implements spec.md §4.5's priority chain: explicit env variable
// → project-local isolated env directory → version file in the working
// directory → the system interpreter. The first match wins.
func Discover(workDir, envOverride, isolatedEnvDir string) (Interpreter, error) {
	if envOverride != "" {
		if exe := resolveExplicit(envOverride); exe != "" {
			return Interpreter{Path: exe, Source: "env_override"}, nil
		}
	}

	if isolatedEnvDir != "" {
		if exe := exeInRoot(isolatedEnvDir); exe != "" {
			return Interpreter{Path: exe, Source: "isolated_env"}, nil
		}
	}

	if version, ok := readVersionFile(workDir); ok {
		if exe := findOnPathForVersion(version); exe != "" {
			return Interpreter{Path: exe, Version: version, Source: "version_file"}, nil
		}
	}

	if exe := findSystemInterpreter(); exe != "" {
		return Interpreter{Path: exe, Source: "system"}, nil
	}

	return Interpreter{}, &NotFoundError{}
}

// NotFoundError signals no candidate in the priority chain resolved to an
// existing, executable interpreter (surfaced as E_ENV_INTERPRETER_MISSING).
type NotFoundError struct{}

func (e *NotFoundError) Error() string { return "no python interpreter found" }

func resolveExplicit(path string) string {
	if isExecutable(path) {
		return path
	}
	return ""
}

// exeInRoot mirrors the teacher's venv.GetPythonExe: bin/python3 (falling
// back to bin/python) on UNIX, Scripts\python.exe on Windows, relative to an
// environment root.
func exeInRoot(root string) string {
	var candidate string
	if runtime.GOOS == "windows" {
		candidate = filepath.Join(root, "Scripts", "python.exe")
	} else {
		candidate = filepath.Join(root, "bin", "python3")
	}
	if isExecutable(candidate) {
		return candidate
	}
	if runtime.GOOS != "windows" {
		alt := filepath.Join(root, "bin", "python")
		if isExecutable(alt) {
			return alt
		}
	}
	return ""
}

func readVersionFile(workDir string) (string, bool) {
	path := filepath.Join(workDir, ".python-version")
	body, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	version := strings.TrimSpace(string(body))
	if version == "" {
		return "", false
	}
	return version, true
}

func findOnPathForVersion(version string) string {
	name := "python" + version
	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	majorMinor := majorMinorOf(version)
	if majorMinor != "" {
		if path, err := exec.LookPath("python" + majorMinor); err == nil {
			return path
		}
	}
	return findSystemInterpreter()
}

func majorMinorOf(version string) string {
	parts := strings.Split(version, ".")
	if len(parts) < 2 {
		return ""
	}
	return parts[0] + "." + parts[1]
}

func findSystemInterpreter() string {
	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func isExecutable(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return true
}
