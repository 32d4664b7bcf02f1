package runner

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"pybun/src/internal/diagnostics"
	"pybun/src/internal/env"
	"pybun/src/internal/envelope"
	"pybun/src/internal/python"
	"pybun/src/internal/telemetry"
)

// SandboxPolicy controls the import-time shim injected per spec.md §4.6
// step 5.
type SandboxPolicy struct {
	Enabled      bool
	AllowNetwork bool
}

// Script is the runner's unit of work: either a file path or inline code
// (spec.md §4.6 step 1 "read the script, or accept inline code").
type Script struct {
	Path   string
	Inline bool // true when InlineCode (even empty) is the source, not Path
	InlineCode string
	Args       []string
}

func (s Script) source() (string, error) {
	if s.Inline {
		return s.InlineCode, nil
	}
	body, err := os.ReadFile(s.Path)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Runner ties the preamble parser, Environment Manager, and process
// launcher together.
type Runner struct {
	Envs          *env.Manager
	BaseInterp    python.Interpreter
	Sandbox       SandboxPolicy
	ShimDir       string // where the sandbox import shim is written
}

// Run executes a script end to end, emitting the event sequence spec.md
// §4.6 mandates: CommandStart, optional ResolveStart/Complete,
// InstallStart/Complete, RunStart, RunExit{code}, CommandEnd.
func (r *Runner) Run(script Script, collector *envelope.Collector) (int, error) {
	done := telemetry.StartSpan("runner.run", "path", script.Path)
	collector.Emit(envelope.KindCommandStart, map[string]any{"path": script.Path, "inline": script.Inline})

	if !script.Inline {
		if script.Path == "" {
			diag := diagnostics.New(envelope.DiagUsage, diagnostics.CodeUsage, "no script path or inline code given", nil)
			collector.Diagnose(diag)
			done("status", "error", "error", "usage")
			return 1, fmt.Errorf("no script given")
		}
		if _, err := os.Stat(script.Path); err != nil {
			diag := diagnostics.ScriptNotFound(script.Path)
			collector.Diagnose(diag)
			collector.Emit(envelope.KindCommandEnd, map[string]any{"status": "error"})
			done("status", "error", "error", "script_not_found")
			return 1, err
		}
	}

	source, err := script.source()
	if err != nil {
		diag := diagnostics.New(envelope.DiagRuntime, diagnostics.CodeScriptNotFound, err.Error(), err)
		collector.Diagnose(diag)
		done("status", "error", "error", err.Error())
		return 1, err
	}

	preamble, hasPreamble, err := ParsePreamble(source)
	if err != nil {
		diag := diagnostics.New(envelope.DiagRuntime, diagnostics.CodeUsage, "malformed inline preamble", err)
		collector.Diagnose(diag)
		done("status", "error", "error", err.Error())
		return 1, err
	}

	pythonExe := r.BaseInterp.Path

	if hasPreamble && len(preamble.Dependencies) > 0 {
		collector.Emit(envelope.KindResolveStart, map[string]any{"dependencies": len(preamble.Dependencies)})
		hash := env.CreationHash(preamble.Dependencies)
		collector.Emit(envelope.KindResolveComplete, map[string]any{"hash": hash})

		if r.Envs.Exists(hash) {
			if err := r.Envs.Touch(hash); err != nil {
				telemetry.Event("runner.touch_failed", "error", err.Error())
			}
			pythonExe = r.Envs.PythonExe(hash)
		} else {
			collector.Emit(envelope.KindInstallStart, map[string]any{"hash": hash, "dependencies": preamble.Dependencies})
			if err := r.Envs.Create(hash, preamble.Dependencies, r.BaseInterp.Path); err != nil {
				diag := diagnostics.New(envelope.DiagEnv, diagnostics.CodeEnvInterpreter, "failed to create environment", err)
				collector.Diagnose(diag)
				done("status", "error", "error", err.Error())
				return 1, err
			}
			pythonExe = r.Envs.PythonExe(hash)
			if err := installInto(pythonExe, preamble.Dependencies); err != nil {
				diag := diagnostics.New(envelope.DiagInstall, diagnostics.CodeInstallIO, "failed to install script dependencies", err)
				collector.Diagnose(diag)
				done("status", "error", "error", err.Error())
				return 1, err
			}
			collector.Emit(envelope.KindInstallComplete, map[string]any{"hash": hash})
		}
	}

	if pythonExe == "" {
		diag := diagnostics.New(envelope.DiagEnv, diagnostics.CodeEnvInterpreter, "no python interpreter available", nil)
		collector.Diagnose(diag)
		done("status", "error", "error", "no_interpreter")
		return 1, fmt.Errorf("no interpreter available")
	}

	var shimDir string
	if r.Sandbox.Enabled {
		shimDir, err = writeSandboxShim(r.ShimDir, r.Sandbox.AllowNetwork)
		if err != nil {
			diag := diagnostics.New(envelope.DiagSandbox, diagnostics.CodeSandboxDenied, "failed to install sandbox shim", err)
			collector.Diagnose(diag)
			done("status", "error", "error", err.Error())
			return 1, err
		}
	}

	target := script.Path
	if script.Inline {
		tmp, err := writeInlineScript(script.InlineCode)
		if err != nil {
			done("status", "error", "error", err.Error())
			return 1, err
		}
		defer os.Remove(tmp)
		target = tmp
	}

	collector.Emit(envelope.KindRunStart, map[string]any{"python": pythonExe})

	argv := buildArgv(pythonExe, target, script.Args)
	envVars := buildEnv(shimDir)

	code, runErr := launchFunc(pythonExe, argv, envVars)

	collector.Emit(envelope.KindRunExit, map[string]any{"code": code})
	collector.Emit(envelope.KindCommandEnd, map[string]any{"status": statusFor(code)})
	done("status", statusFor(code), "exit_code", code)
	return code, runErr
}

func statusFor(code int) string {
	if code == 0 {
		return "ok"
	}
	return "error"
}

func buildArgv(pythonExe, target string, extra []string) []string {
	argv := []string{pythonExe, target}
	return append(argv, extra...)
}

// buildEnv prepends the sandbox shim's directory to PYTHONPATH when a shim
// was written. site auto-imports sitecustomize.py from anywhere on
// PYTHONPATH at interpreter startup, so this applies to scripts and inline
// code alike — unlike PYTHONSTARTUP, which only fires for interactive
// sessions.
func buildEnv(shimDir string) []string {
	vars := os.Environ()
	if shimDir == "" {
		return vars
	}
	existing := os.Getenv("PYTHONPATH")
	newPath := shimDir
	if existing != "" {
		newPath = shimDir + string(os.PathListSeparator) + existing
	}
	found := false
	for i, v := range vars {
		if strings.HasPrefix(v, "PYTHONPATH=") {
			vars[i] = "PYTHONPATH=" + newPath
			found = true
			break
		}
	}
	if !found {
		vars = append(vars, "PYTHONPATH="+newPath)
	}
	return vars
}

func installInto(pythonExe string, requirements []string) error {
	args := append([]string{"-m", "pip", "install", "--disable-pip-version-check", "--no-warn-script-location"}, requirements...)
	cmd := exec.Command(pythonExe, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pip install failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func writeInlineScript(code string) (string, error) {
	f, err := os.CreateTemp("", "pybun-inline-*.py")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.WriteString(code); err != nil {
		return "", err
	}
	return f.Name(), nil
}

// writeSandboxShim drops an import-time guard per spec.md §4.6 step 5,
// repurposing the teacher's patchPthFile "place a small bootstrap file next
// to the interpreter" idiom for a runtime-disable shim instead of a
// site-enable one. Returns the directory to prepend to PYTHONPATH.
func writeSandboxShim(dir string, allowNetwork bool) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "sitecustomize.py")
	body := sandboxShimSource(allowNetwork)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return "", err
	}
	return dir, nil
}

func sandboxShimSource(allowNetwork bool) string {
	networkGuard := "True"
	if !allowNetwork {
		networkGuard = "False"
	}
	return fmt.Sprintf(`import builtins
_PYBUN_ALLOW_NETWORK = %s

def _pybun_denied(*_a, **_k):
    raise PermissionError("blocked by pybun sandbox policy")

import subprocess
subprocess.Popen = _pybun_denied
subprocess.run = _pybun_denied
subprocess.call = _pybun_denied

if not _PYBUN_ALLOW_NETWORK:
    import socket
    socket.socket = _pybun_denied
`, networkGuard)
}
