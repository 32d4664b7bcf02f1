package cmd

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"pybun/src/internal/diagnostics"
	"pybun/src/internal/env"
	"pybun/src/internal/envelope"
)

var xCmd = &cobra.Command{
	Use:   "x <package>[==version] [-- args...]",
	Short: "Run a published console script once, in a throwaway isolated environment",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail("x", envelope.DiagIO, diagnostics.CodeInstallIO, "failed to load project", err)
			return
		}

		spec := args[0]
		passthrough := args[1:]
		if len(passthrough) > 0 && passthrough[0] == "--" {
			passthrough = passthrough[1:]
		}
		scriptName := strings.SplitN(spec, "==", 2)[0]

		c := envelope.New("x", traceID())
		c.Emit(envelope.KindCommandStart, map[string]any{"package": spec})

		set, ok := resolveAndDownload(cmd, a, c, []string{spec})
		if !ok {
			return
		}

		hash := env.CreationHash([]string{spec})
		if !a.envs.Exists(hash) {
			c.Emit(envelope.KindInstallStart, map[string]any{"hash": hash})
			if err := a.envs.Create(hash, []string{spec}, a.interp.Path); err != nil {
				c.Diagnose(diagnostics.New(envelope.DiagEnv, diagnostics.CodeEnvInterpreter, "failed to create throwaway environment", err))
				emitEnvelope(c.Finish(envelope.StatusError, nil))
				return
			}
			pythonExe := a.envs.PythonExe(hash)
			requirements := make([]string, 0, len(set.Packages))
			for _, p := range set.Packages {
				requirements = append(requirements, p.Name+"=="+p.Version)
			}
			if err := pipInstall(pythonExe, requirements); err != nil {
				c.Diagnose(diagnostics.New(envelope.DiagInstall, diagnostics.CodeInstallIO, "failed to install "+spec, err))
				emitEnvelope(c.Finish(envelope.StatusError, nil))
				return
			}
			c.Emit(envelope.KindInstallComplete, map[string]any{"hash": hash})
		} else {
			_ = a.envs.Touch(hash)
		}

		consoleScript := filepath.Join(consoleScriptsDir(a.envs.Root, hash), scriptName)

		c.Emit(envelope.KindRunStart, map[string]any{"script": consoleScript})
		result := runConsoleScript(consoleScript, passthrough)
		finished := c.Finish(statusForExit(result), map[string]any{"exit_code": result})
		emitRunEnvelope(finished, result)
	},
}

// consoleScriptsDir mirrors the teacher's venv layout: Scripts/ on Windows,
// bin/ elsewhere, relative to an environment's root directory.
func consoleScriptsDir(envsRoot, hash string) string {
	root := filepath.Join(envsRoot, hash)
	if runtime.GOOS == "windows" {
		return filepath.Join(root, "Scripts")
	}
	return filepath.Join(root, "bin")
}

func runConsoleScript(path string, args []string) int {
	cmd := exec.Command(path, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		return 1
	}
	return 0
}

func statusForExit(code int) envelope.Status {
	if code == 0 {
		return envelope.StatusOK
	}
	return envelope.StatusError
}

func pipInstall(pythonExe string, requirements []string) error {
	args := append([]string{"-m", "pip", "install", "--disable-pip-version-check", "--no-warn-script-location"}, requirements...)
	cmd := exec.Command(pythonExe, args...)
	return cmd.Run()
}

func init() {
	xCmd.DisableFlagParsing = true
	rootCmd.AddCommand(xCmd)
}
