package cmd

import (
	"github.com/spf13/cobra"

	"pybun/src/internal/diagnostics"
	"pybun/src/internal/envelope"
	"pybun/src/internal/runner"
)

var runInline bool

var runCmd = &cobra.Command{
	Use:                "run [-c] <script-or-code> [-- args...]",
	Short:              "Run a script or inline code, creating or reusing its environment",
	DisableFlagParsing: false,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail("run", envelope.DiagIO, diagnostics.CodeInstallIO, "failed to load project", err)
			return
		}

		if len(args) == 0 {
			fail("run", envelope.DiagUsage, diagnostics.CodeUsage, "no script path or -c/--code given", nil)
			return
		}

		script := runner.Script{Inline: runInline}
		if runInline {
			script.InlineCode = args[0]
		} else {
			script.Path = args[0]
		}
		script.Args = args[1:]

		c := envelope.New("run", traceID())
		code, runErr := a.runner().Run(script, c)
		status := envelope.StatusOK
		if runErr != nil || code != 0 {
			status = envelope.StatusError
		}
		env := c.Finish(status, map[string]any{"exit_code": code})

		if reachedRunStart(env) {
			emitRunEnvelope(env, code)
			return
		}
		emitEnvelope(env)
	},
}

// reachedRunStart reports whether the runner got as far as handing off to
// the interpreter, so the caller knows whether "code" is the script's own
// exit status or just Run's internal failure sentinel (always 1).
func reachedRunStart(env envelope.Envelope) bool {
	for _, e := range env.Events {
		if e.Kind == envelope.KindRunStart {
			return true
		}
	}
	return false
}

func init() {
	runCmd.Flags().BoolVarP(&runInline, "code", "c", false, "treat the first argument as inline Python code instead of a script path")
	rootCmd.AddCommand(runCmd)
}
