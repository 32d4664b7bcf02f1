package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"pybun/src/internal/diagnostics"
	"pybun/src/internal/envelope"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Report interpreter, cache, and environment sanity diagnostics",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail("doctor", envelope.DiagIO, diagnostics.CodeInstallIO, "failed to load project", err)
			return
		}
		c := envelope.New("doctor", traceID())
		c.Emit(envelope.KindCommandStart, nil)

		checks := map[string]any{}

		if a.interp.Path == "" {
			c.Diagnose(diagnostics.New(envelope.DiagEnv, diagnostics.CodeEnvInterpreter, "no python interpreter found on the priority chain", nil))
			checks["interpreter"] = "missing"
		} else {
			checks["interpreter"] = map[string]string{"path": a.interp.Path, "source": a.interp.Source}
		}

		if _, err := os.Stat(a.dataRoot); err != nil {
			c.Diagnose(diagnostics.New(envelope.DiagIO, diagnostics.CodeInstallIO, "data root is not accessible: "+a.dataRoot, err))
			checks["data_root"] = "missing"
		} else {
			checks["data_root"] = a.dataRoot
		}

		envs, err := a.envs.List()
		if err != nil {
			c.Diagnose(diagnostics.New(envelope.DiagEnv, diagnostics.CodeEnvInterpreter, "failed to list materialized environments", err))
		} else {
			checks["environments"] = len(envs)
		}

		status := envelope.StatusOK
		if c.HasDiagnostics() {
			status = envelope.StatusError
		}
		c.Emit(envelope.KindCommandEnd, map[string]any{"status": string(status)})
		emitEnvelope(c.Finish(status, checks))
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
