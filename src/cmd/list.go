package cmd

import (
	"sort"

	"github.com/spf13/cobra"

	"pybun/src/internal/diagnostics"
	"pybun/src/internal/envelope"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the dependencies declared in pybun.toml",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail("list", envelope.DiagIO, diagnostics.CodeInstallIO, "failed to load project", err)
			return
		}
		c := envelope.New("list", traceID())
		c.Emit(envelope.KindCommandStart, nil)

		names := make([]string, 0, len(a.cfg.Deps))
		for name := range a.cfg.Deps {
			names = append(names, name)
		}
		sort.Strings(names)

		deps := make([]map[string]string, 0, len(names))
		for _, name := range names {
			deps = append(deps, map[string]string{"name": name, "specifier": a.cfg.Deps[name]})
		}

		c.Emit(envelope.KindCommandEnd, map[string]any{"status": "ok"})
		emitEnvelope(c.Finish(envelope.StatusOK, map[string]any{"deps": deps}))
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
