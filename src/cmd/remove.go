package cmd

import (
	"github.com/spf13/cobra"

	"pybun/src/internal/diagnostics"
	"pybun/src/internal/envelope"
	"pybun/src/internal/project"
)

var removeCmd = &cobra.Command{
	Use:     "remove <package>...",
	Aliases: []string{"rm"},
	Short:   "Remove one or more packages from pybun.toml and re-resolve",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail("remove", envelope.DiagIO, diagnostics.CodeInstallIO, "failed to load project", err)
			return
		}
		c := envelope.New("remove", traceID())
		c.Emit(envelope.KindCommandStart, map[string]any{"requested": args})

		removed := 0
		for _, name := range args {
			norm := project.NormalizeDepName(name)
			if _, ok := a.cfg.Deps[norm]; ok {
				delete(a.cfg.Deps, norm)
				removed++
			}
		}

		roots := requirementRoots(a.cfg, nil)
		set, ok := resolveAndDownload(cmd, a, c, roots)
		if !ok {
			return
		}

		if err := a.save(); err != nil {
			c.Diagnose(diagnostics.New(envelope.DiagIO, diagnostics.CodeInstallIO, "failed to persist pybun.toml", err))
			emitEnvelope(c.Finish(envelope.StatusError, nil))
			return
		}

		c.Emit(envelope.KindCommandEnd, map[string]any{"status": "ok"})
		emitEnvelope(c.Finish(envelope.StatusOK, map[string]any{"removed": removed, "packages": len(set.Packages)}))
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
