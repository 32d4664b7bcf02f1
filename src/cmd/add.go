package cmd

import (
	"github.com/spf13/cobra"

	"pybun/src/internal/diagnostics"
	"pybun/src/internal/envelope"
	"pybun/src/internal/project"
)

var addCmd = &cobra.Command{
	Use:   "add <requirement>...",
	Short: "Add one or more requirements to pybun.toml and resolve them",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail("add", envelope.DiagIO, diagnostics.CodeInstallIO, "failed to load project", err)
			return
		}
		c := envelope.New("add", traceID())
		c.Emit(envelope.KindCommandStart, map[string]any{"requested": args})

		for _, req := range args {
			if name := project.RequirementToDepName(req); name != "" {
				a.cfg.Deps[name] = "*"
			}
		}

		roots := requirementRoots(a.cfg, args)
		set, ok := resolveAndDownload(cmd, a, c, roots)
		if !ok {
			return
		}

		for _, p := range set.Packages {
			a.cfg.Deps[project.NormalizeDepName(p.Name)] = "==" + p.Version
		}
		if err := a.save(); err != nil {
			c.Diagnose(diagnostics.New(envelope.DiagIO, diagnostics.CodeInstallIO, "failed to persist pybun.toml", err))
			emitEnvelope(c.Finish(envelope.StatusError, nil))
			return
		}

		c.Emit(envelope.KindCommandEnd, map[string]any{"status": "ok"})
		emitEnvelope(c.Finish(envelope.StatusOK, map[string]any{"added": len(args), "packages": len(set.Packages)}))
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
}
