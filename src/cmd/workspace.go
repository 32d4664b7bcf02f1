package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"pybun/src/internal/diagnostics"
	"pybun/src/internal/envelope"
	"pybun/src/internal/project"
	"pybun/src/internal/workspace"
)

var workspaceCmd = &cobra.Command{
	Use:     "workspace",
	Aliases: []string{"workspaces"},
	Short:   "Manage monorepo workspaces: sibling projects aggregated under a root manifest",
}

var wsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Mark the current directory as a workspace root",
	Run: func(cmd *cobra.Command, args []string) {
		wd, err := os.Getwd()
		if err != nil {
			fail("workspace init", envelope.DiagIO, diagnostics.CodeInstallIO, "failed to get working directory", err)
			return
		}
		cfg, path, err := project.LoadOrCreate(wd)
		if err != nil {
			fail("workspace init", envelope.DiagIO, diagnostics.CodeInstallIO, "failed to load pybun.toml", err)
			return
		}
		if cfg.Workspace.Members == nil {
			cfg.Workspace.Members = []string{}
		}
		if err := project.Save(path, cfg); err != nil {
			fail("workspace init", envelope.DiagIO, diagnostics.CodeInstallIO, "failed to persist pybun.toml", err)
			return
		}
		c := envelope.New("workspace init", traceID())
		emitEnvelope(c.Finish(envelope.StatusOK, map[string]any{"root": wd}))
	},
}

var wsAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Add a sibling project directory to the workspace",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		wd, err := os.Getwd()
		if err != nil {
			fail("workspace add", envelope.DiagIO, diagnostics.CodeInstallIO, "failed to get working directory", err)
			return
		}
		if err := workspace.AddMember(wd, args[0]); err != nil {
			fail("workspace add", envelope.DiagIO, diagnostics.CodeInstallIO, "failed to add workspace member", err)
			return
		}
		c := envelope.New("workspace add", traceID())
		emitEnvelope(c.Finish(envelope.StatusOK, map[string]any{"member": args[0]}))
	},
}

var wsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the union of every workspace member's dependencies",
	Run: func(cmd *cobra.Command, args []string) {
		wd, err := os.Getwd()
		if err != nil {
			fail("workspace list", envelope.DiagIO, diagnostics.CodeInstallIO, "failed to get working directory", err)
			return
		}
		ws, err := workspace.Load(wd)
		if err != nil {
			fail("workspace list", envelope.DiagIO, diagnostics.CodeInstallIO, "failed to load workspace", err)
			return
		}
		rootCfg, _, err := project.LoadOrCreate(wd)
		if err != nil {
			fail("workspace list", envelope.DiagIO, diagnostics.CodeInstallIO, "failed to load root manifest", err)
			return
		}

		c := envelope.New("workspace list", traceID())
		reqs, err := ws.UnionRequirements(rootCfg.Deps)
		if err != nil {
			if conflict, ok := err.(workspace.MemberConflict); ok {
				c.Diagnose(diagnostics.New(envelope.DiagResolve, diagnostics.CodeResolveConflict, conflict.Error(), nil))
			} else {
				c.Diagnose(diagnostics.New(envelope.DiagIO, diagnostics.CodeInstallIO, err.Error(), err))
			}
			emitEnvelope(c.Finish(envelope.StatusError, nil))
			return
		}
		emitEnvelope(c.Finish(envelope.StatusOK, map[string]any{"members": len(ws.Members), "requirements": reqs}))
	},
}

func init() {
	workspaceCmd.AddCommand(wsInitCmd)
	workspaceCmd.AddCommand(wsAddCmd)
	workspaceCmd.AddCommand(wsListCmd)
	rootCmd.AddCommand(workspaceCmd)
}
