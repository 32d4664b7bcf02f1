package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pybun/src/internal/diagnostics"
	"pybun/src/internal/envelope"
	"pybun/src/internal/project"
)

var initPythonVersion string

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Create a pybun.toml for the current (or a newly created) directory",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		wd, err := os.Getwd()
		if err != nil {
			fail("init", envelope.DiagIO, diagnostics.CodeInstallIO, "failed to get working directory", err)
			return
		}

		projectDir := wd
		if len(args) > 0 && args[0] != "." {
			projectDir = filepath.Join(wd, args[0])
			if err := os.MkdirAll(projectDir, 0755); err != nil {
				fail("init", envelope.DiagIO, diagnostics.CodeInstallIO, "failed to create project directory", err)
				return
			}
		}

		cfg := project.NewDefault(projectDir)
		if len(args) > 0 && args[0] != "." {
			cfg.Project.Name = args[0]
		}
		if initPythonVersion != "" {
			cfg.Python.Version = initPythonVersion
		}

		path := filepath.Join(projectDir, project.FileName)
		if _, err := os.Stat(path); err == nil {
			fail("init", envelope.DiagUsage, diagnostics.CodeUsage, path+" already exists", nil)
			return
		}
		if err := project.Save(path, cfg); err != nil {
			fail("init", envelope.DiagIO, diagnostics.CodeInstallIO, "failed to write "+project.FileName, err)
			return
		}

		c := envelope.New("init", traceID())
		emitEnvelope(c.Finish(envelope.StatusOK, map[string]any{"project": cfg.Project.Name, "path": path}))
	},
}

func init() {
	initCmd.Flags().StringVar(&initPythonVersion, "python", "", "pin a Python version in the new manifest (default: 3.12)")
	rootCmd.AddCommand(initCmd)
}
