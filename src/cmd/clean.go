package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"pybun/src/internal/project"
	"pybun/src/internal/pybundir"
)

var forceFlag bool

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove all global and local state managed by pybun",
	Long: `Remove the global pybun directories (cache, credentials, materialized
environments, profiles) and the local project manifest (pybun.toml).
WARNING: This operation is destructive.`,
	Run: func(cmd *cobra.Command, args []string) {
		cacheDir := project.NewDefault(".").Cache.GlobalDir
		if cfg, err := project.Load(project.FileName); err == nil {
			cacheDir = cfg.Cache.GlobalDir
		}

		if !forceFlag {
			pterm.Warning.Println("This will delete all global and local pybun data, including:")
			fmt.Printf("- %s (config, credentials, profiles)\n", pybundir.MustHome())
			fmt.Printf("- %s (package cache, environments)\n", cacheDir)
			fmt.Printf("- %s in the current directory\n", project.FileName)
			fmt.Print("\nAre you sure you want to proceed? (y/N): ")

			reader := bufio.NewReader(os.Stdin)
			input, _ := reader.ReadString('\n')
			input = strings.TrimSpace(strings.ToLower(input))

			if input != "y" && input != "yes" {
				pterm.Info.Println("Cleanup cancelled.")
				return
			}
		}

		pterm.Info.Println("Starting cleanup...")

		removePath(pybundir.MustHome(), "Global configuration and data")
		removePath(cacheDir, "Package cache and environments")
		removePath(project.FileName, "Local project configuration")

		pterm.Success.Println("Cleanup complete. All pybun-related data has been removed.")
	},
}

func removePath(path string, description string) {
	if _, err := os.Stat(path); err == nil {
		pterm.Info.Printf("Removing %s at %s...\n", description, path)
		if err := os.RemoveAll(path); err != nil {
			pterm.Error.Printf("Failed to remove %s: %v\n", path, err)
		}
	}
}

func init() {
	cleanCmd.Flags().BoolVarP(&forceFlag, "force", "f", false, "remove without confirmation")
	rootCmd.AddCommand(cleanCmd)
}
