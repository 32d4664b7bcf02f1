package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"pybun/src/internal/release"
)

var (
	selfUpdateChannel string
	selfUpdateDryRun  bool
)

var selfCmd = &cobra.Command{
	Use:   "self",
	Short: "Manage the pybun binary itself",
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check the release manifest for a newer pybun build",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Checking the %s channel for updates...\n", selfUpdateChannel)

		m, available, err := release.Check("", selfUpdateChannel)
		if err != nil {
			fmt.Printf("Error checking for updates: %v\n", err)
			return
		}

		if !available {
			fmt.Printf("pybun is already up to date (v%s)\n", release.CurrentVersion)
			return
		}

		fmt.Printf("A newer build is available: v%s (current v%s)\n", m.Version, release.CurrentVersion)
		if selfUpdateDryRun {
			fmt.Println("Dry run: not installing.")
			return
		}
		fmt.Println("self update does not install builds; download the artifact named in the release manifest and replace the binary yourself.")
	},
}

func init() {
	updateCmd.Flags().StringVar(&selfUpdateChannel, "channel", "stable", "release channel to check: stable or nightly")
	updateCmd.Flags().BoolVar(&selfUpdateDryRun, "dry-run", false, "report an available update without suggesting further action")
	selfCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(selfCmd)
}
