package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"pybun/src/internal/security"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the package index's bearer token",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Save a bearer token for the configured package index",
	Run: func(cmd *cobra.Command, args []string) {
		var token string
		fmt.Print("Enter index token: ")
		fmt.Scanln(&token)

		if err := security.SaveToken(token); err != nil {
			fmt.Printf("Error saving token: %v\n", err)
			return
		}
		fmt.Println("Token saved")
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Delete the saved index token",
	Run: func(cmd *cobra.Command, args []string) {
		if err := security.RevokeToken(); err != nil {
			fmt.Printf("Error revoking token: %v\n", err)
			return
		}
		fmt.Println("Token revoked")
	},
}

func init() {
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(revokeCmd)
	rootCmd.AddCommand(authCmd)
}
