package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pybun/src/internal/rpc"
)

var mcpServeStdio bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose pybun's operations over a JSON-RPC control surface",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON-RPC protocol over a byte stream",
	Run: func(cmd *cobra.Command, args []string) {
		if !mcpServeStdio {
			fmt.Fprintln(os.Stderr, "mcp serve currently only supports --stdio")
			os.Exit(2)
		}

		server := rpc.New(&rpcBackend{})
		if err := server.Serve(cmd.Context(), os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "rpc server exited: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	mcpServeCmd.Flags().BoolVar(&mcpServeStdio, "stdio", false, "serve the protocol over stdin/stdout")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
