package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pybun/src/internal/pybundir"
	"pybun/src/internal/telemetry"
)

var (
	cfgFile        string
	profileEnabled bool
	profileDir     string
	offlineFlag    bool
	formatFlag     string
	traceIDFlag    string
)

var rootCmd = &cobra.Command{
	Use:   "pybun",
	Short: "pybun is a single-binary Python toolchain: resolve, install, and run",
	Long: `pybun resolves Python dependencies against a package index, installs
them into content-addressed, hash-keyed environments, and runs scripts and
inline code against those environments. Project configuration lives in
pybun.toml; downloaded artifacts and materialized environments are cached
globally under a content-addressed store.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !profileEnabled {
			return nil
		}
		dir := strings.TrimSpace(profileDir)
		if dir == "" {
			dir = pybundir.ProfilesDir()
		}
		info, err := telemetry.Start(dir)
		if err != nil {
			return err
		}
		telemetry.Event(
			"command.start",
			"command", cmd.CommandPath(),
			"args_count", len(args),
			"config", viper.ConfigFileUsed(),
		)
		fmt.Printf("Profiling enabled.\nLogs: %s\nCPU: %s\nHeap: %s\n", info.LogPath, info.CPUPath, info.HeapPath)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if !profileEnabled {
			return
		}
		telemetry.Event("command.stop", "command", cmd.CommandPath())
		if _, err := telemetry.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to flush profiling artifacts: %v\n", err)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is pybun's global config)")
	rootCmd.PersistentFlags().BoolVar(&profileEnabled, "profile", false, "collect CPU/heap profiles and structured timing logs")
	rootCmd.PersistentFlags().StringVar(&profileDir, "profile-dir", "", "directory for profiling artifacts (default: <pybun-home>/profiles)")
	rootCmd.PersistentFlags().BoolVar(&offlineFlag, "offline", false, "never touch the network; fail on an index cache miss")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", "text", "output format for the command's envelope: text or json")
	rootCmd.PersistentFlags().StringVar(&traceIDFlag, "trace-id", "", "trace id to attach to this command's envelope (default: a generated uuid)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigFile(pybundir.ConfigFile())
	}

	viper.SetEnvPrefix("pybun")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		// Config file found and read.
	}
}
