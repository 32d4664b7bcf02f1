package cmd

import (
	"github.com/spf13/cobra"

	"pybun/src/internal/diagnostics"
	"pybun/src/internal/envelope"
)

var (
	gcMaxSize int64
	gcDryRun  bool
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Evict least-recently-used cache blobs down to a size budget",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail("gc", envelope.DiagIO, diagnostics.CodeInstallIO, "failed to load project", err)
			return
		}
		c := envelope.New("gc", traceID())
		c.Emit(envelope.KindGCStart, map[string]any{"max_size": gcMaxSize, "dry_run": gcDryRun})

		report, err := a.store.GC(gcMaxSize, gcDryRun)
		if err != nil {
			c.Diagnose(diagnostics.New(envelope.DiagIO, diagnostics.CodeInstallIO, "gc failed", err))
			emitEnvelope(c.Finish(envelope.StatusError, nil))
			return
		}

		c.Emit(envelope.KindGCComplete, map[string]any{
			"removed":         len(report.Removed),
			"bytes_reclaimed": report.BytesReclaimed,
			"total_bytes":     report.TotalBytes,
		})
		emitEnvelope(c.Finish(envelope.StatusOK, report))
	},
}

func init() {
	gcCmd.Flags().Int64Var(&gcMaxSize, "max-size", 5*1<<30, "byte budget to enforce over the package cache")
	gcCmd.Flags().BoolVar(&gcDryRun, "dry-run", false, "report candidate evictions without deleting")
	rootCmd.AddCommand(gcCmd)
}
