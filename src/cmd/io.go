package cmd

import (
	"os"

	"github.com/google/uuid"
	"github.com/pterm/pterm"

	"pybun/src/internal/diagnostics"
	"pybun/src/internal/envelope"
)

// traceID returns --trace-id if given, otherwise mints a fresh one so every
// command's envelope carries a correlatable id even when the caller didn't
// ask for one.
func traceID() string {
	if traceIDFlag != "" {
		return traceIDFlag
	}
	return uuid.NewString()
}

// exitCodeFor maps a command's outcome to spec.md §6's process exit codes:
// 0 ok, 1 generic error, 2 usage error, 64 resolver conflict, 65
// verification failure, 74 I/O error. The first diagnostic decides the
// code; a status-error envelope with no diagnostic still exits 1.
func exitCodeFor(env envelope.Envelope) int {
	if env.Status != envelope.StatusError {
		return 0
	}
	if len(env.Diagnostics) == 0 {
		return 1
	}
	switch env.Diagnostics[0].Code {
	case diagnostics.CodeUsage:
		return 2
	case diagnostics.CodeResolveConflict, diagnostics.CodeResolveMissing:
		return 64
	case diagnostics.CodeDownloadVerify:
		return 65
	case diagnostics.CodeIndexOfflineMiss, diagnostics.CodeIndexNetwork, diagnostics.CodeIndexMalformed,
		diagnostics.CodeInstallIO, diagnostics.CodeScriptNotFound:
		return 74
	default:
		return 1
	}
}

// emitEnvelope prints env per --format and exits the process with the code
// exitCodeFor derives from it — the single exit point every command's Run
// funnels through, so a command's own return value never has to duplicate
// this mapping.
func emitEnvelope(env envelope.Envelope) {
	if formatFlag == "json" {
		_ = env.WriteJSON(os.Stdout)
		os.Exit(exitCodeFor(env))
	}

	printTextSummary(env)
	os.Exit(exitCodeFor(env))
}

func printTextSummary(env envelope.Envelope) {
	if env.Status == envelope.StatusOK {
		pterm.Success.Printf("%s completed in %dms\n", env.Command, env.DurationMs)
	} else {
		pterm.Error.Printf("%s failed after %dms\n", env.Command, env.DurationMs)
	}
	for _, d := range env.Diagnostics {
		pterm.Error.Printf("[%s] %s\n", d.Code, d.Message)
		if d.Hint != "" {
			pterm.Info.Printf("hint: %s\n", d.Hint)
		}
	}
}

// emitRunEnvelope prints env per --format like emitEnvelope, but exits with
// the script's own process exit code rather than the diagnostic-derived
// mapping: a script that exits 7 propagates 7, it isn't a pybun tool error
// (spec.md §4.6 step 4, "propagates exit code").
func emitRunEnvelope(env envelope.Envelope, scriptExitCode int) {
	if formatFlag == "json" {
		_ = env.WriteJSON(os.Stdout)
		os.Exit(scriptExitCode)
	}
	printTextSummary(env)
	os.Exit(scriptExitCode)
}

// fail builds and emits a one-shot envelope for failures that occur before
// a Collector even exists (e.g. a project manifest that won't load).
func fail(command string, kind envelope.DiagnosticKind, code, message string, cause error) {
	c := envelope.New(command, traceID())
	c.Diagnose(diagnostics.New(kind, code, message, cause))
	emitEnvelope(c.Finish(envelope.StatusError, nil))
}
