// Package diagnostics translates raw component failures into the stable
// diagnostic taxonomy described in spec.md §7, and offers self-heal hints
// (e.g. fuzzy package-name suggestions) for the resolver and installer.
package diagnostics

import (
	"sort"

	"github.com/juju/errors"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"pybun/src/internal/envelope"
)

// Stable diagnostic codes, per spec.md §4.7 and §8.
const (
	CodeResolveMissing  = "E_RESOLVE_MISSING"
	CodeResolveConflict = "E_RESOLVE_CONFLICT"
	CodeIndexOfflineMiss = "E_INDEX_OFFLINE_MISS"
	CodeIndexNetwork    = "E_INDEX_NETWORK"
	CodeIndexMalformed  = "E_INDEX_MALFORMED"
	CodeDownloadVerify  = "E_DOWNLOAD_VERIFY"
	CodeInstallIO       = "E_INSTALL_IO"
	CodeScriptNotFound  = "E_SCRIPT_NOT_FOUND"
	CodeEnvInterpreter  = "E_ENV_INTERPRETER_MISSING"
	CodeSandboxDenied   = "E_SANDBOX_DENIED_SYSCALL"
	CodeUsage           = "E_USAGE"
)

// New builds a Diagnostic, annotating cause with juju/errors so any wrapped
// OS/network error carries its original stack when logged.
func New(kind envelope.DiagnosticKind, code, message string, cause error) envelope.Diagnostic {
	if cause != nil {
		cause = errors.Annotate(cause, message)
	}
	d := envelope.Diagnostic{Kind: kind, Code: code, Message: message}
	if cause != nil {
		d.Message = cause.Error()
	}
	return d
}

// MissingPackage builds E_RESOLVE_MISSING whose hint names the closest known
// package (fuzzy-matching the requested name against names the index has
// seen before); the full known-name list goes in the diagnostic's Tree.
func MissingPackage(requested string, known []string) envelope.Diagnostic {
	hint := "no similarly named package is known to the index"
	if suggestion := closest(requested, known); suggestion != "" {
		hint = "did you mean \"" + suggestion + "\"?"
	}
	return envelope.Diagnostic{
		Kind:    envelope.DiagResolve,
		Code:    CodeResolveMissing,
		Message: "package \"" + requested + "\" is not listed by the index",
		Hint:    hint,
		Tree:    known,
	}
}

// ConflictChain describes one provenance path that contributed to an
// unsatisfiable predicate set.
type ConflictChain struct {
	Package string   `json:"package"`
	Chain   []string `json:"chain"`
}

// Conflict builds E_RESOLVE_CONFLICT with the union of provenance chains
// that jointly rendered a predicate set unsatisfiable.
func Conflict(pkg string, chains []ConflictChain) envelope.Diagnostic {
	return envelope.Diagnostic{
		Kind:    envelope.DiagResolve,
		Code:    CodeResolveConflict,
		Message: "no version of \"" + pkg + "\" satisfies every requirement",
		Hint:    "relax one of the conflicting constraints or pin a compatible version explicitly",
		Tree:    chains,
	}
}

// ScriptNotFound builds E_SCRIPT_NOT_FOUND per spec.md §8 scenario 4.
func ScriptNotFound(path string) envelope.Diagnostic {
	return envelope.Diagnostic{
		Kind:    envelope.DiagRuntime,
		Code:    CodeScriptNotFound,
		Message: "script not found: " + path,
		Hint:    "pass -c for inline code or a valid path",
	}
}

// DownloadVerify builds E_DOWNLOAD_VERIFY for a hash/signature mismatch.
func DownloadVerify(pkg, reason string) envelope.Diagnostic {
	return envelope.Diagnostic{
		Kind:    envelope.DiagDownload,
		Code:    CodeDownloadVerify,
		Message: "verification failed for " + pkg + ": " + reason,
		Hint:    "the cached artifact was deleted; retry once the index's recorded hash is trusted again",
	}
}

// closest returns the known name with the smallest Levenshtein distance to
// requested, or "" if nothing is close enough to be a plausible typo.
func closest(requested string, known []string) string {
	type scored struct {
		name string
		dist int
	}
	var candidates []scored
	for _, name := range known {
		d := fuzzy.LevenshteinDistance(requested, name)
		if d <= 3 {
			candidates = append(candidates, scored{name, d})
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].name < candidates[j].name
	})
	return candidates[0].name
}
