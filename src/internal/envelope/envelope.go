// Package envelope defines the structured JSON result every pybun command
// emits, and the per-command collector that accumulates events and
// diagnostics during a run.
package envelope

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Status is the top-level outcome of a command.
type Status string

const (
	StatusOK        Status = "ok"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Kind tags an Event by what stage of a command produced it.
type Kind string

const (
	KindCommandStart    Kind = "CommandStart"
	KindCommandEnd      Kind = "CommandEnd"
	KindCommandCancel   Kind = "CommandCancel"
	KindResolveStart    Kind = "ResolveStart"
	KindResolveComplete Kind = "ResolveComplete"
	KindInstallStart    Kind = "InstallStart"
	KindInstallComplete Kind = "InstallComplete"
	KindRunStart        Kind = "RunStart"
	KindRunExit         Kind = "RunExit"
	KindGCStart         Kind = "GCStart"
	KindGCComplete      Kind = "GCComplete"
	KindProgress        Kind = "Progress"
)

// Event is one append-only entry in a command's causal timeline.
type Event struct {
	Kind      Kind           `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// DiagnosticKind is the taxonomy family a Diagnostic belongs to (spec.md §7).
type DiagnosticKind string

const (
	DiagResolve DiagnosticKind = "resolve"
	DiagIndex   DiagnosticKind = "index"
	DiagDownload DiagnosticKind = "download"
	DiagInstall DiagnosticKind = "install"
	DiagEnv     DiagnosticKind = "env"
	DiagRuntime DiagnosticKind = "runtime"
	DiagSandbox DiagnosticKind = "sandbox"
	DiagIO      DiagnosticKind = "io"
	DiagUsage   DiagnosticKind = "usage"
)

// Diagnostic is a stable-coded, human-readable problem report, optionally
// carrying an actionable hint and a conflict-chain tree.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Tree    any            `json:"tree,omitempty"`
}

// Envelope is the stable v1 JSON object emitted exactly once per command.
type Envelope struct {
	Version     string       `json:"version"`
	Command     string       `json:"command"`
	Status      Status       `json:"status"`
	DurationMs  int64        `json:"duration_ms"`
	Detail      any          `json:"detail,omitempty"`
	Events      []Event      `json:"events"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	TraceID     string       `json:"trace_id,omitempty"`
}

// Collector owns the current command's event/diagnostic buffer. Exactly one
// Collector is live per command; it is created at command entry and
// discarded at exit.
type Collector struct {
	mu          sync.Mutex
	command     string
	traceID     string
	startedAt   time.Time
	lastStamp   time.Time
	events      []Event
	diagnostics []Diagnostic
}

func New(command, traceID string) *Collector {
	now := time.Now()
	return &Collector{
		command:   command,
		traceID:   traceID,
		startedAt: now,
		lastStamp: now,
	}
}

// Emit appends an event, guaranteeing a monotonically increasing timestamp
// even if the wall clock doesn't advance between two rapid emissions.
func (c *Collector) Emit(kind Kind, payload map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := time.Now()
	if !ts.After(c.lastStamp) {
		ts = c.lastStamp.Add(time.Nanosecond)
	}
	c.lastStamp = ts
	c.events = append(c.events, Event{Kind: kind, Timestamp: ts, Payload: payload})
}

// Diagnose appends a diagnostic into the active command's envelope.
func (c *Collector) Diagnose(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diagnostics = append(c.diagnostics, d)
}

// HasDiagnostics reports whether any diagnostic has been recorded so far.
func (c *Collector) HasDiagnostics() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.diagnostics) > 0
}

// Finish builds the final envelope for the command. status is the caller's
// judgment of the overall outcome; detail is the command-specific payload.
func (c *Collector) Finish(status Status, detail any) Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Envelope{
		Version:     "1",
		Command:     c.command,
		Status:      status,
		DurationMs:  time.Since(c.startedAt).Milliseconds(),
		Detail:      detail,
		Events:      c.events,
		Diagnostics: c.diagnostics,
		TraceID:     c.traceID,
	}
}

// WriteJSON prints the envelope as a single two-space-indented JSON object to w,
// satisfying the "exactly one top-level envelope on stdout" property.
func (e Envelope) WriteJSON(w *os.File) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}
