// Package rpc implements spec.md §4.8's control surface: newline-delimited
// JSON-RPC 2.0 over a byte stream, exposing the same operations the CLI
// commands run as tools, plus two read-only resources. Grounded on the
// teacher's cmd/shell.go line-oriented stdin loop, generalized from a
// human-typed shell to a machine-readable request/response framing; no pack
// example ships a JSON-RPC or LSP/MCP transport library narrower than a full
// SDK (see DESIGN.md), so the ~80-line frame reader below is hand-rolled
// over encoding/json + bufio, the same way the teacher hand-rolls its own
// line reader.
package rpc

import "encoding/json"

// ProtocolVersion is the server's reported protocol/capability version,
// independent of the envelope's own "version": "1".
const ProtocolVersion = "2026.1"

// Request is one line of a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is one line of a JSON-RPC 2.0 response. Exactly one of Result or
// Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object. Data carries the same stable
// diagnostic code (e.g. "E_RESOLVE_CONFLICT") spec.md §7 assigns to the
// underlying failure, so an RPC client can branch on it exactly like a CLI
// caller parsing an envelope diagnostic.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Standard JSON-RPC 2.0 reserved error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
	codeToolError      = -32000
)

func newResponse(id json.RawMessage, result any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string, data any) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: message, Data: data}}
}

// ToolDescriptor is one entry of a tools/list response.
type ToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ResourceDescriptor is one entry of a resources/list response.
type ResourceDescriptor struct {
	URI         string `json:"uri"`
	Description string `json:"description"`
}

var tools = []ToolDescriptor{
	{Name: "resolve", Description: "resolve a requirement set to a ResolvedSet without installing"},
	{Name: "install", Description: "resolve and install requirements, pinning them in pybun.toml and writing the lockfile when lock is set"},
	{Name: "run", Description: "run a script or inline code, creating/reusing its environment"},
	{Name: "gc", Description: "evict least-recently-used cache blobs to a size budget"},
	{Name: "doctor", Description: "report environment/interpreter/cache sanity diagnostics"},
}

var resources = []ResourceDescriptor{
	{URI: "cache/info", Description: "content-addressed cache size in bytes and the data root path"},
	{URI: "env/info", Description: "materialized environments and their creation hashes"},
}

// toolCallParams is the shape of a tools/call request's params.
type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// resourceReadParams is the shape of a resources/read request's params.
type resourceReadParams struct {
	URI string `json:"uri"`
}
