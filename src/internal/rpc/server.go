package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"pybun/src/internal/envelope"
)

// Backend is the set of operations the RPC server dispatches into — the
// same entry points the CLI commands call (spec.md §4.8 "dispatches into
// the same code paths the CLI uses"). A cmd package implementation wires
// these to the real resolver/cache/env/runner components; tests can supply
// a fake.
type Backend interface {
	Resolve(ctx context.Context, arguments json.RawMessage) (envelope.Envelope, error)
	Install(ctx context.Context, arguments json.RawMessage) (envelope.Envelope, error)
	Run(ctx context.Context, arguments json.RawMessage) (envelope.Envelope, error)
	GC(ctx context.Context, arguments json.RawMessage) (envelope.Envelope, error)
	Doctor(ctx context.Context, arguments json.RawMessage) (envelope.Envelope, error)
	CacheInfo(ctx context.Context) (map[string]any, error)
	EnvInfo(ctx context.Context) (map[string]any, error)
}

// Server reads newline-delimited JSON-RPC 2.0 requests from r and writes
// responses to w, one per line, preserving each request's id.
type Server struct {
	Backend Backend
}

func New(backend Backend) *Server {
	return &Server{Backend: backend}
}

// Serve runs the request loop until the stream closes or a "shutdown"
// request is handled. It never returns an error for a clean EOF.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			_ = enc.Encode(errorResponse(nil, codeParseError, "invalid JSON", err.Error()))
			continue
		}

		resp, shutdown := s.dispatch(ctx, req)
		if err := enc.Encode(resp); err != nil {
			return err
		}
		if shutdown {
			return nil
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req Request) (Response, bool) {
	switch req.Method {
	case "initialize":
		return newResponse(req.ID, map[string]any{
			"protocolVersion": ProtocolVersion,
			"serverInfo":      map[string]any{"name": "pybun", "version": ProtocolVersion},
			"capabilities":    map[string]any{"tools": true, "resources": true},
		}), false

	case "tools/list":
		return newResponse(req.ID, map[string]any{"tools": tools}), false

	case "tools/call":
		return s.handleToolCall(ctx, req), false

	case "resources/list":
		return newResponse(req.ID, map[string]any{"resources": resources}), false

	case "resources/read":
		return s.handleResourceRead(ctx, req), false

	case "shutdown":
		return newResponse(req.ID, map[string]any{"ok": true}), true

	default:
		return errorResponse(req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method), nil), false
	}
}

func (s *Server) handleToolCall(ctx context.Context, req Request) Response {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "invalid tools/call params", err.Error())
	}

	var (
		env envelope.Envelope
		err error
	)
	switch params.Name {
	case "resolve":
		env, err = s.Backend.Resolve(ctx, params.Arguments)
	case "install":
		env, err = s.Backend.Install(ctx, params.Arguments)
	case "run":
		env, err = s.Backend.Run(ctx, params.Arguments)
	case "gc":
		env, err = s.Backend.GC(ctx, params.Arguments)
	case "doctor":
		env, err = s.Backend.Doctor(ctx, params.Arguments)
	default:
		return errorResponse(req.ID, codeInvalidParams, fmt.Sprintf("unknown tool %q", params.Name), nil)
	}

	if err != nil {
		return errorResponse(req.ID, codeToolError, err.Error(), diagnosticCodeOf(env))
	}
	return newResponse(req.ID, env)
}

func (s *Server) handleResourceRead(ctx context.Context, req Request) Response {
	var params resourceReadParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "invalid resources/read params", err.Error())
	}

	var (
		result map[string]any
		err    error
	)
	switch params.URI {
	case "cache/info":
		result, err = s.Backend.CacheInfo(ctx)
	case "env/info":
		result, err = s.Backend.EnvInfo(ctx)
	default:
		return errorResponse(req.ID, codeInvalidParams, fmt.Sprintf("unknown resource %q", params.URI), nil)
	}

	if err != nil {
		return errorResponse(req.ID, codeToolError, err.Error(), nil)
	}
	return newResponse(req.ID, result)
}

// diagnosticCodeOf returns the stable diagnostic code of the envelope's
// first diagnostic, if any, so a JSON-RPC error's data carries the same
// code a CLI caller would see in the envelope.
func diagnosticCodeOf(env envelope.Envelope) any {
	if len(env.Diagnostics) == 0 {
		return nil
	}
	return map[string]string{"code": env.Diagnostics[0].Code}
}

// NewServerTraceID mints a fresh trace id for a server-originated
// notification, the one place the server itself needs an id rather than
// echoing a client-supplied one.
func NewServerTraceID() string {
	return uuid.NewString()
}
