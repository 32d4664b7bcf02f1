package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"pybun/src/internal/envelope"
)

type fakeBackend struct {
	resolveErr error
}

func (f *fakeBackend) Resolve(ctx context.Context, arguments json.RawMessage) (envelope.Envelope, error) {
	if f.resolveErr != nil {
		c := envelope.New("resolve", "t1")
		c.Diagnose(envelope.Diagnostic{Kind: envelope.DiagResolve, Code: "E_RESOLVE_CONFLICT", Message: "conflict"})
		return c.Finish(envelope.StatusError, nil), f.resolveErr
	}
	c := envelope.New("resolve", "t1")
	return c.Finish(envelope.StatusOK, map[string]any{"packages": 2}), nil
}

func (f *fakeBackend) Install(ctx context.Context, arguments json.RawMessage) (envelope.Envelope, error) {
	c := envelope.New("install", "t2")
	return c.Finish(envelope.StatusOK, nil), nil
}

func (f *fakeBackend) Run(ctx context.Context, arguments json.RawMessage) (envelope.Envelope, error) {
	c := envelope.New("run", "t3")
	return c.Finish(envelope.StatusOK, nil), nil
}

func (f *fakeBackend) GC(ctx context.Context, arguments json.RawMessage) (envelope.Envelope, error) {
	c := envelope.New("gc", "t4")
	return c.Finish(envelope.StatusOK, nil), nil
}

func (f *fakeBackend) Doctor(ctx context.Context, arguments json.RawMessage) (envelope.Envelope, error) {
	c := envelope.New("doctor", "t5")
	return c.Finish(envelope.StatusOK, nil), nil
}

func (f *fakeBackend) CacheInfo(ctx context.Context) (map[string]any, error) {
	return map[string]any{"bytes": 1024}, nil
}

func (f *fakeBackend) EnvInfo(ctx context.Context) (map[string]any, error) {
	return map[string]any{"count": 1}, nil
}

func runLines(t *testing.T, backend Backend, lines ...string) []Response {
	t.Helper()
	srv := New(backend)
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	var out bytes.Buffer
	if err := srv.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	var responses []Response
	dec := json.NewDecoder(&out)
	for dec.More() {
		var resp Response
		if err := dec.Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func TestInitializeReturnsCapabilities(t *testing.T) {
	resp := runLines(t, &fakeBackend{}, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	if len(resp) != 1 {
		t.Fatalf("len(resp) = %d, want 1", len(resp))
	}
	if resp[0].Error != nil {
		t.Fatalf("unexpected error: %v", resp[0].Error)
	}
}

func TestToolsListIncludesFiveTools(t *testing.T) {
	resp := runLines(t, &fakeBackend{}, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	result, ok := resp[0].Result.(map[string]any)
	if !ok {
		t.Fatalf("result is not a map: %T", resp[0].Result)
	}
	list, ok := result["tools"].([]any)
	if !ok {
		t.Fatalf("tools is not a list: %T", result["tools"])
	}
	if len(list) != 5 {
		t.Fatalf("len(tools) = %d, want 5", len(list))
	}
}

func TestToolsCallDispatchesToBackend(t *testing.T) {
	resp := runLines(t, &fakeBackend{}, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"resolve","arguments":{}}}`)
	if resp[0].Error != nil {
		t.Fatalf("unexpected error: %v", resp[0].Error)
	}
}

func TestToolsCallPropagatesDiagnosticCode(t *testing.T) {
	resp := runLines(t, &fakeBackend{resolveErr: errors.New("conflict")}, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"resolve","arguments":{}}}`)
	if resp[0].Error == nil {
		t.Fatalf("expected an error response")
	}
	data, ok := resp[0].Error.Data.(map[string]any)
	if !ok {
		t.Fatalf("error.data is not a map: %T", resp[0].Error.Data)
	}
	if data["code"] != "E_RESOLVE_CONFLICT" {
		t.Fatalf("data.code = %v, want E_RESOLVE_CONFLICT", data["code"])
	}
}

func TestResourcesReadCacheInfo(t *testing.T) {
	resp := runLines(t, &fakeBackend{}, `{"jsonrpc":"2.0","id":1,"method":"resources/read","params":{"uri":"cache/info"}}`)
	if resp[0].Error != nil {
		t.Fatalf("unexpected error: %v", resp[0].Error)
	}
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	resp := runLines(t, &fakeBackend{}, `{"jsonrpc":"2.0","id":1,"method":"bogus"}`)
	if resp[0].Error == nil || resp[0].Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found error, got %v", resp[0].Error)
	}
}

func TestShutdownStopsServeLoop(t *testing.T) {
	resp := runLines(t, &fakeBackend{},
		`{"jsonrpc":"2.0","id":1,"method":"shutdown"}`,
		`{"jsonrpc":"2.0","id":2,"method":"initialize"}`,
	)
	if len(resp) != 1 {
		t.Fatalf("len(resp) = %d, want 1 (loop should stop after shutdown)", len(resp))
	}
}
