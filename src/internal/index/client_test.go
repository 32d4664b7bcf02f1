package index

import (
	"context"
	"path/filepath"
	"testing"
)

func TestClientFixtureMetadata(t *testing.T) {
	dir := t.TempDir()
	fixturePath := filepath.Join(dir, "fixture.json")
	err := WriteFixture(fixturePath, map[string]PackageMetadata{
		"requests": {
			Name: "requests",
			Versions: map[string]VersionMetadata{
				"2.31.0": {
					Requires:      []string{"certifi", "charset-normalizer", "idna", "urllib3"},
					Distributions: []Distribution{{Platform: "any", Kind: "prebuilt", URL: "https://example/requests-2.31.0.whl", SHA256: "abc"}},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("WriteFixture: %v", err)
	}

	c := New(dir, WithFixture(fixturePath))
	meta, err := c.Metadata(context.Background(), "requests")
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if len(meta.Versions) != 1 {
		t.Fatalf("expected 1 version, got %d", len(meta.Versions))
	}
	v, ok := meta.Versions["2.31.0"]
	if !ok {
		t.Fatalf("expected version 2.31.0 present")
	}
	if len(v.Requires) != 4 {
		t.Fatalf("expected 4 requires, got %d", len(v.Requires))
	}
}

func TestClientFixtureUnknownPackage(t *testing.T) {
	dir := t.TempDir()
	fixturePath := filepath.Join(dir, "fixture.json")
	if err := WriteFixture(fixturePath, map[string]PackageMetadata{}); err != nil {
		t.Fatalf("WriteFixture: %v", err)
	}

	c := New(dir, WithFixture(fixturePath))
	meta, err := c.Metadata(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if len(meta.Versions) != 0 {
		t.Fatalf("expected no versions for unknown package")
	}
}

func TestClientOfflineMissWithoutCache(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, WithOffline(true))
	_, err := c.Metadata(context.Background(), "numpy")
	if err == nil {
		t.Fatal("expected offline miss error")
	}
	idxErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if idxErr.Code != CodeOfflineMiss {
		t.Fatalf("expected %s, got %s", CodeOfflineMiss, idxErr.Code)
	}
}

func TestClientRequirementsUsesFixture(t *testing.T) {
	dir := t.TempDir()
	fixturePath := filepath.Join(dir, "fixture.json")
	err := WriteFixture(fixturePath, map[string]PackageMetadata{
		"flask": {
			Name: "flask",
			Versions: map[string]VersionMetadata{
				"3.0.0": {Requires: []string{"werkzeug", "jinja2"}},
			},
		},
	})
	if err != nil {
		t.Fatalf("WriteFixture: %v", err)
	}

	c := New(dir, WithFixture(fixturePath))
	reqs, err := c.Requirements(context.Background(), "flask", "3.0.0")
	if err != nil {
		t.Fatalf("Requirements: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requirements, got %d", len(reqs))
	}
}
