package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestPutHashInvariant(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	body := "hello pybun"
	expected := sha256Hex(body)

	path, err := store.Put(strings.NewReader(body), expected)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasSuffix(path, expected) {
		t.Fatalf("expected path to end with hash %s, got %s", expected, path)
	}
	if !store.Has(expected) {
		t.Fatal("expected Has to report true after Put")
	}
}

func TestPutVerifyFailureNotStoredUnderExpectedHash(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = store.Put(strings.NewReader("real content"), "0000000000000000000000000000000000000000000000000000000000000000")
	if err == nil {
		t.Fatal("expected checksum mismatch error")
	}
	if store.Has("0000000000000000000000000000000000000000000000000000000000000000") {
		t.Fatal("mismatched blob must not be stored under the expected hash")
	}
}

func TestPutIdempotentConcurrentWriters(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	body := "shared blob content"
	expected := sha256Hex(body)

	p1, err1 := store.Put(strings.NewReader(body), expected)
	p2, err2 := store.Put(strings.NewReader(body), expected)
	if err1 != nil || err2 != nil {
		t.Fatalf("Put errors: %v / %v", err1, err2)
	}
	if p1 != p2 {
		t.Fatalf("expected same final path, got %s and %s", p1, p2)
	}
}
