package cache

import (
	"strings"
	"testing"
	"time"
)

func putAndAge(t *testing.T, store *Store, content string, age time.Duration) string {
	t.Helper()
	hash := sha256Hex(content)
	path, err := store.Put(strings.NewReader(content), hash)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	older := time.Now().Add(-age)
	if err := chtimes(path, older); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	return path
}

func TestGCDryRunDoesNotDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	putAndAge(t, store, strings.Repeat("a", 1024), 2*time.Hour)
	putAndAge(t, store, strings.Repeat("b", 1024), 1*time.Hour)

	report, err := store.GC(1024, true)
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if len(report.Removed) == 0 {
		t.Fatal("expected dry-run to report removal candidates")
	}
	for _, b := range report.Removed {
		if !store.Has(hashFromPath(b.Path)) {
			t.Fatalf("dry-run must not actually delete %s", b.Path)
		}
	}
}

func TestGCEvictsOldestFirst(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	oldHash := sha256Hex(strings.Repeat("a", 1024))
	newHash := sha256Hex(strings.Repeat("b", 1024))
	putAndAge(t, store, strings.Repeat("a", 1024), 2*time.Hour)
	putAndAge(t, store, strings.Repeat("b", 1024), 1*time.Minute)

	report, err := store.GC(1024, false)
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if len(report.Removed) != 1 {
		t.Fatalf("expected exactly 1 removal, got %d", len(report.Removed))
	}
	if store.Has(oldHash) {
		t.Fatal("expected the oldest blob to be evicted")
	}
	if !store.Has(newHash) {
		t.Fatal("expected the newest blob to survive")
	}
}

func hashFromPath(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}
