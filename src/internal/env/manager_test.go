package env

import (
	"testing"
	"time"
)

func TestCreationHashDeterministicAndOrderIndependent(t *testing.T) {
	h1 := CreationHash([]string{"requests==2.31.0", "certifi==2024.2.2"})
	h2 := CreationHash([]string{"certifi==2024.2.2", "requests==2.31.0"})
	if h1 != h2 {
		t.Fatalf("expected order-independent hash, got %s vs %s", h1, h2)
	}

	h3 := CreationHash([]string{"requests==2.31.1", "certifi==2024.2.2"})
	if h1 == h3 {
		t.Fatal("expected a different version to change the hash")
	}
}

func TestManagerExistsAndRecord(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	hash := CreationHash([]string{"requests==2.31.0"})
	if m.Exists(hash) {
		t.Fatal("expected no environment before Create")
	}

	if err := m.writeRecord(hash, Record{Deps: []string{"requests==2.31.0"}, LastUsed: time.Now()}); err != nil {
		t.Fatalf("writeRecord: %v", err)
	}
	if !m.Exists(hash) {
		t.Fatal("expected environment to exist after writing a record")
	}

	record, err := m.readRecord(hash)
	if err != nil {
		t.Fatalf("readRecord: %v", err)
	}
	if len(record.Deps) != 1 || record.Deps[0] != "requests==2.31.0" {
		t.Fatalf("unexpected deps: %v", record.Deps)
	}
}

func TestTouchRateLimited(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	hash := CreationHash([]string{"flask==3.0.0"})
	recent := time.Now().Add(-5 * time.Minute)
	if err := m.writeRecord(hash, Record{Deps: []string{"flask==3.0.0"}, LastUsed: recent}); err != nil {
		t.Fatalf("writeRecord: %v", err)
	}

	if err := m.Touch(hash); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	record, err := m.readRecord(hash)
	if err != nil {
		t.Fatalf("readRecord: %v", err)
	}
	if !record.LastUsed.Equal(recent) {
		t.Fatalf("expected Touch to skip the write within the grace window, last_used changed to %v", record.LastUsed)
	}
}

func TestTouchWritesAfterGraceWindow(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	hash := CreationHash([]string{"numpy==1.26.0"})
	stale := time.Now().Add(-2 * time.Hour)
	if err := m.writeRecord(hash, Record{Deps: []string{"numpy==1.26.0"}, LastUsed: stale}); err != nil {
		t.Fatalf("writeRecord: %v", err)
	}

	if err := m.Touch(hash); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	record, err := m.readRecord(hash)
	if err != nil {
		t.Fatalf("readRecord: %v", err)
	}
	if record.LastUsed.Equal(stale) {
		t.Fatal("expected Touch to refresh last_used once the grace window has elapsed")
	}
}
