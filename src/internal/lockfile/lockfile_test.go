package lockfile

import (
	"os"
	"path/filepath"
	"testing"

	"pybun/src/internal/index"
	"pybun/src/internal/resolver"
)

func sampleSet() resolver.ResolvedSet {
	return resolver.ResolvedSet{Packages: []resolver.ResolvedPackage{
		{
			Name:     "requests",
			Version:  "2.31.0",
			Requires: []string{"urllib3", "certifi"},
			Distribution: index.Distribution{
				Platform: "any", Kind: "prebuilt",
				URL: "https://example/requests-2.31.0.whl", SHA256: "abc123",
			},
		},
		{
			Name:    "certifi",
			Version: "2024.2.2",
			Distribution: index.Distribution{
				Platform: "any", Kind: "prebuilt",
				URL: "https://example/certifi-2024.2.2.whl", SHA256: "def456",
			},
		},
	}}
}

func TestLockfileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pybun.lock")

	lock := FromResolvedSet(sampleSet(), "3.12", []string{"linux-x86_64"}, "")
	if err := lock.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Schema != SchemaVersion {
		t.Fatalf("expected schema %d, got %d", SchemaVersion, loaded.Schema)
	}
	if len(loaded.Packages) != 2 {
		t.Fatalf("expected 2 packages, got %d", len(loaded.Packages))
	}
	if loaded.Packages[0].Name != "certifi" {
		t.Fatalf("expected sorted-by-name first entry certifi, got %s", loaded.Packages[0].Name)
	}
}

func TestLockfileDeterministicEncoding(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.lock")
	pathB := filepath.Join(dir, "b.lock")

	lockA := FromResolvedSet(sampleSet(), "3.12", []string{"linux-x86_64"}, "")
	lockB := FromResolvedSet(sampleSet(), "3.12", []string{"linux-x86_64"}, "")

	if err := lockA.Save(pathA); err != nil {
		t.Fatalf("Save A: %v", err)
	}
	if err := lockB.Save(pathB); err != nil {
		t.Fatalf("Save B: %v", err)
	}

	bytesA, err := os.ReadFile(pathA)
	if err != nil {
		t.Fatalf("ReadFile A: %v", err)
	}
	bytesB, err := os.ReadFile(pathB)
	if err != nil {
		t.Fatalf("ReadFile B: %v", err)
	}
	if string(bytesA) != string(bytesB) {
		t.Fatalf("expected byte-identical locks for identical input resolutions:\nA=%s\nB=%s", bytesA, bytesB)
	}
}

func TestLockfileToResolvedSetRoundTrip(t *testing.T) {
	set := sampleSet()
	lock := FromResolvedSet(set, "3.12", []string{"linux-x86_64"}, "")
	rebuilt := lock.ToResolvedSet()

	if len(rebuilt.Packages) != len(set.Packages) {
		t.Fatalf("expected %d packages, got %d", len(set.Packages), len(rebuilt.Packages))
	}
}
