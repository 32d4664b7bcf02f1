// Package cache implements the content-addressed store and downloader of
// spec.md §4.3, grounded on the teacher's internal/cache/cas.go (blob
// layout, temp-file-then-rename idiom) generalized to the data root layout
// SPEC_FULL.md §4.3 requires (packages/, envs/, artifacts/, build/, logs/).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pybun/src/internal/telemetry"
)

// Store is the content-addressed blob store under a data root. Layout
// mirrors spec.md §4.3: packages/ (sha256-keyed blobs), artifacts/ (raw
// downloads pre-unpack), envs/ (environments, owned by src/internal/env),
// build/ and logs/ (reserved for future build-cache use).
type Store struct {
	Root string
}

func New(root string) (*Store, error) {
	s := &Store{Root: root}
	for _, dir := range []string{s.packagesDir(), s.artifactsDir(), s.envsDir(), s.buildDir(), s.logsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) packagesDir() string  { return filepath.Join(s.Root, "packages") }
func (s *Store) artifactsDir() string { return filepath.Join(s.Root, "artifacts") }
func (s *Store) envsDir() string      { return filepath.Join(s.Root, "envs") }
func (s *Store) buildDir() string     { return filepath.Join(s.Root, "build") }
func (s *Store) logsDir() string      { return filepath.Join(s.Root, "logs") }

// EnvsDir exposes the envs/ root for src/internal/env's isolated-environment
// layout, keyed by creation hash (spec.md §4.5).
func (s *Store) EnvsDir() string { return s.envsDir() }

// BlobPath returns the on-disk location an artifact with the given sha256
// would occupy, sharded by its first two hex digits to keep any one
// directory from growing unbounded.
func (s *Store) BlobPath(sha256Hex string) string {
	prefix := "00"
	if len(sha256Hex) >= 2 {
		prefix = sha256Hex[:2]
	}
	return filepath.Join(s.packagesDir(), prefix, sha256Hex)
}

// Has reports whether a blob matching sha256Hex already exists on disk.
// Per spec.md §4.3's invariant, a present blob is trusted to already match
// its name — re-verification happens only right after a fresh write.
func (s *Store) Has(sha256Hex string) bool {
	_, err := os.Stat(s.BlobPath(sha256Hex))
	return err == nil
}

// Put atomically stores the bytes read from r as a blob, verifying the
// result hashes to expectedSha256. Writes are create-temp → fsync → rename,
// so concurrent writers of the same blob are idempotent: whichever rename
// wins, the loser's temp file is discarded having already matched the hash.
func (s *Store) Put(r io.Reader, expectedSha256 string) (string, error) {
	done := telemetry.StartSpan("cas.put", "expected_sha256", expectedSha256)

	target := s.BlobPath(expectedSha256)
	if _, err := os.Stat(target); err == nil {
		done("status", "ok", "cache_hit", true)
		return target, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		done("status", "error", "error", err.Error())
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "blob-*.tmp")
	if err != nil {
		done("status", "error", "error", err.Error())
		return "", err
	}
	tmpPath := tmp.Name()
	removed := false
	defer func() {
		if !removed {
			_ = os.Remove(tmpPath)
		}
	}()

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), r); err != nil {
		tmp.Close()
		done("status", "error", "error", err.Error())
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		done("status", "error", "error", err.Error())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		done("status", "error", "error", err.Error())
		return "", err
	}

	actual := hex.EncodeToString(hasher.Sum(nil))
	if expectedSha256 != "" && !strings.EqualFold(expectedSha256, actual) {
		err := fmt.Errorf("checksum mismatch: expected=%s actual=%s", expectedSha256, actual)
		done("status", "error", "error", err.Error())
		return "", err
	}

	final := s.BlobPath(actual)
	if _, err := os.Stat(final); err == nil {
		removed = true
		_ = os.Remove(tmpPath)
		done("status", "ok", "cache_hit", true)
		return final, nil
	}
	if err := os.Rename(tmpPath, final); err != nil {
		done("status", "error", "error", err.Error())
		return "", err
	}
	removed = true
	done("status", "ok", "cache_hit", false)
	return final, nil
}

// Open opens an existing blob for reading.
func (s *Store) Open(sha256Hex string) (*os.File, error) {
	return os.Open(s.BlobPath(sha256Hex))
}

// Delete removes a blob, used when post-write verification (signature)
// fails after Put has already landed the file (spec.md §4.3 "on mismatch
// the file is deleted").
func (s *Store) Delete(sha256Hex string) error {
	return os.Remove(s.BlobPath(sha256Hex))
}

// ArtifactPath returns a path under artifacts/ for a raw pre-unpack
// download, named by its source filename.
func (s *Store) ArtifactPath(filename string) string {
	return filepath.Join(s.artifactsDir(), filename)
}
