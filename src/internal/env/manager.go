// Package env implements the Environment Manager of spec.md §4.5: isolated
// environment creation keyed by a deterministic creation hash, with a
// rate-limited last_used record. Grounded on the teacher's
// internal/venv/manager.go (Create/Exists/List/Delete/GetPythonExe shape),
// generalized from named venvs under one base dir to hash-keyed envs under
// the cache root's envs/ directory (spec.md §4.3 layout).
package env

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"pybun/src/internal/telemetry"
)

// lastUsedGrace is the rate-limit window of spec.md §4.5: "skip the write
// when the stored value is within one hour".
const lastUsedGrace = time.Hour

// Record is the small on-disk metadata kept alongside each environment.
type Record struct {
	Deps     []string  `json:"deps"`
	LastUsed time.Time `json:"last_used"`
}

// Manager owns the envs/ directory under the cache root.
type Manager struct {
	Root string
}

func New(root string) (*Manager, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	return &Manager{Root: root}, nil
}

// CreationHash implements spec.md §4.5's reuse key:
// hash(sorted(requirements_as_strings)). It hashes the requirement strings
// exactly as the caller passes them (the declared dependencies, not the
// resolved versions), and never the cache blob content hashes; see
// DESIGN.md's "Open Questions resolved".
func CreationHash(requirements []string) string {
	sorted := make([]string, len(requirements))
	copy(sorted, requirements)
	sort.Strings(sorted)
	h := sha256.New()
	for _, r := range sorted {
		h.Write([]byte(r))
		h.Write([]byte("\x00"))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (m *Manager) envDir(hash string) string {
	return filepath.Join(m.Root, hash)
}

func (m *Manager) recordPath(hash string) string {
	return filepath.Join(m.envDir(hash), "deps.json")
}

// Exists reports whether an environment for the given hash is already
// materialized on disk.
func (m *Manager) Exists(hash string) bool {
	_, err := os.Stat(m.recordPath(hash))
	return err == nil
}

// PythonExe returns the environment's interpreter path, following the
// teacher's venv layout (bin/python3 on UNIX, Scripts\python.exe on Windows).
func (m *Manager) PythonExe(hash string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(m.envDir(hash), "Scripts", "python.exe")
	}
	return filepath.Join(m.envDir(hash), "bin", "python3")
}

// Create materializes a fresh isolated environment for hash using
// basePython as the interpreter to bootstrap from (typically via `python -m
// venv`), then records its dependency set. Reuse — the caller must check
// Exists first — is keyed purely by hash, so a cache hit never calls Create.
func (m *Manager) Create(hash string, requirements []string, basePython string) error {
	done := telemetry.StartSpan("env.create", "hash", hash, "deps", len(requirements))

	dir := m.envDir(hash)
	if _, err := os.Stat(dir); err == nil {
		done("status", "error", "error", "already exists")
		return fmt.Errorf("environment %s already exists", hash)
	}

	cmd := exec.Command(basePython, "-m", "venv", dir)
	if err := cmd.Run(); err != nil {
		fallback := exec.Command(basePython, "-m", "virtualenv", dir)
		if ferr := fallback.Run(); ferr != nil {
			done("status", "error", "error", err.Error())
			return fmt.Errorf("failed to create environment: %w (virtualenv fallback: %v)", err, ferr)
		}
	}

	if err := m.writeRecord(hash, Record{Deps: requirements, LastUsed: time.Now()}); err != nil {
		done("status", "error", "error", err.Error())
		return err
	}
	done("status", "ok")
	return nil
}

// Touch updates last_used, skipping the write entirely if the stored value
// is already within lastUsedGrace of now (spec.md §4.5 rate limit).
func (m *Manager) Touch(hash string) error {
	record, err := m.readRecord(hash)
	if err != nil {
		return err
	}
	if time.Since(record.LastUsed) < lastUsedGrace {
		return nil
	}
	record.LastUsed = time.Now()
	return m.writeRecord(hash, record)
}

func (m *Manager) readRecord(hash string) (Record, error) {
	body, err := os.ReadFile(m.recordPath(hash))
	if err != nil {
		return Record{}, err
	}
	var record Record
	if err := json.Unmarshal(body, &record); err != nil {
		return Record{}, err
	}
	return record, nil
}

func (m *Manager) writeRecord(hash string, record Record) error {
	if err := os.MkdirAll(m.envDir(hash), 0755); err != nil {
		return err
	}
	body, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.recordPath(hash), body, 0644)
}

// List returns every environment hash currently materialized.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.Root)
	if err != nil {
		return nil, err
	}
	var hashes []string
	for _, e := range entries {
		if e.IsDir() && len(e.Name()) == 64 && isHex(e.Name()) {
			hashes = append(hashes, e.Name())
		}
	}
	return hashes, nil
}

// Delete removes an environment entirely.
func (m *Manager) Delete(hash string) error {
	return os.RemoveAll(m.envDir(hash))
}

func isHex(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return !(r >= '0' && r <= '9') && !(r >= 'a' && r <= 'f')
	}) < 0
}
