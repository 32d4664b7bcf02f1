package cache

import (
	"os"
	"path/filepath"
	"sort"

	"pybun/src/internal/telemetry"
)

// BlobInfo is one candidate for eviction: its path, size, and
// last-modification time (the LRU key per spec.md §4.3).
type BlobInfo struct {
	Path    string
	Size    int64
	ModTime int64 // unix seconds
}

// GCReport is GC's output: what was (or, in dry-run, would be) removed.
type GCReport struct {
	DryRun        bool
	TotalBytes    int64
	SizeLimit     int64
	Removed       []BlobInfo
	BytesReclaimed int64
}

// GC enforces a byte budget over packages/ by evicting least-recently-used
// blobs (by mtime) until the store is under sizeLimit. dryRun reports
// candidates without deleting. Empty directories are swept afterward,
// mirroring the teacher's filepath.Walk traversal in internal/core/snapshot.go
// generalized from zipping to scanning+deleting.
func (s *Store) GC(sizeLimit int64, dryRun bool) (GCReport, error) {
	done := telemetry.StartSpan("cache.gc", "size_limit", sizeLimit, "dry_run", dryRun)

	var blobs []BlobInfo
	var total int64
	err := filepath.Walk(s.packagesDir(), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if filepath.Ext(path) == ".tmp" {
			return nil
		}
		blobs = append(blobs, BlobInfo{Path: path, Size: info.Size(), ModTime: info.ModTime().Unix()})
		total += info.Size()
		return nil
	})
	if err != nil {
		done("status", "error", "error", err.Error())
		return GCReport{}, err
	}

	report := GCReport{DryRun: dryRun, TotalBytes: total, SizeLimit: sizeLimit}
	if total <= sizeLimit {
		done("status", "ok", "removed", 0, "total_bytes", total)
		return report, nil
	}

	// Oldest mtime first: the LRU victims.
	sort.Slice(blobs, func(i, j int) bool { return blobs[i].ModTime < blobs[j].ModTime })

	remaining := total
	for _, b := range blobs {
		if remaining <= sizeLimit {
			break
		}
		report.Removed = append(report.Removed, b)
		report.BytesReclaimed += b.Size
		remaining -= b.Size
		if !dryRun {
			if err := os.Remove(b.Path); err != nil {
				done("status", "error", "error", err.Error())
				return report, err
			}
		}
	}

	if !dryRun {
		s.sweepEmptyDirs()
	}

	done("status", "ok", "removed", len(report.Removed), "bytes_reclaimed", report.BytesReclaimed)
	return report, nil
}

// sweepEmptyDirs removes now-empty sharding directories left behind by GC.
func (s *Store) sweepEmptyDirs() {
	entries, err := os.ReadDir(s.packagesDir())
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(s.packagesDir(), e.Name())
		inner, err := os.ReadDir(dir)
		if err == nil && len(inner) == 0 {
			_ = os.Remove(dir)
		}
	}
}
