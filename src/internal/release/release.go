// Package release checks a release manifest for available pybun updates.
// It only reports what's available; it never downloads or installs a new
// binary (spec.md's Non-goals exclude release-signing tooling).
package release

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// CurrentVersion is the running binary's version, baked in at build time in
// a real release; fixed here since this module never ships a release
// pipeline.
const CurrentVersion = "0.1.0"

// DefaultManifestURL is the index's release manifest endpoint, mirroring
// the lockfile's "optional release manifest reference" (spec.md §3).
const DefaultManifestURL = "https://pypi.org/pybun/release-manifest.json"

// Manifest is one channel's published release: the version string, the
// artifact url per platform, and its sha256 for the eventual installer to
// verify before replacing the running binary.
type Manifest struct {
	Channel   string            `json:"channel"`
	Version   string            `json:"version"`
	Artifacts map[string]string `json:"artifacts"` // "GOOS/GOARCH" -> url
	SHA256    map[string]string `json:"sha256"`     // "GOOS/GOARCH" -> hex digest
}

// Check fetches channel's manifest and reports whether it names a version
// newer than CurrentVersion. It never writes to disk.
func Check(manifestURL, channel string) (Manifest, bool, error) {
	if manifestURL == "" {
		manifestURL = DefaultManifestURL
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(manifestURL + "?channel=" + channel)
	if err != nil {
		return Manifest{}, false, fmt.Errorf("fetching release manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Manifest{}, false, fmt.Errorf("release manifest returned status %d", resp.StatusCode)
	}

	var m Manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return Manifest{}, false, fmt.Errorf("decoding release manifest: %w", err)
	}

	var latest, current [3]int
	fmt.Sscanf(m.Version, "%d.%d.%d", &latest[0], &latest[1], &latest[2])
	fmt.Sscanf(CurrentVersion, "%d.%d.%d", &current[0], &current[1], &current[2])
	for i := range latest {
		if latest[i] != current[i] {
			return m, latest[i] > current[i], nil
		}
	}
	return m, false, nil
}
