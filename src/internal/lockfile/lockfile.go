// Package lockfile implements spec.md §4.4: a deterministic, round-tripping
// TOML serialization of a resolver.ResolvedSet, grounded on the teacher's
// internal/lockfile/lockfile.go (same toml.DecodeFile/toml.NewEncoder
// shape), generalized from {Python, Platform, Toolchain, Deps, Hashes}
// into the full resolved-set + distribution-hash + manifest-ref schema
// spec.md §3 and §6 require.
package lockfile

import (
	"os"
	"sort"

	"github.com/BurntSushi/toml"

	"pybun/src/internal/index"
	"pybun/src/internal/resolver"
)

// SchemaVersion is bumped whenever the on-disk shape changes in a way that
// breaks round-tripping with an older lockfile.
const SchemaVersion = 1

// Lockfile is the on-disk lock: spec.md §4.4 "schema version, platform tag
// list, per-package selected distribution, hash, and an optional reference
// to a release manifest".
type Lockfile struct {
	Schema    int             `toml:"schema"`
	Platforms []string        `toml:"platforms"`
	Python    string          `toml:"python"`
	Packages  []LockedPackage `toml:"package"`
	ManifestRef string        `toml:"manifest_ref,omitempty"`
}

// LockedPackage is one resolved, distribution-selected entry.
type LockedPackage struct {
	Name         string   `toml:"name"`
	Version      string   `toml:"version"`
	Requires     []string `toml:"requires,omitempty"`
	Distribution string   `toml:"distribution_url"`
	Platform     string   `toml:"platform"`
	Kind         string   `toml:"kind"`
	SHA256       string   `toml:"sha256"`
	Signature    string   `toml:"signature,omitempty"`
}

// FromResolvedSet builds a Lockfile from a resolver output. Packages are
// sorted by name so two identical resolutions encode to byte-identical
// locks (spec.md §4.4 "two identical input resolutions must produce
// byte-identical locks").
func FromResolvedSet(set resolver.ResolvedSet, pythonVersion string, platforms []string, manifestRef string) Lockfile {
	packages := make([]LockedPackage, 0, len(set.Packages))
	for _, p := range set.Packages {
		requires := make([]string, len(p.Requires))
		copy(requires, p.Requires)
		sort.Strings(requires)
		packages = append(packages, LockedPackage{
			Name:         p.Name,
			Version:      p.Version,
			Requires:     requires,
			Distribution: p.Distribution.URL,
			Platform:     p.Distribution.Platform,
			Kind:         p.Distribution.Kind,
			SHA256:       p.Distribution.SHA256,
			Signature:    p.Distribution.Signature,
		})
	}
	sort.Slice(packages, func(i, j int) bool { return packages[i].Name < packages[j].Name })

	sortedPlatforms := make([]string, len(platforms))
	copy(sortedPlatforms, platforms)
	sort.Strings(sortedPlatforms)

	return Lockfile{
		Schema:      SchemaVersion,
		Platforms:   sortedPlatforms,
		Python:      pythonVersion,
		Packages:    packages,
		ManifestRef: manifestRef,
	}
}

// ToResolvedSet reconstructs a resolver.ResolvedSet from the lock, for
// install paths that skip resolution entirely on a lockfile hit.
func (l Lockfile) ToResolvedSet() resolver.ResolvedSet {
	set := resolver.ResolvedSet{Packages: make([]resolver.ResolvedPackage, 0, len(l.Packages))}
	for _, p := range l.Packages {
		set.Packages = append(set.Packages, resolver.ResolvedPackage{
			Name:     p.Name,
			Version:  p.Version,
			Requires: p.Requires,
			Distribution: index.Distribution{
				Platform:  p.Platform,
				Kind:      p.Kind,
				URL:       p.Distribution,
				SHA256:    p.SHA256,
				Signature: p.Signature,
			},
		})
	}
	return set
}

func Load(path string) (Lockfile, error) {
	var lock Lockfile
	_, err := toml.DecodeFile(path, &lock)
	return lock, err
}

func (l Lockfile) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(l)
}
