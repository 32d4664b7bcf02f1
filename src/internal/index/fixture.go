package index

import (
	"encoding/json"
	"os"
)

// WriteFixture serializes a set of packages to the JSON shape loadFixture
// expects, keyed by normalized package name. Used by tests to seed a
// reproducible offline index.
func WriteFixture(path string, packages map[string]PackageMetadata) error {
	body, err := json.MarshalIndent(packages, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, body, 0644)
}

// LoadFixtureFile reads a fixture written by WriteFixture without going
// through a Client, for use by tests that want to inspect the raw set.
func LoadFixtureFile(path string) (map[string]PackageMetadata, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var all map[string]PackageMetadata
	if err := json.Unmarshal(body, &all); err != nil {
		return nil, malformed(path, err)
	}
	return all, nil
}
