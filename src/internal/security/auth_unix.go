//go:build !windows

// Package security stores the index's bearer token outside the project
// manifest (spec.md §4.1's "credentials never live in pybun.toml or the
// lockfile"). Grounded on the teacher's internal/security/auth_linux.go
// file-backed credential store, renamed from a "pypi token" to a single
// index token; it is not keyed by index host.
package security

import (
	"os"

	"pybun/src/internal/pybundir"
)

// SaveToken persists the given index bearer token (as entered at the
// `pybun auth login` prompt) to a 0600 file under the data root, mirroring
// the teacher's credentials file.
func SaveToken(token string) error {
	if err := pybundir.Ensure(); err != nil {
		return err
	}
	return os.WriteFile(pybundir.CredentialFile(), []byte(token), 0600)
}

// GetToken returns the stored index token, or "" if none has been saved.
func GetToken() (string, error) {
	data, err := os.ReadFile(pybundir.CredentialFile())
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RevokeToken deletes the stored token. A missing file is not an error: the
// token is already absent.
func RevokeToken() error {
	err := os.Remove(pybundir.CredentialFile())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
