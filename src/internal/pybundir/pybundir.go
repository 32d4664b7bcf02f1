// Package pybundir locates pybun's on-disk data root and its subdirectories.
package pybundir

import (
	"os"
	"path/filepath"
	"runtime"
)

const envOverride = "PYBUN_HOME"

// Home returns the data root: $PYBUN_HOME if set, otherwise a platform
// default under the user's home directory.
func Home() (string, error) {
	if dir := os.Getenv(envOverride); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if runtime.GOOS == "windows" {
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "pybun"), nil
		}
		return filepath.Join(home, "AppData", "Local", "pybun"), nil
	}
	return filepath.Join(home, ".local", "share", "pybun"), nil
}

// MustHome returns Home, falling back to a relative directory on error.
func MustHome() string {
	home, err := Home()
	if err != nil {
		return "pybun-data"
	}
	return home
}

func ConfigFile() string   { return filepath.Join(MustHome(), "config.yaml") }
func CacheDir() string     { return filepath.Join(MustHome(), "cache") }
func EnvsDir() string      { return filepath.Join(MustHome(), "envs") }
func ShimDir() string      { return filepath.Join(MustHome(), "bin") }
func ProfilesDir() string  { return filepath.Join(MustHome(), "profiles") }
func RuntimeFile() string  { return filepath.Join(MustHome(), "runtime.json") }
func CredentialFile() string { return filepath.Join(MustHome(), "credentials") }

func Ensure() error {
	return os.MkdirAll(MustHome(), 0755)
}
