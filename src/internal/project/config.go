// Package project reads and writes pybun's project manifest (pybun.toml),
// the declared-dependency half of the data model in spec.md §3.
package project

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest's on-disk name, grounded on the teacher's
// xe.toml convention.
const FileName = "pybun.toml"

type Config struct {
	Project   ProjectConfig     `toml:"project"`
	Python    PythonConfig      `toml:"python"`
	Deps      map[string]string `toml:"deps"`
	Cache     CacheConfig       `toml:"cache"`
	Sandbox   SandboxConfig     `toml:"sandbox"`
	Workspace WorkspaceConfig   `toml:"workspace"`
}

type ProjectConfig struct {
	Name string `toml:"name"`
}

type PythonConfig struct {
	Version string `toml:"version"`
}

type CacheConfig struct {
	Mode      string `toml:"mode"`
	GlobalDir string `toml:"global_dir"`
}

type SandboxConfig struct {
	Enabled      bool `toml:"enabled"`
	AllowNetwork bool `toml:"allow_network"`
}

// WorkspaceConfig declares sibling project directories aggregated by
// src/internal/workspace (spec.md §4.9).
type WorkspaceConfig struct {
	Members []string `toml:"members"`
}

func NewDefault(projectDir string) Config {
	return Config{
		Project: ProjectConfig{Name: filepath.Base(projectDir)},
		Python:  PythonConfig{Version: "3.12"},
		Deps:    map[string]string{},
		Cache: CacheConfig{
			Mode:      "global-cas",
			GlobalDir: defaultGlobalCacheDir(),
		},
	}
}

func LoadOrCreate(projectDir string) (Config, string, error) {
	path := filepath.Join(projectDir, FileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := NewDefault(projectDir)
		if err := Save(path, cfg); err != nil {
			return Config{}, "", err
		}
		return cfg, path, nil
	}
	cfg, err := Load(path)
	return cfg, path, err
}

func Load(path string) (Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func Save(path string, cfg Config) error {
	applyDefaults(&cfg)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Deps == nil {
		cfg.Deps = map[string]string{}
	}
	if cfg.Cache.Mode == "" {
		cfg.Cache.Mode = "global-cas"
	}
	if cfg.Cache.GlobalDir == "" {
		cfg.Cache.GlobalDir = defaultGlobalCacheDir()
	}
	if cfg.Python.Version == "" {
		cfg.Python.Version = "3.12"
	}
}

func defaultGlobalCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pybun-cache"
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(home, "AppData", "Local", "pybun", "cache")
	}
	return filepath.Join(home, ".cache", "pybun")
}

// NormalizeDepName lowercases and dash-normalizes a package name the way
// spec.md §3's PackageName value type requires ("normalized lowercase
// identifier").
func NormalizeDepName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(name, "_", "-"), ".", "-"))
}

// RequirementToDepName extracts the bare package name from a requirement
// string such as "foo[extra]>=1,<2" or "foo==1.0.0".
func RequirementToDepName(requirement string) string {
	name := strings.TrimSpace(requirement)
	if name == "" {
		return ""
	}
	if idx := strings.Index(name, "["); idx >= 0 {
		name = name[:idx]
	}
	if idx := strings.IndexAny(name, " <>=!~;"); idx >= 0 {
		name = name[:idx]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return NormalizeDepName(name)
}
