package cmd

import (
	"os"

	"pybun/src/internal/cache"
	"pybun/src/internal/env"
	"pybun/src/internal/index"
	"pybun/src/internal/project"
	"pybun/src/internal/pybundir"
	"pybun/src/internal/python"
	"pybun/src/internal/resolver"
	"pybun/src/internal/runner"
)

// app bundles every long-lived component a command needs, wired once per
// invocation from the current project's manifest plus global flags.
type app struct {
	workDir  string
	cfg      project.Config
	cfgPath  string
	dataRoot string

	store      *cache.Store
	downloader *cache.Downloader
	index      *index.Client
	resolver   *resolver.Resolver
	envs       *env.Manager
	interp     python.Interpreter
}

// newApp loads the project manifest in the current directory (creating a
// default one if absent) and wires every component against it, the same
// cache.Store/index.Client/resolver.Resolver/env.Manager triad every command
// shares.
func newApp() (*app, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	cfg, cfgPath, err := project.LoadOrCreate(wd)
	if err != nil {
		return nil, err
	}

	dataRoot := cfg.Cache.GlobalDir
	if dataRoot == "" {
		dataRoot = pybundir.MustHome()
	}

	store, err := cache.New(dataRoot)
	if err != nil {
		return nil, err
	}

	idx := index.New(dataRoot, index.WithOffline(offlineFlag))

	envs, err := env.New(store.EnvsDir())
	if err != nil {
		return nil, err
	}

	interp, _ := discoverInterpreter(wd, cfg)

	return &app{
		workDir:    wd,
		cfg:        cfg,
		cfgPath:    cfgPath,
		dataRoot:   dataRoot,
		store:      store,
		downloader: cache.NewDownloader(store),
		index:      idx,
		resolver:   resolver.New(idx),
		envs:       envs,
		interp:     interp,
	}, nil
}

// discoverInterpreter runs the cached priority chain. A failed lookup is not
// fatal here: callers that actually need an interpreter (run, x) report
// E_ENV_INTERPRETER_MISSING themselves when interp.Path is empty.
func discoverInterpreter(wd string, cfg project.Config) (python.Interpreter, error) {
	envOverride := os.Getenv("PYBUN_PYTHON")
	cachePath := python.CachePath(cfg.Cache.GlobalDir)
	inputsHash := python.HashInputs(wd, envOverride, "")
	return python.DiscoverCached(cachePath, inputsHash, wd, envOverride, "")
}

// save persists the project manifest back to cfgPath, the same
// load-mutate-save round trip every mutating teacher command followed.
func (a *app) save() error {
	return project.Save(a.cfgPath, a.cfg)
}

// runner builds a Runner against this app's wired environment manager and
// discovered interpreter, for the run/x commands.
func (a *app) runner() *runner.Runner {
	return &runner.Runner{
		Envs:       a.envs,
		BaseInterp: a.interp,
		Sandbox: runner.SandboxPolicy{
			Enabled:      a.cfg.Sandbox.Enabled,
			AllowNetwork: a.cfg.Sandbox.AllowNetwork,
		},
		ShimDir: pybundir.ShimDir(),
	}
}
