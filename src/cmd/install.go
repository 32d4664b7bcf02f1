package cmd

import (
	"context"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"pybun/src/internal/cache"
	"pybun/src/internal/diagnostics"
	"pybun/src/internal/envelope"
	"pybun/src/internal/lockfile"
	"pybun/src/internal/project"
	"pybun/src/internal/resolver"
)

var (
	installRequire []string
	installLock    bool
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Resolve the project's dependencies and materialize them into the cache",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fail("install", envelope.DiagIO, diagnostics.CodeInstallIO, "failed to load project", err)
			return
		}
		c := envelope.New("install", traceID())
		c.Emit(envelope.KindCommandStart, map[string]any{"requested": len(installRequire)})

		roots := requirementRoots(a.cfg, installRequire)

		set, ok := resolveAndDownload(cmd, a, c, roots)
		if !ok {
			return
		}

		for _, p := range set.Packages {
			a.cfg.Deps[project.NormalizeDepName(p.Name)] = "==" + p.Version
		}
		if err := a.save(); err != nil {
			c.Diagnose(diagnostics.New(envelope.DiagIO, diagnostics.CodeInstallIO, "failed to persist pybun.toml", err))
			emitEnvelope(c.Finish(envelope.StatusError, nil))
			return
		}

		if installLock {
			lock := lockfile.FromResolvedSet(set, a.cfg.Python.Version, []string{runtime.GOOS + "/" + runtime.GOARCH}, "")
			if err := lock.Save(filepath.Join(a.workDir, "pybun.lock")); err != nil {
				c.Diagnose(diagnostics.New(envelope.DiagIO, diagnostics.CodeInstallIO, "failed to write lockfile", err))
				emitEnvelope(c.Finish(envelope.StatusError, nil))
				return
			}
		}

		c.Emit(envelope.KindCommandEnd, map[string]any{"status": "ok"})
		emitEnvelope(c.Finish(envelope.StatusOK, map[string]any{"packages": len(set.Packages)}))
	},
}

// requirementRoots builds the resolver's top-level requirement list from the
// manifest's declared deps plus any --require overrides, deduplicated by
// normalized name with --require taking precedence.
func requirementRoots(cfg project.Config, extra []string) []string {
	byName := map[string]string{}
	for name, spec := range cfg.Deps {
		norm := project.NormalizeDepName(name)
		if spec == "" || spec == "*" {
			byName[norm] = norm
		} else {
			byName[norm] = norm + spec
		}
	}
	for _, req := range extra {
		name := project.RequirementToDepName(req)
		if name == "" {
			continue
		}
		byName[name] = req
	}
	roots := make([]string, 0, len(byName))
	for _, req := range byName {
		roots = append(roots, req)
	}
	return roots
}

// resolveAndDownload runs resolve then downloads every resolved
// distribution, emitting the full ResolveStart/Complete + InstallStart/
// Complete event sequence into c. On failure it emits the envelope itself
// (ok=false); the caller should just return.
func resolveAndDownload(cmd *cobra.Command, a *app, c *envelope.Collector, roots []string) (resolver.ResolvedSet, bool) {
	c.Emit(envelope.KindResolveStart, map[string]any{"roots": len(roots)})
	set, err := a.resolver.Resolve(cmd.Context(), roots, c)
	if err != nil {
		emitEnvelope(finishResolveFailure(c, err))
		return resolver.ResolvedSet{}, false
	}
	c.Emit(envelope.KindResolveComplete, map[string]any{"packages": len(set.Packages)})

	c.Emit(envelope.KindInstallStart, map[string]any{"packages": len(set.Packages)})
	jobs := downloadJobsFor(a, set)
	results := a.downloader.RunAll(context.Background(), jobs, c)
	for _, r := range results {
		if r.Err != nil {
			c.Diagnose(diagnostics.New(envelope.DiagInstall, diagnostics.CodeInstallIO, "failed to fetch "+r.Job.PackageName, r.Err))
			emitEnvelope(c.Finish(envelope.StatusError, nil))
			return resolver.ResolvedSet{}, false
		}
	}
	c.Emit(envelope.KindInstallComplete, map[string]any{"packages": len(set.Packages)})
	return set, true
}

// downloadJobsFor turns a resolved set into download jobs the cache's
// bounded-concurrency downloader can run in parallel.
func downloadJobsFor(a *app, set resolver.ResolvedSet) []cache.DownloadJob {
	jobs := make([]cache.DownloadJob, 0, len(set.Packages))
	for _, p := range set.Packages {
		jobs = append(jobs, cache.DownloadJob{
			PackageName: p.Name,
			Version:     p.Version,
			URL:         p.Distribution.URL,
			SHA256:      p.Distribution.SHA256,
			Signature:   p.Distribution.Signature,
		})
	}
	return jobs
}

// finishResolveFailure translates a resolver error into the right
// diagnostic and closes out the collector's envelope.
func finishResolveFailure(c *envelope.Collector, err error) envelope.Envelope {
	switch e := err.(type) {
	case *resolver.ConflictError:
		chains := make([]diagnostics.ConflictChain, len(e.Chains))
		copy(chains, e.Chains)
		c.Diagnose(diagnostics.Conflict(e.Package, chains))
	case *resolver.MissingError:
		c.Diagnose(diagnostics.MissingPackage(e.Package, e.Known))
	default:
		c.Diagnose(diagnostics.New(envelope.DiagResolve, diagnostics.CodeResolveConflict, err.Error(), err))
	}
	return c.Finish(envelope.StatusError, nil)
}

func init() {
	installCmd.Flags().StringArrayVar(&installRequire, "require", nil, "additional requirement to resolve and install (repeatable)")
	installCmd.Flags().BoolVar(&installLock, "lock", false, "write pybun.lock alongside the resolved install")
	rootCmd.AddCommand(installCmd)
}
