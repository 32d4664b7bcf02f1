package cmd

import (
	"context"
	"encoding/json"
	"path/filepath"
	"runtime"

	"pybun/src/internal/diagnostics"
	"pybun/src/internal/envelope"
	"pybun/src/internal/lockfile"
	"pybun/src/internal/project"
	"pybun/src/internal/resolver"
	"pybun/src/internal/runner"
)

// rpcBackend implements rpc.Backend by driving the same app wiring and
// shared helpers (resolveAndDownload, a.runner()) the CLI commands use, so
// `pybun mcp serve` exposes exactly the operations the CLI does rather than
// a parallel implementation.
type rpcBackend struct{}

type resolveArgs struct {
	Requirements []string `json:"requirements"`
}

type installArgs struct {
	Requirements []string `json:"requirements"`
	Lock         bool     `json:"lock"`
}

type runArgs struct {
	Path   string   `json:"path"`
	Inline bool     `json:"inline"`
	Code   string   `json:"code"`
	Args   []string `json:"args"`
}

type gcArgs struct {
	MaxSize int64 `json:"max_size"`
	DryRun  bool  `json:"dry_run"`
}

func (b *rpcBackend) Resolve(ctx context.Context, arguments json.RawMessage) (envelope.Envelope, error) {
	var args resolveArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return envelope.Envelope{}, err
	}

	a, err := newApp()
	if err != nil {
		return envelope.Envelope{}, err
	}

	c := envelope.New("rpc.resolve", traceID())
	c.Emit(envelope.KindCommandStart, map[string]any{"requirements": len(args.Requirements)})

	roots := requirementRoots(a.cfg, args.Requirements)
	c.Emit(envelope.KindResolveStart, map[string]any{"roots": len(roots)})
	set, err := a.resolver.Resolve(ctx, roots, c)
	if err != nil {
		return finishResolveFailure(c, err), nil
	}
	c.Emit(envelope.KindResolveComplete, map[string]any{"packages": len(set.Packages)})

	return c.Finish(envelope.StatusOK, map[string]any{"packages": len(set.Packages)}), nil
}

func (b *rpcBackend) Install(ctx context.Context, arguments json.RawMessage) (envelope.Envelope, error) {
	var args installArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return envelope.Envelope{}, err
	}

	a, err := newApp()
	if err != nil {
		return envelope.Envelope{}, err
	}

	c := envelope.New("rpc.install", traceID())
	c.Emit(envelope.KindCommandStart, map[string]any{"requested": len(args.Requirements)})

	roots := requirementRoots(a.cfg, args.Requirements)
	set, ok := rpcResolveAndDownload(ctx, a, c, roots)
	if !ok {
		return c.Finish(envelope.StatusError, nil), nil
	}

	for _, p := range set.Packages {
		a.cfg.Deps[project.NormalizeDepName(p.Name)] = "==" + p.Version
	}
	if err := a.save(); err != nil {
		c.Diagnose(diagnostics.New(envelope.DiagIO, diagnostics.CodeInstallIO, "failed to persist pybun.toml", err))
		return c.Finish(envelope.StatusError, nil), nil
	}
	if args.Lock {
		lock := lockfile.FromResolvedSet(set, a.cfg.Python.Version, []string{runtime.GOOS + "/" + runtime.GOARCH}, "")
		if err := lock.Save(filepath.Join(a.workDir, "pybun.lock")); err != nil {
			c.Diagnose(diagnostics.New(envelope.DiagIO, diagnostics.CodeInstallIO, "failed to write lockfile", err))
			return c.Finish(envelope.StatusError, nil), nil
		}
	}

	return c.Finish(envelope.StatusOK, map[string]any{"packages": len(set.Packages)}), nil
}

func (b *rpcBackend) Run(ctx context.Context, arguments json.RawMessage) (envelope.Envelope, error) {
	var args runArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return envelope.Envelope{}, err
	}

	a, err := newApp()
	if err != nil {
		return envelope.Envelope{}, err
	}

	script := runner.Script{Path: args.Path, Inline: args.Inline, InlineCode: args.Code, Args: args.Args}
	c := envelope.New("rpc.run", traceID())
	code, runErr := a.runner().Run(script, c)
	status := envelope.StatusOK
	if runErr != nil || code != 0 {
		status = envelope.StatusError
	}
	return c.Finish(status, map[string]any{"exit_code": code}), nil
}

func (b *rpcBackend) GC(ctx context.Context, arguments json.RawMessage) (envelope.Envelope, error) {
	var args gcArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return envelope.Envelope{}, err
	}
	if args.MaxSize == 0 {
		args.MaxSize = 5 * 1 << 30
	}

	a, err := newApp()
	if err != nil {
		return envelope.Envelope{}, err
	}

	c := envelope.New("rpc.gc", traceID())
	c.Emit(envelope.KindGCStart, map[string]any{"max_size": args.MaxSize, "dry_run": args.DryRun})
	report, err := a.store.GC(args.MaxSize, args.DryRun)
	if err != nil {
		c.Diagnose(diagnostics.New(envelope.DiagIO, diagnostics.CodeInstallIO, "gc failed", err))
		return c.Finish(envelope.StatusError, nil), nil
	}
	c.Emit(envelope.KindGCComplete, map[string]any{"removed": len(report.Removed), "bytes_reclaimed": report.BytesReclaimed})
	return c.Finish(envelope.StatusOK, report), nil
}

func (b *rpcBackend) Doctor(ctx context.Context, arguments json.RawMessage) (envelope.Envelope, error) {
	a, err := newApp()
	if err != nil {
		return envelope.Envelope{}, err
	}

	c := envelope.New("rpc.doctor", traceID())
	checks := map[string]any{}
	if a.interp.Path == "" {
		c.Diagnose(diagnostics.New(envelope.DiagEnv, diagnostics.CodeEnvInterpreter, "no python interpreter found on the priority chain", nil))
		checks["interpreter"] = "missing"
	} else {
		checks["interpreter"] = map[string]string{"path": a.interp.Path, "source": a.interp.Source}
	}

	status := envelope.StatusOK
	if c.HasDiagnostics() {
		status = envelope.StatusError
	}
	return c.Finish(status, checks), nil
}

func (b *rpcBackend) CacheInfo(ctx context.Context) (map[string]any, error) {
	a, err := newApp()
	if err != nil {
		return nil, err
	}
	// A dry-run GC with an unreachable size limit reports the store's
	// current footprint without evicting anything.
	report, err := a.store.GC(1<<62, true)
	if err != nil {
		return nil, err
	}
	return map[string]any{"bytes": report.TotalBytes, "root": a.dataRoot}, nil
}

func (b *rpcBackend) EnvInfo(ctx context.Context) (map[string]any, error) {
	a, err := newApp()
	if err != nil {
		return nil, err
	}
	envs, err := a.envs.List()
	if err != nil {
		return nil, err
	}
	return map[string]any{"count": len(envs), "environments": envs}, nil
}

// rpcResolveAndDownload mirrors resolveAndDownload but returns instead of
// calling os.Exit via emitEnvelope — the RPC surface reports failures back
// over the wire rather than terminating the server process.
func rpcResolveAndDownload(ctx context.Context, a *app, c *envelope.Collector, roots []string) (resolver.ResolvedSet, bool) {
	c.Emit(envelope.KindResolveStart, map[string]any{"roots": len(roots)})
	set, err := a.resolver.Resolve(ctx, roots, c)
	if err != nil {
		finishResolveFailure(c, err)
		return resolver.ResolvedSet{}, false
	}
	c.Emit(envelope.KindResolveComplete, map[string]any{"packages": len(set.Packages)})

	c.Emit(envelope.KindInstallStart, map[string]any{"packages": len(set.Packages)})
	jobs := downloadJobsFor(a, set)
	results := a.downloader.RunAll(ctx, jobs, c)
	for _, r := range results {
		if r.Err != nil {
			c.Diagnose(diagnostics.New(envelope.DiagInstall, diagnostics.CodeInstallIO, "failed to fetch "+r.Job.PackageName, r.Err))
			return resolver.ResolvedSet{}, false
		}
	}
	c.Emit(envelope.KindInstallComplete, map[string]any{"packages": len(set.Packages)})
	return set, true
}
