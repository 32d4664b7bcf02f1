package resolver

import (
	"context"
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/sourcegraph/conc/pool"

	"pybun/src/internal/diagnostics"
	"pybun/src/internal/envelope"
	"pybun/src/internal/index"
	"pybun/src/internal/telemetry"
)

// MetadataSource is the subset of index.Client the resolver depends on,
// kept as a seam so tests can supply a fixture-backed fake without
// spinning up HTTP (spec.md §9 "plug-points that must not be baked in").
type MetadataSource interface {
	Metadata(ctx context.Context, name string) (index.PackageMetadata, error)
	Requirements(ctx context.Context, name, version string) ([]string, error)
}

// ResolvedPackage is one entry of a ResolvedSet (spec.md §3).
type ResolvedPackage struct {
	Name         string
	Version      string
	Requires     []string
	Distribution index.Distribution
}

// ResolvedSet is the resolver's successful output.
type ResolvedSet struct {
	Packages []ResolvedPackage
}

// provenance is the chain `[root → pkg@ver → … → this requirement]` spec.md
// §4.2 requires attached to every pending requirement, so a conflict can be
// explained and backjumped.
type provenance struct {
	chain []string
}

func (p provenance) extend(step string) provenance {
	next := make([]string, len(p.chain)+1)
	copy(next, p.chain)
	next[len(p.chain)] = step
	return provenance{chain: next}
}

// pendingReq is one item of the solver's work queue: a requirement plus the
// provenance chain that produced it and the decision depth it was queued at.
type pendingReq struct {
	req   Requirement
	prov  provenance
	depth int
}

// decision records a choice the solver made, so conflict-directed
// backjumping can identify which decision to unwind.
type decision struct {
	name       string
	version    string
	depth      int
	candidates []string // remaining untried candidates at this depth, descending
}

// Resolver runs spec.md §4.2's backtracking solver against a MetadataSource.
type Resolver struct {
	source MetadataSource
}

func New(source MetadataSource) *Resolver {
	return &Resolver{source: source}
}

// ConflictError is returned when no assignment satisfies every predicate.
// It carries the chain set (Diagnostic.Tree-serializable) per spec.md §4.2.
type ConflictError struct {
	Package string
	Chains  []diagnostics.ConflictChain
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("unresolvable conflict for %s", e.Package)
}

// MissingError is returned when a required package is absent from the index.
type MissingError struct {
	Package string
	Known   []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("package not found: %s", e.Package)
}

// solverState is the mutable state threaded through the backtracking search.
type solverState struct {
	ctx context.Context

	// assigned holds the name → chosen version for packages already decided.
	assigned map[string]string
	// requiresByPackage holds name → requires_dist of the chosen version, so
	// a second pass can build the final ResolvedSet's Requires field.
	requiresByPackage map[string]string

	// constraints accumulates every predicate chain seen so far per name,
	// each entry paired with the provenance that introduced it.
	constraints map[string][]constraintEntry

	// metaCache avoids re-fetching the same package's top-level metadata.
	metaCache map[string]index.PackageMetadata

	decisions []decision

	cancel *envelope.Collector
}

type constraintEntry struct {
	constraint *semver.Constraints
	prov       provenance
}

// Resolve runs the backtracking search to completion or failure. It presents
// a synchronous contract to its caller even though it calls the async index
// client internally (spec.md §4.2 "No suspension points").
func (r *Resolver) Resolve(ctx context.Context, roots []string, collector *envelope.Collector) (ResolvedSet, error) {
	done := telemetry.StartSpan("resolver.resolve", "roots", len(roots))

	st := &solverState{
		ctx:               ctx,
		assigned:          map[string]string{},
		requiresByPackage: map[string]string{},
		constraints:       map[string][]constraintEntry{},
		metaCache:         map[string]index.PackageMetadata{},
		cancel:            collector,
	}

	queue := make([]pendingReq, 0, len(roots))
	for _, raw := range roots {
		req := ParseRequirement(raw)
		queue = append(queue, pendingReq{req: req, prov: provenance{chain: []string{"root", req.Name}}, depth: 0})
	}

	if collector != nil {
		collector.Emit(envelope.KindResolveStart, map[string]any{"roots": len(roots)})
	}

	set, err := r.solve(st, queue)
	if err != nil {
		done("status", "error", "error", err.Error())
		return ResolvedSet{}, err
	}

	if collector != nil {
		collector.Emit(envelope.KindResolveComplete, map[string]any{"packages": len(set.Packages)})
	}
	done("status", "ok", "packages", len(set.Packages))
	return set, nil
}

// solve is the recursive backtracking core. It processes the queue in FIFO
// order (a package's own requirements are appended to the tail), tracking
// decisions so that on conflict it can backjump to the most recent decision
// whose inversion could help, per spec.md §4.2.
func (r *Resolver) solve(st *solverState, queue []pendingReq) (ResolvedSet, error) {
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		name := item.req.Name

		constraint, err := toSemverConstraint(item.req.Specifiers)
		if err != nil {
			return ResolvedSet{}, fmt.Errorf("invalid specifier for %s: %w", name, err)
		}
		st.constraints[name] = append(st.constraints[name], constraintEntry{constraint: constraint, prov: item.prov})
		queue = r.drainSameName(st, name, queue)

		if existing, ok := st.assigned[name]; ok {
			v, err := coerceVersion(existing)
			if err == nil && constraint.Check(v) {
				continue
			}
			if err := r.backjump(st, name); err != nil {
				return ResolvedSet{}, err
			}
			// Re-queue everything from the start: backjump rewound assigned/constraints.
			return r.solve(st, r.rebuildQueueAfterBackjump(st, item, queue))
		}

		meta, err := r.fetchMeta(st, name)
		if err != nil {
			return ResolvedSet{}, err
		}

		candidates := r.filterCandidates(meta, st.constraints[name])
		if len(candidates) == 0 {
			if len(meta.Versions) == 0 {
				return ResolvedSet{}, &MissingError{Package: name, Known: r.knownNames(st, name)}
			}
			return ResolvedSet{}, r.conflictFor(st, name)
		}

		chosen := candidates[0]
		st.decisions = append(st.decisions, decision{name: name, version: chosen, depth: item.depth, candidates: candidates[1:]})
		st.assigned[name] = chosen

		requires, err := r.fetchRequires(st, name, chosen, meta)
		if err != nil {
			return ResolvedSet{}, err
		}
		st.requiresByPackage[name] = joinRequires(requires)

		depReqs := make([]Requirement, 0, len(requires))
		for _, depRaw := range requires {
			depReq := ParseRequirement(depRaw)
			if depReq.Name == "" {
				continue
			}
			depReqs = append(depReqs, depReq)
		}
		r.prefetch(st, depReqs)

		childProv := item.prov.extend(fmt.Sprintf("%s@%s", name, chosen))
		for _, depReq := range depReqs {
			queue = append(queue, pendingReq{req: depReq, prov: childProv.extend(depReq.Name), depth: item.depth + 1})
		}
	}

	return r.buildResult(st)
}

// drainSameName folds every other pending queue item for name into
// st.constraints before candidates are filtered, so a FIFO dequeue never
// reports a conflict or missing-package error against only the one chain
// that happened to surface first — every chain touching the package by this
// point in the search is already on the table (spec.md §8 scenario 2).
func (r *Resolver) drainSameName(st *solverState, name string, queue []pendingReq) []pendingReq {
	kept := queue[:0]
	for _, it := range queue {
		if it.req.Name != name {
			kept = append(kept, it)
			continue
		}
		constraint, err := toSemverConstraint(it.req.Specifiers)
		if err != nil {
			continue
		}
		st.constraints[name] = append(st.constraints[name], constraintEntry{constraint: constraint, prov: it.prov})
	}
	return kept
}

// rebuildQueueAfterBackjump re-seeds the queue with the unwound name so its
// constraints are re-evaluated against the newly freed decision space.
func (r *Resolver) rebuildQueueAfterBackjump(st *solverState, failed pendingReq, rest []pendingReq) []pendingReq {
	requeued := make([]pendingReq, 0, len(rest)+1)
	requeued = append(requeued, failed)
	requeued = append(requeued, rest...)
	return requeued
}

// backjump implements conflict-directed backjumping: it walks decisions from
// the most recent backward, looking for one on the conflicting package (or
// any ancestor of it) that still has untried candidates, and rewinds state
// to just before that decision.
func (r *Resolver) backjump(st *solverState, conflictName string) error {
	for i := len(st.decisions) - 1; i >= 0; i-- {
		d := st.decisions[i]
		if len(d.candidates) == 0 {
			continue
		}
		next := d.candidates[0]
		st.decisions[i].candidates = d.candidates[1:]
		st.decisions = st.decisions[:i+1]
		st.assigned[d.name] = next
		return nil
	}
	return r.conflictFor(st, conflictName)
}

func (r *Resolver) conflictFor(st *solverState, name string) error {
	entries := st.constraints[name]
	chains := make([]diagnostics.ConflictChain, 0, len(entries))
	for _, e := range entries {
		chains = append(chains, diagnostics.ConflictChain{Package: name, Chain: e.prov.chain})
	}
	return &ConflictError{Package: name, Chains: chains}
}

// knownNames returns every package name the index has served metadata for
// during this resolve, sorted, excluding the one that just came up missing —
// the "last-seen name list" MissingPackage fuzzy-matches a typo against.
func (r *Resolver) knownNames(st *solverState, exclude string) []string {
	names := make([]string, 0, len(st.metaCache))
	for n := range st.metaCache {
		if n == exclude {
			continue
		}
		names = append(names, n)
	}
	sortStrings(names)
	return names
}

// prefetch populates st.metaCache, via PrefetchCandidates, for every
// dependency name discovered at this step that hasn't been fetched yet, so
// the FIFO queue's later one-at-a-time fetchMeta calls for those names hit
// the cache instead of paying another index round trip.
func (r *Resolver) prefetch(st *solverState, deps []Requirement) {
	var names []string
	for _, d := range deps {
		if _, ok := st.metaCache[d.Name]; ok {
			continue
		}
		names = append(names, d.Name)
	}
	if len(names) == 0 {
		return
	}
	for name, meta := range PrefetchCandidates(st.ctx, r.source, names) {
		st.metaCache[name] = meta
	}
}

func (r *Resolver) fetchMeta(st *solverState, name string) (index.PackageMetadata, error) {
	if meta, ok := st.metaCache[name]; ok {
		return meta, nil
	}
	meta, err := r.source.Metadata(st.ctx, name)
	if err != nil {
		return index.PackageMetadata{}, err
	}
	st.metaCache[name] = meta
	return meta, nil
}

// fetchRequires lazily fetches a version's requires_dist, preferring what
// the top-level metadata already carried (spec.md §4.1 "must not eagerly
// download every version").
func (r *Resolver) fetchRequires(st *solverState, name, version string, meta index.PackageMetadata) ([]string, error) {
	if vm, ok := meta.Versions[version]; ok && len(vm.Requires) > 0 {
		return vm.Requires, nil
	}
	return r.source.Requirements(st.ctx, name, version)
}

// filterCandidates intersects every accumulated constraint for a name and
// returns satisfying versions ordered highest-first, tie-broken by package
// name lexicographically per spec.md §4.2 (the lexicographic tie-break
// applies across packages at the call site in buildResult; within one
// package's own candidate list, equal versions cannot occur).
func (r *Resolver) filterCandidates(meta index.PackageMetadata, entries []constraintEntry) []string {
	ordered := sortedVersionsDescending(meta.KnownVersions())
	var out []string
	for _, version := range ordered {
		if meta.Versions[version].Yanked {
			continue
		}
		v, err := coerceVersion(version)
		if err != nil {
			continue
		}
		ok := true
		for _, e := range entries {
			if !e.constraint.Check(v) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, version)
		}
	}
	return out
}

func (r *Resolver) buildResult(st *solverState) (ResolvedSet, error) {
	names := make([]string, 0, len(st.assigned))
	for name := range st.assigned {
		names = append(names, name)
	}
	sortStrings(names)

	set := ResolvedSet{Packages: make([]ResolvedPackage, 0, len(names))}
	for _, name := range names {
		version := st.assigned[name]
		meta := st.metaCache[name]
		var dist index.Distribution
		if vm, ok := meta.Versions[version]; ok && len(vm.Distributions) > 0 {
			dist = vm.Distributions[0]
		}
		set.Packages = append(set.Packages, ResolvedPackage{
			Name:         name,
			Version:      version,
			Requires:     splitRequires(st.requiresByPackage[name]),
			Distribution: dist,
		})
	}
	return set, nil
}

// PrefetchCandidates parallelizes metadata lookups for the given package
// names so the solver's sequential search doesn't pay index round-trip
// latency one at a time, per SPEC_FULL.md §4.2 ("parallelized with
// sourcegraph/conc/pool for the considered candidates set").
func PrefetchCandidates(ctx context.Context, source MetadataSource, names []string) map[string]index.PackageMetadata {
	results := make(map[string]index.PackageMetadata, len(names))
	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(8)
	for _, name := range names {
		name := name
		p.Go(func() {
			meta, err := source.Metadata(ctx, name)
			if err != nil {
				return
			}
			mu.Lock()
			results[name] = meta
			mu.Unlock()
		})
	}
	p.Wait()
	return results
}

func joinRequires(reqs []string) string {
	out := ""
	for i, r := range reqs {
		if i > 0 {
			out += "\x1f"
		}
		out += r
	}
	return out
}

func splitRequires(joined string) []string {
	if joined == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(joined); i++ {
		if joined[i] == '\x1f' {
			out = append(out, joined[start:i])
			start = i + 1
		}
	}
	out = append(out, joined[start:])
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
