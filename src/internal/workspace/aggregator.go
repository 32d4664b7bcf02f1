// Package workspace implements spec.md §4.9's monorepo aggregation: load
// every member's manifest, union and dedupe their declared dependencies into
// one requirement list, and surface predicate conflicts between members
// before a single resolution is attempted. Grounded on the teacher's
// cmd/workspace.go, which only printed placeholder strings for "init" and
// "add" — this package is the real logic behind those commands.
package workspace

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"pybun/src/internal/project"
	"pybun/src/internal/resolver"
)

// Member is one workspace project: its directory, manifest, and the path
// the manifest was loaded from.
type Member struct {
	Dir      string
	Config   project.Config
	TOMLPath string
}

// Workspace is a root project plus its declared member directories.
type Workspace struct {
	Root    string
	Members []Member
}

// MemberConflict describes two members declaring version specifiers for the
// same dependency name whose ranges don't overlap at all.
type MemberConflict struct {
	Package    string
	Specifiers map[string]string // member name -> specifier it declared
}

func (c MemberConflict) Error() string {
	return fmt.Sprintf("workspace members disagree on %q: %v", c.Package, c.Specifiers)
}

// Load reads rootDir's manifest and every directory named in its
// workspace.members list, relative to rootDir.
func Load(rootDir string) (Workspace, error) {
	rootCfg, _, err := project.LoadOrCreate(rootDir)
	if err != nil {
		return Workspace{}, fmt.Errorf("loading root manifest: %w", err)
	}

	ws := Workspace{Root: rootDir}
	for _, rel := range rootCfg.Workspace.Members {
		dir := filepath.Join(rootDir, rel)
		cfg, tomlPath, err := project.LoadOrCreate(dir)
		if err != nil {
			return Workspace{}, fmt.Errorf("loading member %q: %w", rel, err)
		}
		ws.Members = append(ws.Members, Member{Dir: dir, Config: cfg, TOMLPath: tomlPath})
	}
	return ws, nil
}

// AddMember appends a member directory to the root manifest's
// workspace.members list (idempotent: re-adding an existing member is a
// no-op) and persists it.
func AddMember(rootDir, memberDir string) error {
	cfg, tomlPath, err := project.LoadOrCreate(rootDir)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(rootDir, memberDir)
	if err != nil {
		rel = memberDir
	}
	for _, existing := range cfg.Workspace.Members {
		if existing == rel {
			return nil
		}
	}
	cfg.Workspace.Members = append(cfg.Workspace.Members, rel)
	sort.Strings(cfg.Workspace.Members)
	return project.Save(tomlPath, cfg)
}

type declaredSpec struct {
	owner string
	spec  string
}

// UnionRequirements merges every member's (and the root's) deps map into one
// deduplicated requirement list, suitable as resolver.Resolve's roots
// argument. Each entry is "name<specifier>" when a specifier is declared, or
// bare "name" otherwise.
//
// Members declaring the same specifier for a package pass it through
// unchanged. Members declaring different specifiers have their ranges
// intersected (spec.md §4.9's "single resolution" starts from what every
// member can actually agree to) and only raise MemberConflict when that
// intersection is genuinely empty — "requests>=2.0" and "requests<3.0" merge
// into ">=2.0.0,<3.0.0" rather than failing outright.
func (w Workspace) UnionRequirements(rootDeps map[string]string) ([]string, error) {
	bySpec := map[string][]declaredSpec{}

	record := func(owner string, deps map[string]string) {
		for name, spec := range deps {
			norm := project.NormalizeDepName(name)
			bySpec[norm] = append(bySpec[norm], declaredSpec{owner: owner, spec: spec})
		}
	}

	record("<root>", rootDeps)
	for _, m := range w.Members {
		record(m.Config.Project.Name, m.Config.Deps)
	}

	names := make([]string, 0, len(bySpec))
	for name := range bySpec {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		declared := bySpec[name]
		spec, err := resolveSpecifier(declared)
		if err != nil {
			specs := make(map[string]string, len(declared))
			for _, d := range declared {
				specs[d.owner] = d.spec
			}
			return nil, MemberConflict{Package: name, Specifiers: specs}
		}
		if spec == "" || spec == "*" {
			out = append(out, name)
			continue
		}
		out = append(out, name+spec)
	}
	return out, nil
}

// resolveSpecifier returns the one specifier every member's declaration for
// a package resolves to. Identical declarations pass through untouched;
// differing ones go through mergeSpecifiers for a real range intersection.
func resolveSpecifier(declared []declaredSpec) (string, error) {
	first := declared[0].spec
	for _, d := range declared[1:] {
		if d.spec != first {
			return mergeSpecifiers(declared)
		}
	}
	return first, nil
}

// inequality is one bound parsed out of a specifier string.
type inequality struct {
	op  string // ">=", ">", "<=", "<", "=="
	ver *semver.Version
}

// mergeSpecifiers intersects every member's declared specifier for one
// package into a single constraint string. It only understands the plain
// inequality operators (>=, >, <=, <, ==); a specifier using anything else
// (~=, !=, a wildcard) is carried through as an extra predicate when every
// member agrees on its exact text, and treated as a disagreement otherwise,
// matching the conservative behavior this package had before it could
// reason about ranges at all.
func mergeSpecifiers(declared []declaredSpec) (string, error) {
	var lower, upper *inequality
	var eq *semver.Version
	var fallback string
	haveFallback := false

	pickLower := func(cur *inequality, cand inequality) *inequality {
		if cur == nil {
			return &cand
		}
		if cand.ver.GreaterThan(cur.ver) {
			return &cand
		}
		if cand.ver.Equal(cur.ver) && cand.op == ">" && cur.op == ">=" {
			return &cand
		}
		return cur
	}
	pickUpper := func(cur *inequality, cand inequality) *inequality {
		if cur == nil {
			return &cand
		}
		if cand.ver.LessThan(cur.ver) {
			return &cand
		}
		if cand.ver.Equal(cur.ver) && cand.op == "<" && cur.op == "<=" {
			return &cand
		}
		return cur
	}

	for _, d := range declared {
		bounds, ok := parseBounds(d.spec)
		if !ok {
			if haveFallback && fallback != d.spec {
				return "", fmt.Errorf("unparseable specifiers %q and %q disagree", fallback, d.spec)
			}
			fallback = d.spec
			haveFallback = true
			continue
		}
		for _, b := range bounds {
			switch b.op {
			case ">=", ">":
				lower = pickLower(lower, b)
			case "<=", "<":
				upper = pickUpper(upper, b)
			case "==":
				if eq != nil && !eq.Equal(b.ver) {
					return "", fmt.Errorf("conflicting pins %s and %s", eq, b.ver)
				}
				eq = b.ver
			}
		}
	}

	if lower != nil && upper != nil {
		if lower.ver.GreaterThan(upper.ver) {
			return "", fmt.Errorf("empty range %s%s,%s%s", lower.op, lower.ver, upper.op, upper.ver)
		}
		if lower.ver.Equal(upper.ver) && (lower.op != ">=" || upper.op != "<=") {
			return "", fmt.Errorf("empty range %s%s,%s%s", lower.op, lower.ver, upper.op, upper.ver)
		}
	}
	if eq != nil {
		if lower != nil {
			if (lower.op == ">=" && eq.LessThan(lower.ver)) || (lower.op == ">" && !eq.GreaterThan(lower.ver)) {
				return "", fmt.Errorf("pin %s violates lower bound %s%s", eq, lower.op, lower.ver)
			}
		}
		if upper != nil {
			if (upper.op == "<=" && eq.GreaterThan(upper.ver)) || (upper.op == "<" && !eq.LessThan(upper.ver)) {
				return "", fmt.Errorf("pin %s violates upper bound %s%s", eq, upper.op, upper.ver)
			}
		}
	}

	var parts []string
	if eq != nil {
		parts = append(parts, "=="+eq.String())
	} else {
		if lower != nil {
			parts = append(parts, lower.op+lower.ver.String())
		}
		if upper != nil {
			parts = append(parts, upper.op+upper.ver.String())
		}
	}
	if haveFallback {
		parts = append(parts, fallback)
	}
	return strings.Join(parts, ","), nil
}

// parseBounds splits a PEP 440-ish specifier string into the inequalities it
// expresses. ok is false when a specifier uses an operator this function
// doesn't model (~=, !=, a ".*" wildcard), so the caller can fall back to
// treating it as opaque text.
func parseBounds(spec string) (bounds []inequality, ok bool) {
	if spec == "" || spec == "*" {
		return nil, true
	}
	req := resolver.ParseRequirement("x" + spec)
	out := make([]inequality, 0, len(req.Specifiers))
	for _, part := range req.Specifiers {
		op, verStr, found := cutOp(part)
		if !found {
			return nil, false
		}
		v, err := coerceVersion(verStr)
		if err != nil {
			return nil, false
		}
		out = append(out, inequality{op: op, ver: v})
	}
	return out, true
}

func cutOp(part string) (op, verStr string, ok bool) {
	switch {
	case strings.HasPrefix(part, "=="):
		if strings.HasSuffix(part, ".*") {
			return "", "", false
		}
		return "==", strings.TrimSpace(part[2:]), true
	case strings.HasPrefix(part, ">="):
		return ">=", strings.TrimSpace(part[2:]), true
	case strings.HasPrefix(part, "<="):
		return "<=", strings.TrimSpace(part[2:]), true
	case strings.HasPrefix(part, ">"):
		return ">", strings.TrimSpace(part[1:]), true
	case strings.HasPrefix(part, "<"):
		return "<", strings.TrimSpace(part[1:]), true
	default:
		return "", "", false
	}
}

// coerceVersion pads a dotted version like "2.0" into a full semver, the
// same way src/internal/resolver does for PyPI's commonly-sparse releases.
func coerceVersion(raw string) (*semver.Version, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ".")
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	return semver.NewVersion(strings.Join(parts[:3], "."))
}
