// Package resolver implements the backtracking dependency solver of
// spec.md §4.2: conflict-directed backjumping over PyPI-style requirement
// strings, grounded on the teacher's internal/resolver/resolver.go (the
// Package shape, parallel-download idiom) and other_examples'
// bilusteknoloji-pipg resolver (requirement parsing, BFS-over-queue
// accumulation, marker filtering), generalized from BFS into proper
// backtracking with provenance per spec.md's stricter algorithm.
package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Requirement is one parsed dependency string such as "foo[extra]>=1,<2".
type Requirement struct {
	Name       string
	Specifiers []string // raw comma-separated predicate strings, e.g. ">=1.0,<2.0"
	Extras     []string
	Marker     string
}

// ParseRequirement splits a PyPI-style requirement string into name,
// version specifiers, extras, and an environment marker. Grounded on
// bilusteknoloji-pipg's ParseRequirement (same split points), simplified
// to the subset spec.md's ResolvedSet actually needs.
func ParseRequirement(raw string) Requirement {
	s := strings.TrimSpace(raw)

	var marker string
	if idx := strings.Index(s, ";"); idx >= 0 {
		marker = strings.TrimSpace(s[idx+1:])
		s = strings.TrimSpace(s[:idx])
	}

	var extras []string
	if start := strings.Index(s, "["); start >= 0 {
		end := strings.Index(s, "]")
		if end > start {
			extraPart := s[start+1 : end]
			for _, e := range strings.Split(extraPart, ",") {
				e = strings.TrimSpace(e)
				if e != "" {
					extras = append(extras, e)
				}
			}
			s = s[:start] + s[end+1:]
		}
	}

	specIdx := strings.IndexAny(s, "<>=!~")
	var name, specPart string
	if specIdx < 0 {
		name = strings.TrimSpace(s)
	} else {
		name = strings.TrimSpace(s[:specIdx])
		specPart = strings.TrimSpace(s[specIdx:])
	}

	var specifiers []string
	if specPart != "" {
		for _, part := range strings.Split(specPart, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				specifiers = append(specifiers, part)
			}
		}
	}

	return Requirement{
		Name:       normalizeName(name),
		Specifiers: specifiers,
		Extras:     extras,
		Marker:     marker,
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(name, "_", "-"), ".", "-"))
}

// toSemverConstraint translates PEP 440-ish specifiers (">=1,<2", "~=1.4",
// "==1.0.0") into a github.com/Masterminds/semver/v3 constraint string.
// "~=X.Y" (compatible release) becomes ">=X.Y,<X+1.0" per PEP 440 semantics.
func toSemverConstraint(specifiers []string) (*semver.Constraints, error) {
	if len(specifiers) == 0 {
		return semver.NewConstraint("*")
	}
	parts := make([]string, 0, len(specifiers))
	for _, spec := range specifiers {
		translated, err := translateOne(spec)
		if err != nil {
			return nil, err
		}
		parts = append(parts, translated)
	}
	return semver.NewConstraint(strings.Join(parts, ","))
}

func translateOne(spec string) (string, error) {
	spec = strings.TrimSpace(spec)
	switch {
	case strings.HasPrefix(spec, "~="):
		base := strings.TrimSpace(spec[2:])
		v, err := coerceVersion(base)
		if err != nil {
			return "", err
		}
		upper := semver.New(v.Major(), v.Minor()+1, 0, "", "")
		if len(strings.Split(base, ".")) <= 2 {
			upper = semver.New(v.Major()+1, 0, 0, "", "")
		}
		return fmt.Sprintf(">=%s,<%s", v.String(), upper.String()), nil
	case strings.HasPrefix(spec, "==="):
		base := strings.TrimSpace(spec[3:])
		v, err := coerceVersion(base)
		if err != nil {
			return "", err
		}
		return "=" + v.String(), nil
	case strings.HasPrefix(spec, "=="):
		base := strings.TrimSpace(strings.TrimSuffix(spec[2:], ".*"))
		v, err := coerceVersion(base)
		if err != nil {
			return "", err
		}
		return "=" + v.String(), nil
	case strings.HasPrefix(spec, "!="):
		base := strings.TrimSpace(spec[2:])
		v, err := coerceVersion(base)
		if err != nil {
			return "", err
		}
		return "!=" + v.String(), nil
	case strings.HasPrefix(spec, ">="):
		return equivPrefixed(spec, ">=")
	case strings.HasPrefix(spec, "<="):
		return equivPrefixed(spec, "<=")
	case strings.HasPrefix(spec, ">"):
		return equivPrefixed(spec, ">")
	case strings.HasPrefix(spec, "<"):
		return equivPrefixed(spec, "<")
	default:
		v, err := coerceVersion(spec)
		if err != nil {
			return "", err
		}
		return "=" + v.String(), nil
	}
}

func equivPrefixed(spec, op string) (string, error) {
	base := strings.TrimSpace(spec[len(op):])
	v, err := coerceVersion(base)
	if err != nil {
		return "", err
	}
	return op + v.String(), nil
}

// coerceVersion pads a dotted version like "3" or "3.1" into a full
// semver so that PyPI's commonly-sparse release numbers parse cleanly.
func coerceVersion(raw string) (*semver.Version, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ".")
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	return semver.NewVersion(strings.Join(parts[:3], "."))
}

// sortedVersionsDescending orders version strings by semver descending,
// falling back to lexicographic descending for anything that fails to
// parse as a coerced semver (spec.md §4.2 "deterministic tie-break").
func sortedVersionsDescending(versions []string) []string {
	out := make([]string, len(versions))
	copy(out, versions)
	sort.Slice(out, func(i, j int) bool {
		vi, erri := coerceVersion(out[i])
		vj, errj := coerceVersion(out[j])
		if erri == nil && errj == nil {
			if !vi.Equal(vj) {
				return vi.GreaterThan(vj)
			}
			return out[i] > out[j]
		}
		return out[i] > out[j]
	})
	return out
}
