package cmd

import (
	"sort"
	"testing"

	"pybun/src/internal/project"
)

func TestRequirementRootsMergesManifestAndOverrides(t *testing.T) {
	cfg := project.Config{Deps: map[string]string{
		"requests": ">=2.0",
		"flask":    "*",
	}}

	roots := requirementRoots(cfg, []string{"requests==2.31.0", "celery>=5.0"})
	sort.Strings(roots)

	want := []string{"celery>=5.0", "flask", "requests==2.31.0"}
	if len(roots) != len(want) {
		t.Fatalf("roots = %v, want %v", roots, want)
	}
	for i, w := range want {
		if roots[i] != w {
			t.Errorf("roots[%d] = %q, want %q", i, roots[i], w)
		}
	}
}

func TestRequirementRootsNoOverrides(t *testing.T) {
	cfg := project.Config{Deps: map[string]string{"requests": ">=2.0"}}
	roots := requirementRoots(cfg, nil)
	if len(roots) != 1 || roots[0] != "requests>=2.0" {
		t.Fatalf("roots = %v, want [requests>=2.0]", roots)
	}
}
