package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"pybun/src/internal/project"
)

func writeManifest(t *testing.T, dir string, cfg project.Config) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, project.FileName)
	if err := project.Save(path, cfg); err != nil {
		t.Fatalf("save manifest: %v", err)
	}
}

func TestLoadWorkspaceMembers(t *testing.T) {
	root := t.TempDir()
	rootCfg := project.NewDefault(root)
	rootCfg.Workspace.Members = []string{"api", "worker"}
	writeManifest(t, root, rootCfg)

	apiCfg := project.NewDefault(filepath.Join(root, "api"))
	apiCfg.Deps = map[string]string{"requests": ">=2.0"}
	writeManifest(t, filepath.Join(root, "api"), apiCfg)

	workerCfg := project.NewDefault(filepath.Join(root, "worker"))
	workerCfg.Deps = map[string]string{"celery": ">=5.0"}
	writeManifest(t, filepath.Join(root, "worker"), workerCfg)

	ws, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ws.Members) != 2 {
		t.Fatalf("len(Members) = %d, want 2", len(ws.Members))
	}
}

func TestUnionRequirementsDedupes(t *testing.T) {
	ws := Workspace{
		Members: []Member{
			{Config: project.Config{Project: project.ProjectConfig{Name: "api"}, Deps: map[string]string{"requests": ">=2.0"}}},
			{Config: project.Config{Project: project.ProjectConfig{Name: "worker"}, Deps: map[string]string{"requests": ">=2.0", "celery": ">=5.0"}}},
		},
	}
	reqs, err := ws.UnionRequirements(nil)
	if err != nil {
		t.Fatalf("UnionRequirements: %v", err)
	}
	want := []string{"celery>=5.0", "requests>=2.0"}
	if len(reqs) != len(want) {
		t.Fatalf("reqs = %v, want %v", reqs, want)
	}
	for i, w := range want {
		if reqs[i] != w {
			t.Fatalf("reqs[%d] = %q, want %q", i, reqs[i], w)
		}
	}
}

func TestUnionRequirementsDetectsConflict(t *testing.T) {
	ws := Workspace{
		Members: []Member{
			{Config: project.Config{Project: project.ProjectConfig{Name: "api"}, Deps: map[string]string{"requests": ">=2.0"}}},
			{Config: project.Config{Project: project.ProjectConfig{Name: "worker"}, Deps: map[string]string{"requests": "<2.0"}}},
		},
	}
	_, err := ws.UnionRequirements(nil)
	if err == nil {
		t.Fatalf("expected a MemberConflict error")
	}
	conflict, ok := err.(MemberConflict)
	if !ok {
		t.Fatalf("err = %T, want MemberConflict", err)
	}
	if conflict.Package != "requests" {
		t.Fatalf("conflict.Package = %q, want requests", conflict.Package)
	}
}

func TestUnionRequirementsIntersectsCompatibleRanges(t *testing.T) {
	ws := Workspace{
		Members: []Member{
			{Config: project.Config{Project: project.ProjectConfig{Name: "api"}, Deps: map[string]string{"requests": ">=2.0"}}},
			{Config: project.Config{Project: project.ProjectConfig{Name: "worker"}, Deps: map[string]string{"requests": "<3.0"}}},
		},
	}
	reqs, err := ws.UnionRequirements(nil)
	if err != nil {
		t.Fatalf("UnionRequirements: %v", err)
	}
	want := ">=2.0.0,<3.0.0"
	found := false
	for _, r := range reqs {
		if r == "requests"+want {
			found = true
		}
	}
	if !found {
		t.Fatalf("reqs = %v, want an entry \"requests%s\"", reqs, want)
	}
}

func TestAddMemberIsIdempotent(t *testing.T) {
	root := t.TempDir()
	memberDir := filepath.Join(root, "api")
	if err := os.MkdirAll(memberDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := AddMember(root, memberDir); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := AddMember(root, memberDir); err != nil {
		t.Fatalf("AddMember (second call): %v", err)
	}

	cfg, _, err := project.LoadOrCreate(root)
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if len(cfg.Workspace.Members) != 1 {
		t.Fatalf("Members = %v, want exactly one entry", cfg.Workspace.Members)
	}
}
