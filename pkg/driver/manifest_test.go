package driver

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, ManifestFileName)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

const fullManifest = `name: docs-tools
version: v1.2.0
description: shared markdown queries
license: MIT
authors:
  - Alex Doe
main: main.mq
dependencies:
  shared:
    path: ../shared
  queries:
    git: https://example.com/queries.git
    tag: v0.3.0
engine:
  strategy: walker
  max-call-depth: 64
  filter-none: true
  search-paths:
    - lib
`

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, t.TempDir(), fullManifest)
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Name != "docs-tools" || m.Version != "v1.2.0" || m.License != "MIT" {
		t.Fatalf("got %#v", m)
	}
	if len(m.Authors) != 1 || m.Authors[0] != "Alex Doe" {
		t.Fatalf("authors: %v", m.Authors)
	}
	if m.Main != "main.mq" {
		t.Fatalf("main: %q", m.Main)
	}
	if m.Engine.Strategy != StrategyWalker || m.Engine.MaxCallDepth != 64 || !m.Engine.FilterNone {
		t.Fatalf("engine: %#v", m.Engine)
	}
	if len(m.Engine.SearchPaths) != 1 || m.Engine.SearchPaths[0] != "lib" {
		t.Fatalf("search paths: %v", m.Engine.SearchPaths)
	}

	shared, ok := m.Dependencies["shared"]
	if !ok || shared.Path != "../shared" {
		t.Fatalf("shared dependency: %#v", shared)
	}
	queries, ok := m.Dependencies["queries"]
	if !ok || queries.Git != "https://example.com/queries.git" || queries.Tag != "v0.3.0" {
		t.Fatalf("queries dependency: %#v", queries)
	}

	if m.Dir() != filepath.Dir(path) {
		t.Fatalf("dir: got %q", m.Dir())
	}
}

func TestLoadManifestMinimal(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "name: tiny\n")
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Name != "tiny" || len(m.Dependencies) != 0 {
		t.Fatalf("got %#v", m)
	}
}

func TestLoadManifestScalarAuthor(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "name: tiny\nauthors: Solo Author\n")
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(m.Authors) != 1 || m.Authors[0] != "Solo Author" {
		t.Fatalf("authors: %v", m.Authors)
	}
}

func TestLoadManifestRejectsUnknownFields(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "name: tiny\nunexpected: field\n")
	if _, err := LoadManifest(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadManifestEmptyFile(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "")
	if _, err := LoadManifest(path); err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("got %v", err)
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	if _, err := LoadManifest(filepath.Join(t.TempDir(), ManifestFileName)); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestManifestValidationAggregatesIssues(t *testing.T) {
	contents := `name: ""
version: not.a.version!
main: main.txt
engine:
  strategy: jit
  max-call-depth: -1
dependencies:
  broken:
    rev: abc123
`
	path := writeManifest(t, t.TempDir(), contents)
	_, err := LoadManifest(path)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("got %T: %v", err, err)
	}
	wantIssues := []string{
		"name must be provided",
		"invalid version",
		"must reference a .mq file",
		"engine.strategy",
		"engine.max-call-depth",
		"dependencies.broken",
	}
	msg := vErr.Error()
	for _, want := range wantIssues {
		if !strings.Contains(msg, want) {
			t.Fatalf("missing issue %q in:\n%s", want, msg)
		}
	}
}

func TestDependencyValidation(t *testing.T) {
	tests := []struct {
		name string
		spec DependencySpec
		want string
	}{
		{"path and git", DependencySpec{Path: "x", Git: "y", Rev: "r"}, "cannot also specify"},
		{"rev without git", DependencySpec{Path: "x", Rev: "r"}, "apply only to git"},
		{"git without pin", DependencySpec{Git: "y"}, "require rev, tag, or branch"},
		{"no source", DependencySpec{Version: "v1"}, "must specify git or path"},
	}
	for _, tt := range tests {
		issues := tt.spec.validate()
		found := false
		for _, issue := range issues {
			if strings.Contains(issue, tt.want) {
				found = true
			}
		}
		if !found {
			t.Fatalf("%s: issues %v do not mention %q", tt.name, issues, tt.want)
		}
	}

	if issues := (&DependencySpec{Git: "y", Branch: "main"}).validate(); len(issues) != 0 {
		t.Fatalf("valid git spec rejected: %v", issues)
	}
	if issues := (&DependencySpec{Path: "../x"}).validate(); len(issues) != 0 {
		t.Fatalf("valid path spec rejected: %v", issues)
	}
}

func TestBareScalarDependencyIsRejected(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "name: tiny\ndependencies:\n  shorthand: v1.0.0\n")
	_, err := LoadManifest(path)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("got %T: %v", err, err)
	}
	if !strings.Contains(vErr.Error(), "dependencies.shorthand") {
		t.Fatalf("got %v", vErr)
	}
}

func TestIsValidVersion(t *testing.T) {
	valid := []string{"1", "1.2", "1.2.3", "v1.2.3", "v0.3.0-rc.1"}
	for _, v := range valid {
		if !isValidVersion(v) {
			t.Fatalf("%q should be valid", v)
		}
	}
	invalid := []string{"", "abc", "not.a.version!"}
	for _, v := range invalid {
		if isValidVersion(v) {
			t.Fatalf("%q should be invalid", v)
		}
	}
}

func TestFindManifestWalksUpward(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "name: tiny\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	found, err := FindManifest(nested)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found != filepath.Join(root, ManifestFileName) {
		t.Fatalf("got %q", found)
	}
}

func TestFindManifestAbsentIsNotAnError(t *testing.T) {
	found, err := FindManifest(t.TempDir())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found != "" {
		t.Fatalf("got %q, want empty", found)
	}
}

func TestSanitizeSegment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"docs-tools", "docs-tools"},
		{"a/b c", "a_b_c"},
		{" v1.2.3 ", "v1.2.3"},
	}
	for _, tt := range tests {
		if got := sanitizeSegment(tt.in); got != tt.want {
			t.Fatalf("sanitizeSegment(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}
