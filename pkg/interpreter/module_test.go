package interpreter

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mq/engine-go/pkg/ast"
)

func TestLoaderResolvesBareName(t *testing.T) {
	dir := t.TempDir()
	writeModuleFile(t, dir, "util.mq", "def shout(s): upcase(s);\n")

	loader := NewModuleLoader(dir)
	program, err := loader.Load("util")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(program) != 1 {
		t.Fatalf("statements: got %d, want 1", len(program))
	}
	if _, ok := program[0].(*ast.Def); !ok {
		t.Fatalf("got %T, want *ast.Def", program[0])
	}
}

func TestLoaderResolvesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	writeModuleFile(t, dir, "util.mq", "1\n")

	loader := NewModuleLoader()
	if _, err := loader.Load(filepath.Join(dir, "util.mq")); err != nil {
		t.Fatalf("load by path: %v", err)
	}
}

func TestLoaderSearchPathOrder(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeModuleFile(t, first, "util.mq", "1\n")
	writeModuleFile(t, second, "util.mq", "2\n")

	loader := NewModuleLoader(first, second)
	program, err := loader.Load("util")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	lit, ok := program[0].(*ast.Literal)
	if !ok || lit.Num != 1 {
		t.Fatalf("got %#v, want literal from first search path", program[0])
	}
}

func TestLoaderCachesParsedPrograms(t *testing.T) {
	dir := t.TempDir()
	writeModuleFile(t, dir, "util.mq", "1\n")

	loader := NewModuleLoader(dir)
	first, err := loader.Load("util")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// A rewrite after the first load must not be observed.
	writeModuleFile(t, dir, "util.mq", "2\n")
	second, err := loader.Load("util")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !ast.EqualPrograms(first, second) {
		t.Fatalf("cache miss: %#v", second)
	}
}

func TestLoaderExpandsMacrosAtLoadTime(t *testing.T) {
	dir := t.TempDir()
	writeModuleFile(t, dir, "util.mq", "macro twice(x): add(x, x); | def f(a): twice(a);\n")

	loader := NewModuleLoader(dir)
	program, err := loader.Load("util")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, node := range program {
		if _, ok := node.(*ast.Macro); ok {
			t.Fatalf("macro node survived load")
		}
	}
	want := parseProgram(t, "def f(a): add(a, a);")
	if !ast.EqualPrograms(program, want) {
		t.Fatalf("got %#v", program)
	}
}

func TestLoaderMissingModule(t *testing.T) {
	loader := NewModuleLoader(t.TempDir())
	_, err := loader.Load("ghost")
	var modErr *ModuleError
	if !errors.As(err, &modErr) {
		t.Fatalf("got %T: %v", err, err)
	}
	if modErr.Path != "ghost" || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("got %#v", modErr)
	}
}

func TestLoaderParseErrorWrapped(t *testing.T) {
	dir := t.TempDir()
	writeModuleFile(t, dir, "bad.mq", "let = 1\n")

	loader := NewModuleLoader(dir)
	_, err := loader.Load("bad")
	var modErr *ModuleError
	if !errors.As(err, &modErr) {
		t.Fatalf("got %T: %v", err, err)
	}
}

func TestModuleName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"util", "util"},
		{"util.mq", "util"},
		{filepath.Join("a", "b", "util.mq"), "util"},
	}
	for _, tt := range tests {
		if got := ModuleName(tt.in); got != tt.want {
			t.Fatalf("ModuleName(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}
