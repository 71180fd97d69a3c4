package ast_test

import (
	"testing"

	"mq/engine-go/pkg/ast"
	"mq/engine-go/pkg/parser"
)

// Rendered source must parse back to an equivalent program.
func TestToCodeRoundTrip(t *testing.T) {
	sources := []string{
		`42`,
		`"a\nb"`,
		`:sym`,
		`none`,
		`true`,
		`add(1, mul(2, 3))`,
		`.h | upcase?()`,
		`let x = 1 | x`,
		`var x = 1 | x = 2`,
		`if (x > 1): "a" elif (x): "b" else: "c"`,
		`while (x < 3): x`,
		`until (x < 3): x`,
		"foreach (x, array(1, 2)) do\nx\nlen(x)\nend",
		`def scale(v, factor): v * factor;`,
		`try div(1, 0) catch: "fallback"`,
		"match (self) do\n| 0: \"zero\"\n| [a, ..rest] if a: a\n| :number: \"n\"\n| _: \"other\"\nend",
		"module util do\ndef d(x): x\nlet answer = 42\nend",
		`include "util"`,
		`import "util"`,
		`util::answer`,
		`util::shout("hi", 1)`,
		`s"hi ${name} $HOME ${self}"`,
	}
	for _, src := range sources {
		program, err := parser.Parse(src, "test")
		if err != nil {
			t.Fatalf("parse %q: %v", src, err)
		}
		rendered := ast.ProgramToCode(program)
		reparsed, err := parser.Parse(rendered, "test")
		if err != nil {
			t.Fatalf("reparse %q (from %q): %v", rendered, src, err)
		}
		if !ast.EqualPrograms(program, reparsed) {
			t.Fatalf("round trip changed structure:\n source: %s\nrendered: %s", src, rendered)
		}
	}
}

func TestToCodeRendering(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`1 + 2`, `add(1, 2)`},
		{`not(true)`, `not(true)`},
		{`foo?(1)`, `foo?(1)`},
		{`let x = "a"`, `let x = "a"`},
		{`include "util"`, `include "util"`},
	}
	for _, tt := range tests {
		program, err := parser.Parse(tt.src, "test")
		if err != nil {
			t.Fatalf("parse %q: %v", tt.src, err)
		}
		if got := ast.ProgramToCode(program); got != tt.want {
			t.Fatalf("render %q: got %q, want %q", tt.src, got, tt.want)
		}
	}
}
