package interpreter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"mq/engine-go/pkg/markdown"
	"mq/engine-go/pkg/runtime"
)

// Every behavioral test runs under both strategies so the compiler and
// the tree-walker cannot drift apart.
var strategies = []struct {
	name        string
	useCompiler bool
}{
	{"compiler", true},
	{"walker", false},
}

func newTestEngine(useCompiler bool, mutate ...func(*Options)) *Engine {
	opts := DefaultOptions()
	opts.UseCompiler = useCompiler
	for _, fn := range mutate {
		fn(&opts)
	}
	return New(opts)
}

func evalBoth(t *testing.T, code string, inputs []runtime.Value, check func(t *testing.T, outputs []runtime.Value)) {
	t.Helper()
	for _, s := range strategies {
		s := s
		t.Run(s.name, func(t *testing.T) {
			outputs, err := newTestEngine(s.useCompiler).Eval(code, inputs)
			if err != nil {
				t.Fatalf("eval %q: %v", code, err)
			}
			check(t, outputs)
		})
	}
}

func evalBothErr(t *testing.T, code string, inputs []runtime.Value, check func(t *testing.T, err error)) {
	t.Helper()
	for _, s := range strategies {
		s := s
		t.Run(s.name, func(t *testing.T) {
			if _, err := newTestEngine(s.useCompiler).Eval(code, inputs); err == nil {
				t.Fatalf("eval %q: expected error", code)
			} else {
				check(t, err)
			}
		})
	}
}

func noneInput() []runtime.Value {
	return []runtime.Value{runtime.None}
}

func single(t *testing.T, outputs []runtime.Value) runtime.Value {
	t.Helper()
	if len(outputs) != 1 {
		t.Fatalf("outputs: got %d, want 1", len(outputs))
	}
	return outputs[0]
}

func wantValue(t *testing.T, outputs []runtime.Value, want runtime.Value) {
	t.Helper()
	if got := single(t, outputs); !runtime.Equal(got, want) {
		t.Fatalf("got %s, want %s", runtime.ToString(got), runtime.ToString(want))
	}
}

func num(v float64) runtime.Value { return runtime.NumberValue{Val: v} }
func str(v string) runtime.Value  { return runtime.StringValue{Val: v} }

func numbers(vs ...float64) []runtime.Value {
	out := make([]runtime.Value, len(vs))
	for i, v := range vs {
		out[i] = num(v)
	}
	return out
}

func TestEvalLiteral(t *testing.T) {
	evalBoth(t, `42`, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, num(42))
	})
}

func TestEvalPipelineThreadsInput(t *testing.T) {
	evalBoth(t, `add(" world") | upcase()`, []runtime.Value{str("hello")}, func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, str("HELLO WORLD"))
	})
}

func TestEvalIfElifElse(t *testing.T) {
	evalBoth(t, `if (false): "a" elif (true): "b" else: "c"`, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, str("b"))
	})
	evalBoth(t, `if (false): "a"`, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, runtime.None)
	})
}

func TestEvalTruthiness(t *testing.T) {
	tests := []struct {
		cond string
		want string
	}{
		{`""`, "f"},
		{`0`, "f"},
		{`array()`, "f"},
		{`none`, "f"},
		{`"x"`, "t"},
		{`1`, "t"},
	}
	for _, tt := range tests {
		code := fmt.Sprintf(`if (%s): "t" else: "f"`, tt.cond)
		evalBoth(t, code, noneInput(), func(t *testing.T, outputs []runtime.Value) {
			wantValue(t, outputs, str(tt.want))
		})
	}
}

func TestEvalShortCircuit(t *testing.T) {
	evalBoth(t, `false and error("boom")`, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, runtime.False)
	})
	evalBoth(t, `"left" or error("boom")`, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, str("left"))
	})
	evalBoth(t, `true and "right"`, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, str("right"))
	})
}

func TestEvalLetReturnsInput(t *testing.T) {
	evalBoth(t, `let x = 99`, []runtime.Value{str("in")}, func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, str("in"))
	})
}

func TestEvalVarAssign(t *testing.T) {
	evalBoth(t, `var x = 1 | x = x + 10 | x`, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, num(11))
	})
	evalBothErr(t, `let y = 1 | y = 2`, noneInput(), func(t *testing.T, err error) {
		var userErr *UserError
		if !errors.As(err, &userErr) {
			t.Fatalf("got %T: %v", err, err)
		}
	})
}

func TestEvalWhileAccumulates(t *testing.T) {
	evalBoth(t, `let x = 0 | while (x < 3): let x = x + 1 | x`, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, runtime.NewArray(num(1), num(2), num(3)))
	})
}

func TestEvalWhileFalseCondIsNone(t *testing.T) {
	evalBoth(t, `while (false): 1`, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, runtime.None)
	})
}

func TestEvalWhileBreakYieldsLastValue(t *testing.T) {
	code := `let x = 0 | while (x < 5): let x = x + 1 | if (x > 2): break else: x`
	evalBoth(t, code, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, num(2))
	})
}

func TestEvalUntilYieldsFinalValue(t *testing.T) {
	evalBoth(t, `let x = 0 | until (x < 3): let x = x + 1 | x`, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, num(3))
	})
}

func TestEvalForeach(t *testing.T) {
	evalBoth(t, `foreach (x, array(1, 2, 3)): x * 10`, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, runtime.NewArray(num(10), num(20), num(30)))
	})
}

func TestEvalForeachBreakTruncates(t *testing.T) {
	code := `foreach (x, array(1, 2, 3, 4)): if (x == 3): break else: x`
	evalBoth(t, code, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, runtime.NewArray(num(1), num(2)))
	})
}

func TestEvalForeachContinueSkips(t *testing.T) {
	code := `foreach (x, array(1, 2, 3)): if (x == 2): continue else: x`
	evalBoth(t, code, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, runtime.NewArray(num(1), num(3)))
	})
}

func TestEvalForeachOverString(t *testing.T) {
	evalBoth(t, `foreach (c, "ab"): upcase(c)`, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, runtime.NewArray(str("A"), str("B")))
	})
}

func TestEvalForeachInvalidIterable(t *testing.T) {
	evalBothErr(t, `foreach (x, 5): x`, noneInput(), func(t *testing.T, err error) {
		var typeErr *InvalidTypesError
		if !errors.As(err, &typeErr) {
			t.Fatalf("got %T: %v", err, err)
		}
	})
}

func TestEvalFunctionCall(t *testing.T) {
	evalBoth(t, `def add3(a, b, c): a + b + c; | add3(1, 2, 3)`, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, num(6))
	})
}

func TestEvalFunctionBindsPipelineValue(t *testing.T) {
	// Two parameters, one argument: the input fills the first.
	evalBoth(t, `def scale(v, factor): v * factor; | scale(10)`, numbers(4), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, num(40))
	})
}

func TestEvalFunctionArityMismatch(t *testing.T) {
	evalBothErr(t, `def pair(a, b): a; | pair()`, noneInput(), func(t *testing.T, err error) {
		var arityErr *InvalidNumberOfArgumentsError
		if !errors.As(err, &arityErr) {
			t.Fatalf("got %T: %v", err, err)
		}
		if arityErr.Name != "pair" || arityErr.Expected != 2 || arityErr.Got != 0 {
			t.Fatalf("got %#v", arityErr)
		}
	})
}

func TestEvalRecursiveFunction(t *testing.T) {
	code := `def fact(n): if (n <= 1): 1 else: n * fact(n - 1); | fact(5)`
	evalBoth(t, code, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, num(120))
	})
}

func TestEvalRecursionLimit(t *testing.T) {
	evalBothErr(t, `def loop(): loop(); | loop()`, noneInput(), func(t *testing.T, err error) {
		var recErr *RecursionError
		if !errors.As(err, &recErr) {
			t.Fatalf("got %T: %v", err, err)
		}
		if recErr.MaxDepth != DefaultMaxCallDepth {
			t.Fatalf("max depth: got %d", recErr.MaxDepth)
		}
	})
}

func TestEvalDynamicCall(t *testing.T) {
	evalBoth(t, `(fn(x): x * x)(7)`, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, num(49))
	})
}

func TestEvalOptionalCall(t *testing.T) {
	evalBoth(t, `upcase?()`, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, runtime.None)
	})
	evalBoth(t, `upcase?()`, []runtime.Value{str("hi")}, func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, str("HI"))
	})
}

func TestEvalCallNotDefined(t *testing.T) {
	evalBothErr(t, `nosuch()`, noneInput(), func(t *testing.T, err error) {
		var ndErr *NotDefinedError
		if !errors.As(err, &ndErr) {
			t.Fatalf("got %T: %v", err, err)
		}
		if ndErr.Name != "nosuch" {
			t.Fatalf("name: got %q", ndErr.Name)
		}
	})
}

func TestEvalCallNonFunction(t *testing.T) {
	evalBothErr(t, `let x = 1 | x(2)`, noneInput(), func(t *testing.T, err error) {
		var defErr *InvalidDefinitionError
		if !errors.As(err, &defErr) {
			t.Fatalf("got %T: %v", err, err)
		}
	})
}

func TestEvalTryCatch(t *testing.T) {
	evalBoth(t, `try div(1, 0) catch: "fallback"`, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, str("fallback"))
	})
	evalBoth(t, `try 1 catch: 2`, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, num(1))
	})
}

func TestEvalErrorBuiltin(t *testing.T) {
	evalBothErr(t, `error("boom")`, noneInput(), func(t *testing.T, err error) {
		var userErr *UserError
		if !errors.As(err, &userErr) {
			t.Fatalf("got %T: %v", err, err)
		}
		if userErr.Message != "boom" {
			t.Fatalf("message: got %q", userErr.Message)
		}
	})
}

func TestEvalInterpolatedString(t *testing.T) {
	t.Setenv("MQ_TEST_GREETING", "hey")
	code := `let name = "mq" | s"$MQ_TEST_GREETING ${name}: ${add(1, 2)} <${self}>"`
	evalBoth(t, code, numbers(7), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, str("hey mq: 3 <7>"))
	})
}

func TestEvalInterpolationEnvNotFound(t *testing.T) {
	t.Setenv("MQ_TEST_MISSING", "x")
	os.Unsetenv("MQ_TEST_MISSING")
	evalBothErr(t, `s"$MQ_TEST_MISSING"`, noneInput(), func(t *testing.T, err error) {
		var envErr *EnvNotFoundError
		if !errors.As(err, &envErr) {
			t.Fatalf("got %T: %v", err, err)
		}
		if envErr.Name != "MQ_TEST_MISSING" {
			t.Fatalf("name: got %q", envErr.Name)
		}
	})
}

func TestEvalMatch(t *testing.T) {
	code := "match (self) do\n" +
		"| 0: \"zero\"\n" +
		"| [first, ..rest]: first + len(rest)\n" +
		"| :number: \"num\"\n" +
		"| _: \"other\"\n" +
		"end"
	evalBoth(t, code, numbers(0), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, str("zero"))
	})
	evalBoth(t, code, []runtime.Value{runtime.NewArray(num(10), num(1), num(2))}, func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, num(12))
	})
	evalBoth(t, code, numbers(5), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, str("num"))
	})
	evalBoth(t, code, []runtime.Value{str("s")}, func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, str("other"))
	})
}

func TestEvalMatchGuard(t *testing.T) {
	code := "match (self) do\n| n if n > 10: \"big\"\n| _: \"small\"\nend"
	evalBoth(t, code, numbers(11), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, str("big"))
	})
	evalBoth(t, code, numbers(3), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, str("small"))
	})
}

func TestEvalMatchNoArmIsNone(t *testing.T) {
	code := "match (self) do\n| 1: \"one\"\nend"
	evalBoth(t, code, numbers(2), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, runtime.None)
	})
}

func TestEvalModuleQualifiedAccess(t *testing.T) {
	code := "module util do\n" +
		"def double(x): x * 2;\n" +
		"let answer = 42\n" +
		"end\n" +
		"util::double(21)"
	evalBoth(t, code, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, num(42))
	})

	value := "module util do\nlet answer = 42\nend\nutil::answer"
	evalBoth(t, value, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, num(42))
	})
}

func TestEvalMacroExpansion(t *testing.T) {
	evalBoth(t, `macro twice(x): add(x, x); | twice(21)`, noneInput(), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, num(42))
	})
}

func TestEvalNodesSplitsPipeline(t *testing.T) {
	evalBoth(t, `nodes | len()`, numbers(1, 2, 3), func(t *testing.T, outputs []runtime.Value) {
		wantValue(t, outputs, num(3))
	})
}

func TestEvalNodesArrayResultFlattens(t *testing.T) {
	evalBoth(t, `nodes | reverse()`, numbers(1, 2, 3), func(t *testing.T, outputs []runtime.Value) {
		if len(outputs) != 3 {
			t.Fatalf("outputs: got %d, want 3", len(outputs))
		}
		for i, want := range []float64{3, 2, 1} {
			if !runtime.Equal(outputs[i], num(want)) {
				t.Fatalf("output %d: got %s", i, runtime.ToString(outputs[i]))
			}
		}
	})
}

func TestEvalFilterNone(t *testing.T) {
	for _, s := range strategies {
		s := s
		t.Run(s.name, func(t *testing.T) {
			engine := newTestEngine(s.useCompiler, func(o *Options) { o.FilterNone = true })
			outputs, err := engine.Eval(`.h`, numbers(1))
			if err != nil {
				t.Fatalf("eval: %v", err)
			}
			if len(outputs) != 0 {
				t.Fatalf("outputs: got %d, want 0", len(outputs))
			}
		})
	}
}

func documentInputs(t *testing.T, doc string) []runtime.Value {
	t.Helper()
	nodes := markdown.Parse(doc)
	inputs := make([]runtime.Value, len(nodes))
	for i, node := range nodes {
		inputs[i] = runtime.NewMarkdown(node)
	}
	return inputs
}

func TestEvalSelectorOverDocument(t *testing.T) {
	inputs := documentInputs(t, "# Title\n\nplain text\n")
	evalBoth(t, `.h | upcase?()`, inputs, func(t *testing.T, outputs []runtime.Value) {
		if len(outputs) != 2 {
			t.Fatalf("outputs: got %d, want 2", len(outputs))
		}
		matched, ok := outputs[0].(*runtime.MarkdownValue)
		if !ok {
			t.Fatalf("output 0: got %#v", outputs[0])
		}
		if matched.Node.Text() != "TITLE" {
			t.Fatalf("output 0 text: got %q", matched.Node.Text())
		}
		missed, ok := outputs[1].(*runtime.MarkdownValue)
		if !ok {
			t.Fatalf("output 1: got %#v", outputs[1])
		}
		if missed.Node.Kind != markdown.KindEmpty {
			t.Fatalf("output 1 kind: got %v", missed.Node.Kind)
		}
	})
}

func TestEvalSelectorKeepsMatchedNode(t *testing.T) {
	inputs := documentInputs(t, "```go\nx := 1\n```\n")
	evalBoth(t, `.code_go`, inputs, func(t *testing.T, outputs []runtime.Value) {
		md, ok := single(t, outputs).(*runtime.MarkdownValue)
		if !ok {
			t.Fatalf("got %#v", outputs[0])
		}
		if md.Node.Kind != markdown.KindCode || md.Node.Lang != "go" {
			t.Fatalf("got %#v", md.Node)
		}
	})
}

func writeModuleFile(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
		t.Fatalf("write module: %v", err)
	}
}

func TestEvalInclude(t *testing.T) {
	dir := t.TempDir()
	writeModuleFile(t, dir, "util.mq", "def shout(s): upcase(s);\nlet greeting = \"hello\"\n")
	for _, s := range strategies {
		s := s
		t.Run(s.name, func(t *testing.T) {
			engine := newTestEngine(s.useCompiler, func(o *Options) { o.SearchPaths = []string{dir} })
			outputs, err := engine.Eval("include \"util\"\nshout(greeting)", noneInput())
			if err != nil {
				t.Fatalf("eval: %v", err)
			}
			wantValue(t, outputs, str("HELLO"))
		})
	}
}

func TestEvalImportNamespace(t *testing.T) {
	dir := t.TempDir()
	writeModuleFile(t, dir, "util.mq", "def shout(s): upcase(s);\n")
	for _, s := range strategies {
		s := s
		t.Run(s.name, func(t *testing.T) {
			engine := newTestEngine(s.useCompiler, func(o *Options) { o.SearchPaths = []string{dir} })
			outputs, err := engine.Eval("import \"util\"\nutil::shout(\"ok\")", noneInput())
			if err != nil {
				t.Fatalf("eval: %v", err)
			}
			wantValue(t, outputs, str("OK"))
		})
	}
}

func TestEvalIncludeMissingModule(t *testing.T) {
	evalBothErr(t, `include "nope"`, noneInput(), func(t *testing.T, err error) {
		var modErr *ModuleError
		if !errors.As(err, &modErr) {
			t.Fatalf("got %T: %v", err, err)
		}
		if !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("cause: %v", err)
		}
	})
}

func TestEvalDefineStringValue(t *testing.T) {
	for _, s := range strategies {
		s := s
		t.Run(s.name, func(t *testing.T) {
			engine := newTestEngine(s.useCompiler)
			engine.DefineStringValue("who", "world")
			outputs, err := engine.Eval(`add("hello ", who)`, noneInput())
			if err != nil {
				t.Fatalf("eval: %v", err)
			}
			wantValue(t, outputs, str("hello world"))
		})
	}
}

func TestEvalParseErrorSurfaces(t *testing.T) {
	for _, s := range strategies {
		s := s
		t.Run(s.name, func(t *testing.T) {
			if _, err := newTestEngine(s.useCompiler).Eval(`let = 1`, noneInput()); err == nil {
				t.Fatalf("expected parse error")
			}
		})
	}
}
