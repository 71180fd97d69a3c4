package interpreter

import (
	"errors"
	"testing"

	"mq/engine-go/pkg/markdown"
	"mq/engine-go/pkg/runtime"
)

func callNative(t *testing.T, input runtime.Value, name string, args ...runtime.Value) runtime.Value {
	t.Helper()
	out, err := EvalBuiltin(input, name, args)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return out
}

func TestBuiltinArithmetic(t *testing.T) {
	tests := []struct {
		name string
		args []runtime.Value
		want runtime.Value
	}{
		{"add", []runtime.Value{num(1), num(2)}, num(3)},
		{"add", []runtime.Value{str("a"), str("b")}, str("ab")},
		{"add", []runtime.Value{runtime.NewArray(num(1)), runtime.NewArray(num(2))}, runtime.NewArray(num(1), num(2))},
		{"sub", []runtime.Value{num(5), num(3)}, num(2)},
		{"mul", []runtime.Value{num(4), num(3)}, num(12)},
		{"div", []runtime.Value{num(9), num(3)}, num(3)},
		{"mod", []runtime.Value{num(7), num(4)}, num(3)},
		{"abs", []runtime.Value{num(-2)}, num(2)},
		{"ceil", []runtime.Value{num(1.2)}, num(2)},
		{"floor", []runtime.Value{num(1.8)}, num(1)},
		{"round", []runtime.Value{num(1.5)}, num(2)},
	}
	for _, tt := range tests {
		got := callNative(t, runtime.None, tt.name, tt.args...)
		if !runtime.Equal(got, tt.want) {
			t.Fatalf("%s: got %s, want %s", tt.name, runtime.ToString(got), runtime.ToString(tt.want))
		}
	}
}

func TestBuiltinDivisionByZero(t *testing.T) {
	for _, name := range []string{"div", "mod"} {
		_, err := EvalBuiltin(runtime.None, name, []runtime.Value{num(1), num(0)})
		var zeroErr *ZeroDivisionError
		if !errors.As(err, &zeroErr) {
			t.Fatalf("%s: got %T: %v", name, err, err)
		}
	}
}

func TestBuiltinAddInvalidTypes(t *testing.T) {
	_, err := EvalBuiltin(runtime.None, "add", []runtime.Value{num(1), str("x")})
	var typeErr *InvalidTypesError
	if !errors.As(err, &typeErr) {
		t.Fatalf("got %T: %v", err, err)
	}
	if typeErr.Name != "add" {
		t.Fatalf("name: got %q", typeErr.Name)
	}
}

func TestBuiltinInputFillsFirstParameter(t *testing.T) {
	got := callNative(t, str("hello"), "upcase")
	if !runtime.Equal(got, str("HELLO")) {
		t.Fatalf("got %s", runtime.ToString(got))
	}
	got = callNative(t, num(10), "sub", num(4))
	if !runtime.Equal(got, num(6)) {
		t.Fatalf("got %s", runtime.ToString(got))
	}
}

func TestBuiltinArityMismatch(t *testing.T) {
	_, err := EvalBuiltin(runtime.None, "len", []runtime.Value{num(1), num(2)})
	var arityErr *InvalidNumberOfArgumentsError
	if !errors.As(err, &arityErr) {
		t.Fatalf("got %T: %v", err, err)
	}
	if arityErr.Name != "len" || arityErr.Expected != 1 || arityErr.Got != 2 {
		t.Fatalf("got %#v", arityErr)
	}
}

func TestBuiltinUnknownName(t *testing.T) {
	_, err := EvalBuiltin(runtime.None, "nope", nil)
	var ndErr *NotDefinedError
	if !errors.As(err, &ndErr) {
		t.Fatalf("got %T: %v", err, err)
	}
}

func TestBuiltinComparisons(t *testing.T) {
	tests := []struct {
		name string
		a, b runtime.Value
		want runtime.Value
	}{
		{"eq", num(1), num(1), runtime.True},
		{"ne", num(1), num(2), runtime.True},
		{"lt", num(1), num(2), runtime.True},
		{"lte", num(2), num(2), runtime.True},
		{"gt", str("b"), str("a"), runtime.True},
		{"gte", num(1), num(2), runtime.False},
	}
	for _, tt := range tests {
		got := callNative(t, runtime.None, tt.name, tt.a, tt.b)
		if !runtime.Equal(got, tt.want) {
			t.Fatalf("%s: got %s", tt.name, runtime.ToString(got))
		}
	}

	if _, err := EvalBuiltin(runtime.None, "lt", []runtime.Value{num(1), str("a")}); err == nil {
		t.Fatalf("expected error comparing mixed types")
	}
}

func TestBuiltinIntrospection(t *testing.T) {
	if got := callNative(t, runtime.None, "len", str("héllo")); !runtime.Equal(got, num(5)) {
		t.Fatalf("len: got %s", runtime.ToString(got))
	}
	if got := callNative(t, runtime.None, "type", num(1)); !runtime.Equal(got, str("number")) {
		t.Fatalf("type: got %s", runtime.ToString(got))
	}
	if got := callNative(t, runtime.None, "is_none", runtime.None); !runtime.Equal(got, runtime.True) {
		t.Fatalf("is_none: got %s", runtime.ToString(got))
	}
	if got := callNative(t, runtime.None, "is_empty", runtime.NewArray()); !runtime.Equal(got, runtime.True) {
		t.Fatalf("is_empty: got %s", runtime.ToString(got))
	}
	if got := callNative(t, runtime.None, "not", runtime.False); !runtime.Equal(got, runtime.True) {
		t.Fatalf("not: got %s", runtime.ToString(got))
	}
}

func TestBuiltinConversions(t *testing.T) {
	if got := callNative(t, runtime.None, "to_string", num(3)); !runtime.Equal(got, str("3")) {
		t.Fatalf("to_string: got %s", runtime.ToString(got))
	}
	if got := callNative(t, runtime.None, "to_number", str(" 42 ")); !runtime.Equal(got, num(42)) {
		t.Fatalf("to_number: got %s", runtime.ToString(got))
	}
	if got := callNative(t, runtime.None, "to_number", runtime.True); !runtime.Equal(got, num(1)) {
		t.Fatalf("to_number bool: got %s", runtime.ToString(got))
	}
	if _, err := EvalBuiltin(runtime.None, "to_number", []runtime.Value{str("nope")}); err == nil {
		t.Fatalf("expected error for non-numeric string")
	}

	md := runtime.NewMarkdown(markdown.NewHeading(2, markdown.NewText("Title")))
	if got := callNative(t, runtime.None, "to_text", md); !runtime.Equal(got, str("Title")) {
		t.Fatalf("to_text: got %s", runtime.ToString(got))
	}
	if got := callNative(t, runtime.None, "to_md_name", md); !runtime.Equal(got, str("heading")) {
		t.Fatalf("to_md_name: got %s", runtime.ToString(got))
	}
}

func TestBuiltinStrings(t *testing.T) {
	tests := []struct {
		name string
		args []runtime.Value
		want runtime.Value
	}{
		{"upcase", []runtime.Value{str("hi")}, str("HI")},
		{"downcase", []runtime.Value{str("HI")}, str("hi")},
		{"trim", []runtime.Value{str("  x  ")}, str("x")},
		{"replace", []runtime.Value{str("a-b-c"), str("-"), str("+")}, str("a+b+c")},
		{"contains", []runtime.Value{str("hello"), str("ell")}, runtime.True},
		{"starts_with", []runtime.Value{str("hello"), str("he")}, runtime.True},
		{"ends_with", []runtime.Value{str("hello"), str("lo")}, runtime.True},
		{"repeat", []runtime.Value{str("ab"), num(3)}, str("ababab")},
		{"test", []runtime.Value{str("v1.2.3"), str(`^v\d+`)}, runtime.True},
		{"gsub", []runtime.Value{str("a1b2"), str(`\d`), str("_")}, str("a_b_")},
	}
	for _, tt := range tests {
		got := callNative(t, runtime.None, tt.name, tt.args...)
		if !runtime.Equal(got, tt.want) {
			t.Fatalf("%s: got %s", tt.name, runtime.ToString(got))
		}
	}

	if _, err := EvalBuiltin(runtime.None, "test", []runtime.Value{str("x"), str("(")}); err == nil {
		t.Fatalf("expected error for invalid regex")
	}
}

func TestBuiltinStringsAcceptMarkdown(t *testing.T) {
	md := runtime.NewMarkdown(markdown.NewText("shout"))
	if got := callNative(t, runtime.None, "upcase", md); !runtime.Equal(got, str("SHOUT")) {
		t.Fatalf("got %s", runtime.ToString(got))
	}
}

func TestBuiltinSplitJoin(t *testing.T) {
	parts := callNative(t, runtime.None, "split", str("a,b,c"), str(","))
	if !runtime.Equal(parts, runtime.NewArray(str("a"), str("b"), str("c"))) {
		t.Fatalf("split: got %s", runtime.ToString(parts))
	}
	joined := callNative(t, runtime.None, "join", parts, str("-"))
	if !runtime.Equal(joined, str("a-b-c")) {
		t.Fatalf("join: got %s", runtime.ToString(joined))
	}
}

func TestBuiltinArrays(t *testing.T) {
	arr := runtime.NewArray(num(3), num(1), num(2))
	tests := []struct {
		name string
		args []runtime.Value
		want runtime.Value
	}{
		{"array", []runtime.Value{num(1), num(2)}, runtime.NewArray(num(1), num(2))},
		{"first", []runtime.Value{arr}, num(3)},
		{"last", []runtime.Value{arr}, num(2)},
		{"nth", []runtime.Value{arr, num(1)}, num(1)},
		{"nth", []runtime.Value{arr, num(9)}, runtime.None},
		{"nth", []runtime.Value{str("abc"), num(1)}, str("b")},
		{"range", []runtime.Value{num(3)}, runtime.NewArray(num(0), num(1), num(2))},
		{"reverse", []runtime.Value{arr}, runtime.NewArray(num(2), num(1), num(3))},
		{"sort", []runtime.Value{arr}, runtime.NewArray(num(1), num(2), num(3))},
		{"uniq", []runtime.Value{runtime.NewArray(num(1), num(1), num(2))}, runtime.NewArray(num(1), num(2))},
		{"compact", []runtime.Value{runtime.NewArray(num(1), runtime.None, num(2))}, runtime.NewArray(num(1), num(2))},
		{"flatten", []runtime.Value{runtime.NewArray(runtime.NewArray(num(1)), num(2))}, runtime.NewArray(num(1), num(2))},
		{"first", []runtime.Value{runtime.NewArray()}, runtime.None},
		{"contains", []runtime.Value{arr, num(1)}, runtime.True},
	}
	for _, tt := range tests {
		got := callNative(t, runtime.None, tt.name, tt.args...)
		if !runtime.Equal(got, tt.want) {
			t.Fatalf("%s: got %s, want %s", tt.name, runtime.ToString(got), runtime.ToString(tt.want))
		}
	}
}

func TestBuiltinDicts(t *testing.T) {
	empty := callNative(t, runtime.None, "dict")
	d1 := callNative(t, runtime.None, "set", empty, str("a"), num(1))
	d2 := callNative(t, runtime.None, "set", d1, str("b"), num(2))

	// set copies: the earlier dict is unchanged.
	if runtime.Length(d1) != 1 || runtime.Length(d2) != 2 {
		t.Fatalf("lengths: %d, %d", runtime.Length(d1), runtime.Length(d2))
	}

	if got := callNative(t, runtime.None, "get", d2, str("b")); !runtime.Equal(got, num(2)) {
		t.Fatalf("get: got %s", runtime.ToString(got))
	}
	if got := callNative(t, runtime.None, "get", d2, str("zz")); !runtime.IsNone(got) {
		t.Fatalf("get miss: got %s", runtime.ToString(got))
	}
	if got := callNative(t, runtime.None, "keys", d2); !runtime.Equal(got, runtime.NewArray(str("a"), str("b"))) {
		t.Fatalf("keys: got %s", runtime.ToString(got))
	}
	if got := callNative(t, runtime.None, "values", d2); !runtime.Equal(got, runtime.NewArray(num(1), num(2))) {
		t.Fatalf("values: got %s", runtime.ToString(got))
	}
}

func TestBuiltinErrorRaisesUserError(t *testing.T) {
	_, err := EvalBuiltin(runtime.None, "error", []runtime.Value{str("boom")})
	var userErr *UserError
	if !errors.As(err, &userErr) {
		t.Fatalf("got %T: %v", err, err)
	}
	if userErr.Message != "boom" {
		t.Fatalf("message: got %q", userErr.Message)
	}
}

func TestNativeResolver(t *testing.T) {
	value, ok := NativeResolver("len")
	if !ok {
		t.Fatalf("len should resolve")
	}
	if native, ok := value.(runtime.NativeFunctionValue); !ok || native.Name != "len" {
		t.Fatalf("got %#v", value)
	}
	if _, ok := NativeResolver("nope"); ok {
		t.Fatalf("unknown name resolved")
	}
}
