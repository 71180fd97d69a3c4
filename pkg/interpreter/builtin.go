package interpreter

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"mq/engine-go/pkg/runtime"
)

// A builtin is an engine-provided primitive. Arity is the declared
// parameter count; a call supplying one argument fewer binds the
// pipeline value as the first parameter, mirroring user functions.
// Variadic builtins declare arity -1 and receive arguments as given.
type builtin struct {
	arity int
	fn    func(args []runtime.Value) (runtime.Value, error)
}

// IsBuiltin reports whether name resolves to a native function.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

// EvalBuiltin dispatches a native call. The pipeline value fills the
// first parameter when the caller supplied one argument fewer than the
// declared arity.
func EvalBuiltin(input runtime.Value, name string, args []runtime.Value) (runtime.Value, error) {
	b, ok := builtins[name]
	if !ok {
		return nil, &NotDefinedError{Name: name}
	}
	if b.arity < 0 {
		return b.fn(args)
	}
	switch len(args) {
	case b.arity:
		return b.fn(args)
	case b.arity - 1:
		full := make([]runtime.Value, 0, b.arity)
		full = append(full, input)
		full = append(full, args...)
		return b.fn(full)
	default:
		return nil, &InvalidNumberOfArgumentsError{Name: name, Expected: b.arity, Got: len(args)}
	}
}

// NativeResolver backs the root environment: any builtin name resolves
// to a native-function value.
func NativeResolver(name string) (runtime.Value, bool) {
	if IsBuiltin(name) {
		return runtime.NativeFunctionValue{Name: name}, true
	}
	return nil, false
}

func invalidTypes(name string, args ...runtime.Value) error {
	kinds := make([]string, len(args))
	for i, a := range args {
		kinds[i] = a.Kind().String()
	}
	return &InvalidTypesError{Name: name, Args: kinds}
}

func asNumber(v runtime.Value) (float64, bool) {
	n, ok := v.(runtime.NumberValue)
	return n.Val, ok
}

func asString(v runtime.Value) (string, bool) {
	switch s := v.(type) {
	case runtime.StringValue:
		return s.Val, true
	case runtime.SymbolValue:
		return s.Name, true
	case *runtime.MarkdownValue:
		return s.Node.Text(), true
	}
	return "", false
}

var builtins = map[string]builtin{
	"add": {2, func(args []runtime.Value) (runtime.Value, error) {
		a, b := args[0], args[1]
		if x, ok := asNumber(a); ok {
			if y, ok := asNumber(b); ok {
				return runtime.NumberValue{Val: x + y}, nil
			}
		}
		if x, ok := a.(*runtime.ArrayValue); ok {
			if y, ok := b.(*runtime.ArrayValue); ok {
				elements := make([]runtime.Value, 0, len(x.Elements)+len(y.Elements))
				elements = append(elements, x.Elements...)
				elements = append(elements, y.Elements...)
				return runtime.NewArray(elements...), nil
			}
		}
		if x, ok := asString(a); ok {
			if y, ok := asString(b); ok {
				return runtime.StringValue{Val: x + y}, nil
			}
		}
		return nil, invalidTypes("add", a, b)
	}},
	"sub": {2, numericOp("sub", func(a, b float64) (float64, error) { return a - b, nil })},
	"mul": {2, numericOp("mul", func(a, b float64) (float64, error) { return a * b, nil })},
	"div": {2, numericOp("div", func(a, b float64) (float64, error) {
		if b == 0 {
			return 0, &ZeroDivisionError{}
		}
		return a / b, nil
	})},
	"mod": {2, numericOp("mod", func(a, b float64) (float64, error) {
		if b == 0 {
			return 0, &ZeroDivisionError{}
		}
		return math.Mod(a, b), nil
	})},
	"abs":   {1, numericFn("abs", math.Abs)},
	"ceil":  {1, numericFn("ceil", math.Ceil)},
	"floor": {1, numericFn("floor", math.Floor)},
	"round": {1, numericFn("round", math.Round)},

	"eq": {2, func(args []runtime.Value) (runtime.Value, error) {
		return boolValue(runtime.Equal(args[0], args[1])), nil
	}},
	"ne": {2, func(args []runtime.Value) (runtime.Value, error) {
		return boolValue(!runtime.Equal(args[0], args[1])), nil
	}},
	"lt":  {2, compareOp("lt", func(c int) bool { return c < 0 })},
	"lte": {2, compareOp("lte", func(c int) bool { return c <= 0 })},
	"gt":  {2, compareOp("gt", func(c int) bool { return c > 0 })},
	"gte": {2, compareOp("gte", func(c int) bool { return c >= 0 })},
	"not": {1, func(args []runtime.Value) (runtime.Value, error) {
		return boolValue(!runtime.IsTrue(args[0])), nil
	}},

	"len": {1, func(args []runtime.Value) (runtime.Value, error) {
		return runtime.NumberValue{Val: float64(runtime.Length(args[0]))}, nil
	}},
	"type": {1, func(args []runtime.Value) (runtime.Value, error) {
		return runtime.StringValue{Val: args[0].Kind().String()}, nil
	}},
	"is_none": {1, func(args []runtime.Value) (runtime.Value, error) {
		return boolValue(runtime.IsNone(args[0])), nil
	}},
	"is_empty": {1, func(args []runtime.Value) (runtime.Value, error) {
		return boolValue(runtime.IsEmpty(args[0])), nil
	}},
	"to_string": {1, func(args []runtime.Value) (runtime.Value, error) {
		return runtime.StringValue{Val: runtime.ToString(args[0])}, nil
	}},
	"to_text": {1, func(args []runtime.Value) (runtime.Value, error) {
		return runtime.StringValue{Val: runtime.Text(args[0])}, nil
	}},
	"to_number": {1, func(args []runtime.Value) (runtime.Value, error) {
		switch v := args[0].(type) {
		case runtime.NumberValue:
			return v, nil
		case runtime.BoolValue:
			if v.Val {
				return runtime.NumberValue{Val: 1}, nil
			}
			return runtime.NumberValue{Val: 0}, nil
		case runtime.StringValue:
			n, err := strconv.ParseFloat(strings.TrimSpace(v.Val), 64)
			if err != nil {
				return nil, invalidTypes("to_number", v)
			}
			return runtime.NumberValue{Val: n}, nil
		}
		return nil, invalidTypes("to_number", args[0])
	}},

	"upcase":   {1, stringFn("upcase", strings.ToUpper)},
	"downcase": {1, stringFn("downcase", strings.ToLower)},
	"trim":     {1, stringFn("trim", strings.TrimSpace)},
	"replace": {3, func(args []runtime.Value) (runtime.Value, error) {
		s, ok1 := asString(args[0])
		from, ok2 := asString(args[1])
		to, ok3 := asString(args[2])
		if !ok1 || !ok2 || !ok3 {
			return nil, invalidTypes("replace", args...)
		}
		return runtime.StringValue{Val: strings.ReplaceAll(s, from, to)}, nil
	}},
	"split": {2, func(args []runtime.Value) (runtime.Value, error) {
		s, ok1 := asString(args[0])
		sep, ok2 := asString(args[1])
		if !ok1 || !ok2 {
			return nil, invalidTypes("split", args...)
		}
		parts := strings.Split(s, sep)
		elements := make([]runtime.Value, len(parts))
		for i, p := range parts {
			elements[i] = runtime.StringValue{Val: p}
		}
		return runtime.NewArray(elements...), nil
	}},
	"join": {2, func(args []runtime.Value) (runtime.Value, error) {
		arr, ok1 := args[0].(*runtime.ArrayValue)
		sep, ok2 := asString(args[1])
		if !ok1 || !ok2 {
			return nil, invalidTypes("join", args...)
		}
		parts := make([]string, len(arr.Elements))
		for i, el := range arr.Elements {
			parts[i] = runtime.ToString(el)
		}
		return runtime.StringValue{Val: strings.Join(parts, sep)}, nil
	}},
	"contains": {2, func(args []runtime.Value) (runtime.Value, error) {
		if arr, ok := args[0].(*runtime.ArrayValue); ok {
			for _, el := range arr.Elements {
				if runtime.Equal(el, args[1]) {
					return runtime.True, nil
				}
			}
			return runtime.False, nil
		}
		s, ok1 := asString(args[0])
		sub, ok2 := asString(args[1])
		if !ok1 || !ok2 {
			return nil, invalidTypes("contains", args...)
		}
		return boolValue(strings.Contains(s, sub)), nil
	}},
	"starts_with": {2, stringPredicate("starts_with", strings.HasPrefix)},
	"ends_with":   {2, stringPredicate("ends_with", strings.HasSuffix)},
	"repeat": {2, func(args []runtime.Value) (runtime.Value, error) {
		s, ok1 := asString(args[0])
		n, ok2 := asNumber(args[1])
		if !ok1 || !ok2 || n < 0 {
			return nil, invalidTypes("repeat", args...)
		}
		return runtime.StringValue{Val: strings.Repeat(s, int(n))}, nil
	}},
	"test": {2, func(args []runtime.Value) (runtime.Value, error) {
		s, ok1 := asString(args[0])
		pattern, ok2 := asString(args[1])
		if !ok1 || !ok2 {
			return nil, invalidTypes("test", args...)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, &UserError{Message: "invalid regex: " + err.Error()}
		}
		return boolValue(re.MatchString(s)), nil
	}},
	"gsub": {3, func(args []runtime.Value) (runtime.Value, error) {
		s, ok1 := asString(args[0])
		pattern, ok2 := asString(args[1])
		replacement, ok3 := asString(args[2])
		if !ok1 || !ok2 || !ok3 {
			return nil, invalidTypes("gsub", args...)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, &UserError{Message: "invalid regex: " + err.Error()}
		}
		return runtime.StringValue{Val: re.ReplaceAllString(s, replacement)}, nil
	}},

	"array": {-1, func(args []runtime.Value) (runtime.Value, error) {
		elements := make([]runtime.Value, len(args))
		copy(elements, args)
		return runtime.NewArray(elements...), nil
	}},
	"first": {1, arrayFn("first", func(arr *runtime.ArrayValue) (runtime.Value, error) {
		if len(arr.Elements) == 0 {
			return runtime.None, nil
		}
		return arr.Elements[0], nil
	})},
	"last": {1, arrayFn("last", func(arr *runtime.ArrayValue) (runtime.Value, error) {
		if len(arr.Elements) == 0 {
			return runtime.None, nil
		}
		return arr.Elements[len(arr.Elements)-1], nil
	})},
	"nth": {2, func(args []runtime.Value) (runtime.Value, error) {
		n, okN := asNumber(args[1])
		if arr, ok := args[0].(*runtime.ArrayValue); ok && okN {
			i := int(n)
			if i < 0 || i >= len(arr.Elements) {
				return runtime.None, nil
			}
			return arr.Elements[i], nil
		}
		if s, ok := asString(args[0]); ok && okN {
			runes := []rune(s)
			i := int(n)
			if i < 0 || i >= len(runes) {
				return runtime.None, nil
			}
			return runtime.StringValue{Val: string(runes[i])}, nil
		}
		return nil, invalidTypes("nth", args...)
	}},
	"range": {1, func(args []runtime.Value) (runtime.Value, error) {
		n, ok := asNumber(args[0])
		if !ok || n < 0 {
			return nil, invalidTypes("range", args[0])
		}
		elements := make([]runtime.Value, int(n))
		for i := range elements {
			elements[i] = runtime.NumberValue{Val: float64(i)}
		}
		return runtime.NewArray(elements...), nil
	}},
	"reverse": {1, arrayFn("reverse", func(arr *runtime.ArrayValue) (runtime.Value, error) {
		elements := make([]runtime.Value, len(arr.Elements))
		for i, el := range arr.Elements {
			elements[len(elements)-1-i] = el
		}
		return runtime.NewArray(elements...), nil
	})},
	"sort": {1, arrayFn("sort", func(arr *runtime.ArrayValue) (runtime.Value, error) {
		elements := make([]runtime.Value, len(arr.Elements))
		copy(elements, arr.Elements)
		sort.SliceStable(elements, func(i, j int) bool {
			c, ok := runtime.Compare(elements[i], elements[j])
			return ok && c < 0
		})
		return runtime.NewArray(elements...), nil
	})},
	"uniq": {1, arrayFn("uniq", func(arr *runtime.ArrayValue) (runtime.Value, error) {
		elements := make([]runtime.Value, 0, len(arr.Elements))
		for _, el := range arr.Elements {
			seen := false
			for _, kept := range elements {
				if runtime.Equal(kept, el) {
					seen = true
					break
				}
			}
			if !seen {
				elements = append(elements, el)
			}
		}
		return runtime.NewArray(elements...), nil
	})},
	"compact": {1, arrayFn("compact", func(arr *runtime.ArrayValue) (runtime.Value, error) {
		elements := make([]runtime.Value, 0, len(arr.Elements))
		for _, el := range arr.Elements {
			if !runtime.IsNone(el) {
				elements = append(elements, el)
			}
		}
		return runtime.NewArray(elements...), nil
	})},
	"flatten": {1, arrayFn("flatten", func(arr *runtime.ArrayValue) (runtime.Value, error) {
		elements := make([]runtime.Value, 0, len(arr.Elements))
		for _, el := range arr.Elements {
			if inner, ok := el.(*runtime.ArrayValue); ok {
				elements = append(elements, inner.Elements...)
				continue
			}
			elements = append(elements, el)
		}
		return runtime.NewArray(elements...), nil
	})},

	"dict": {0, func(args []runtime.Value) (runtime.Value, error) {
		return runtime.NewDict(), nil
	}},
	"keys": {1, dictFn("keys", func(d *runtime.DictValue) (runtime.Value, error) {
		keys := d.Keys()
		elements := make([]runtime.Value, len(keys))
		for i, k := range keys {
			elements[i] = runtime.StringValue{Val: k}
		}
		return runtime.NewArray(elements...), nil
	})},
	"values": {1, dictFn("values", func(d *runtime.DictValue) (runtime.Value, error) {
		keys := d.Keys()
		elements := make([]runtime.Value, len(keys))
		for i, k := range keys {
			elements[i], _ = d.Get(k)
		}
		return runtime.NewArray(elements...), nil
	})},
	"get": {2, func(args []runtime.Value) (runtime.Value, error) {
		d, ok1 := args[0].(*runtime.DictValue)
		key, ok2 := asString(args[1])
		if !ok1 || !ok2 {
			return nil, invalidTypes("get", args...)
		}
		if v, found := d.Get(key); found {
			return v, nil
		}
		return runtime.None, nil
	}},
	"set": {3, func(args []runtime.Value) (runtime.Value, error) {
		d, ok1 := args[0].(*runtime.DictValue)
		key, ok2 := asString(args[1])
		if !ok1 || !ok2 {
			return nil, invalidTypes("set", args[0], args[1])
		}
		out := runtime.NewDict()
		for _, k := range d.Keys() {
			v, _ := d.Get(k)
			out.Set(k, v)
		}
		out.Set(key, args[2])
		return out, nil
	}},

	"error": {1, func(args []runtime.Value) (runtime.Value, error) {
		return nil, &UserError{Message: runtime.ToString(args[0])}
	}},

	"to_md_name": {1, func(args []runtime.Value) (runtime.Value, error) {
		md, ok := args[0].(*runtime.MarkdownValue)
		if !ok {
			return nil, invalidTypes("to_md_name", args[0])
		}
		return runtime.StringValue{Val: md.Node.Kind.String()}, nil
	}},
}

func boolValue(b bool) runtime.Value {
	if b {
		return runtime.True
	}
	return runtime.False
}

func numericOp(name string, op func(a, b float64) (float64, error)) func([]runtime.Value) (runtime.Value, error) {
	return func(args []runtime.Value) (runtime.Value, error) {
		a, ok1 := asNumber(args[0])
		b, ok2 := asNumber(args[1])
		if !ok1 || !ok2 {
			return nil, invalidTypes(name, args...)
		}
		out, err := op(a, b)
		if err != nil {
			return nil, err
		}
		return runtime.NumberValue{Val: out}, nil
	}
}

func numericFn(name string, fn func(float64) float64) func([]runtime.Value) (runtime.Value, error) {
	return func(args []runtime.Value) (runtime.Value, error) {
		a, ok := asNumber(args[0])
		if !ok {
			return nil, invalidTypes(name, args[0])
		}
		return runtime.NumberValue{Val: fn(a)}, nil
	}
}

func compareOp(name string, accept func(int) bool) func([]runtime.Value) (runtime.Value, error) {
	return func(args []runtime.Value) (runtime.Value, error) {
		c, ok := runtime.Compare(args[0], args[1])
		if !ok {
			return nil, invalidTypes(name, args...)
		}
		return boolValue(accept(c)), nil
	}
}

func stringFn(name string, fn func(string) string) func([]runtime.Value) (runtime.Value, error) {
	return func(args []runtime.Value) (runtime.Value, error) {
		s, ok := asString(args[0])
		if !ok {
			return nil, invalidTypes(name, args[0])
		}
		return runtime.StringValue{Val: fn(s)}, nil
	}
}

func stringPredicate(name string, fn func(string, string) bool) func([]runtime.Value) (runtime.Value, error) {
	return func(args []runtime.Value) (runtime.Value, error) {
		s, ok1 := asString(args[0])
		sub, ok2 := asString(args[1])
		if !ok1 || !ok2 {
			return nil, invalidTypes(name, args...)
		}
		return boolValue(fn(s, sub)), nil
	}
}

func arrayFn(name string, fn func(*runtime.ArrayValue) (runtime.Value, error)) func([]runtime.Value) (runtime.Value, error) {
	return func(args []runtime.Value) (runtime.Value, error) {
		arr, ok := args[0].(*runtime.ArrayValue)
		if !ok {
			return nil, invalidTypes(name, args[0])
		}
		return fn(arr)
	}
}

func dictFn(name string, fn func(*runtime.DictValue) (runtime.Value, error)) func([]runtime.Value) (runtime.Value, error) {
	return func(args []runtime.Value) (runtime.Value, error) {
		d, ok := args[0].(*runtime.DictValue)
		if !ok {
			return nil, invalidTypes(name, args[0])
		}
		return fn(d)
	}
}
