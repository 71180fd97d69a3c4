package runtime

import (
	"fmt"
	"sort"
	"strings"

	"mq/engine-go/pkg/ast"
	"mq/engine-go/pkg/markdown"
)

// Kind identifies the runtime value category.
type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindNumber
	KindString
	KindSymbol
	KindArray
	KindDict
	KindMarkdown
	KindFunction
	KindNativeFunction
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSymbol:
		return "symbol"
	case KindArray:
		return "array"
	case KindDict:
		return "dict"
	case KindMarkdown:
		return "markdown"
	case KindFunction:
		return "function"
	case KindNativeFunction:
		return "native_function"
	default:
		return fmt.Sprintf("unknown_kind_%d", int(k))
	}
}

// Value is the shared behaviour for all runtime values.
type Value interface {
	Kind() Kind
}

// NoneValue is the absent result. Filtering programs produce it for
// every non-matching input.
type NoneValue struct{}

func (NoneValue) Kind() Kind { return KindNone }

type BoolValue struct {
	Val bool
}

func (v BoolValue) Kind() Kind { return KindBool }

type NumberValue struct {
	Val float64
}

func (v NumberValue) Kind() Kind { return KindNumber }

type StringValue struct {
	Val string
}

func (v StringValue) Kind() Kind { return KindString }

type SymbolValue struct {
	Name string
}

func (v SymbolValue) Kind() Kind { return KindSymbol }

type ArrayValue struct {
	Elements []Value
}

func (v *ArrayValue) Kind() Kind { return KindArray }

func NewArray(elements ...Value) *ArrayValue {
	return &ArrayValue{Elements: elements}
}

// DictValue is a key-ordered map: iteration always visits keys in
// sorted order regardless of insertion order.
type DictValue struct {
	entries map[string]Value
}

func NewDict() *DictValue {
	return &DictValue{entries: make(map[string]Value)}
}

func (v *DictValue) Kind() Kind { return KindDict }

func (v *DictValue) Set(key string, value Value) {
	v.entries[key] = value
}

func (v *DictValue) Get(key string) (Value, bool) {
	value, ok := v.entries[key]
	return value, ok
}

func (v *DictValue) Delete(key string) {
	delete(v.entries, key)
}

func (v *DictValue) Len() int { return len(v.entries) }

func (v *DictValue) Keys() []string {
	keys := make([]string, 0, len(v.entries))
	for k := range v.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarkdownValue wraps a document node, optionally narrowed to one child
// by index (selector results carry the index so rewrites can target the
// selected child).
type MarkdownValue struct {
	Node     *markdown.Node
	Index    int
	HasIndex bool
}

func (v *MarkdownValue) Kind() Kind { return KindMarkdown }

func NewMarkdown(node *markdown.Node) *MarkdownValue {
	return &MarkdownValue{Node: node}
}

// TargetNode returns the selected child when an index selector is set,
// else the node itself. Nil when the selected child is missing.
func (v *MarkdownValue) TargetNode() *markdown.Node {
	if v.HasIndex {
		return v.Node.FindAtIndex(v.Index)
	}
	return v.Node
}

// WithText rewrites the node's (or selected child's) textual content,
// preserving kind and position.
func (v *MarkdownValue) WithText(text string) *MarkdownValue {
	if v.HasIndex {
		return &MarkdownValue{Node: v.Node.WithChildrenValue(text, v.Index), Index: v.Index, HasIndex: true}
	}
	return &MarkdownValue{Node: v.Node.WithValue(text)}
}

// FunctionValue is a user-defined closure. Equality and ordering use
// only params and body; the captured environment is excluded.
type FunctionValue struct {
	Params  []string
	Body    ast.Program
	Closure *Environment
}

func (v *FunctionValue) Kind() Kind { return KindFunction }

// NativeFunctionValue names an engine-provided primitive; dispatch
// happens by name through the builtin registry.
type NativeFunctionValue struct {
	Name string
}

func (v NativeFunctionValue) Kind() Kind { return KindNativeFunction }

// None, True and False are the shared singletons for trivial values.
var (
	None  = NoneValue{}
	True  = BoolValue{Val: true}
	False = BoolValue{Val: false}
)

// IsTrue reports the truthiness of a value: bools as themselves, numbers
// when nonzero, strings and arrays when nonempty, dicts and functions
// always, markdown unless its selected child is missing, None never.
func IsTrue(v Value) bool {
	switch val := v.(type) {
	case BoolValue:
		return val.Val
	case NumberValue:
		return val.Val != 0
	case StringValue:
		return val.Val != ""
	case SymbolValue:
		return true
	case *ArrayValue:
		return len(val.Elements) > 0
	case *DictValue:
		return true
	case *MarkdownValue:
		return val.TargetNode() != nil
	case *FunctionValue, NativeFunctionValue:
		return true
	default:
		return false
	}
}

// Length follows the per-variant rules: a number is its own value
// truncated (a repeat count, not a size), strings and symbols count
// characters, markdown counts rendered text.
func Length(v Value) int {
	switch val := v.(type) {
	case NumberValue:
		return int(val.Val)
	case BoolValue:
		return 1
	case StringValue:
		return len([]rune(val.Val))
	case SymbolValue:
		return len([]rune(val.Name))
	case *ArrayValue:
		return len(val.Elements)
	case *DictValue:
		return val.Len()
	case *MarkdownValue:
		return len([]rune(val.Node.Text()))
	default:
		return 0
	}
}

func IsEmpty(v Value) bool {
	switch val := v.(type) {
	case NoneValue:
		return true
	case StringValue:
		return val.Val == ""
	case *ArrayValue:
		return len(val.Elements) == 0
	case *DictValue:
		return val.Len() == 0
	case *MarkdownValue:
		return val.Node.Text() == ""
	default:
		return false
	}
}

func IsNone(v Value) bool {
	_, ok := v.(NoneValue)
	return ok
}

// Equal compares two values structurally. Functions compare on params
// and body only.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case NoneValue:
		return IsNone(b)
	case BoolValue:
		y, ok := b.(BoolValue)
		return ok && x.Val == y.Val
	case NumberValue:
		y, ok := b.(NumberValue)
		return ok && x.Val == y.Val
	case StringValue:
		y, ok := b.(StringValue)
		return ok && x.Val == y.Val
	case SymbolValue:
		y, ok := b.(SymbolValue)
		return ok && x.Name == y.Name
	case *ArrayValue:
		y, ok := b.(*ArrayValue)
		if !ok || len(x.Elements) != len(y.Elements) {
			return false
		}
		for i := range x.Elements {
			if !Equal(x.Elements[i], y.Elements[i]) {
				return false
			}
		}
		return true
	case *DictValue:
		y, ok := b.(*DictValue)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for _, key := range x.Keys() {
			xv, _ := x.Get(key)
			yv, found := y.Get(key)
			if !found || !Equal(xv, yv) {
				return false
			}
		}
		return true
	case *MarkdownValue:
		y, ok := b.(*MarkdownValue)
		return ok && x.Node.Text() == y.Node.Text() && x.HasIndex == y.HasIndex && x.Index == y.Index
	case *FunctionValue:
		y, ok := b.(*FunctionValue)
		if !ok || len(x.Params) != len(y.Params) {
			return false
		}
		for i := range x.Params {
			if x.Params[i] != y.Params[i] {
				return false
			}
		}
		return ast.EqualPrograms(x.Body, y.Body)
	case NativeFunctionValue:
		y, ok := b.(NativeFunctionValue)
		return ok && x.Name == y.Name
	default:
		return false
	}
}

// Compare orders two values, returning false when the pair has no
// meaningful order.
func Compare(a, b Value) (int, bool) {
	switch x := a.(type) {
	case NumberValue:
		if y, ok := b.(NumberValue); ok {
			switch {
			case x.Val < y.Val:
				return -1, true
			case x.Val > y.Val:
				return 1, true
			}
			return 0, true
		}
	case StringValue:
		if y, ok := b.(StringValue); ok {
			return strings.Compare(x.Val, y.Val), true
		}
	case BoolValue:
		if y, ok := b.(BoolValue); ok {
			xv, yv := 0, 0
			if x.Val {
				xv = 1
			}
			if y.Val {
				yv = 1
			}
			return xv - yv, true
		}
	case *MarkdownValue:
		if y, ok := b.(*MarkdownValue); ok {
			return strings.Compare(x.Node.String(), y.Node.String()), true
		}
	}
	return 0, false
}

// ToString is the display form of a value: arrays join on newlines,
// markdown renders back to source, None prints as "None".
func ToString(v Value) string {
	switch val := v.(type) {
	case NoneValue:
		return "None"
	case BoolValue:
		if val.Val {
			return "true"
		}
		return "false"
	case NumberValue:
		if val.Val == float64(int64(val.Val)) {
			return fmt.Sprintf("%d", int64(val.Val))
		}
		return fmt.Sprintf("%g", val.Val)
	case StringValue:
		return val.Val
	case SymbolValue:
		return ":" + val.Name
	case *ArrayValue:
		parts := make([]string, len(val.Elements))
		for i, el := range val.Elements {
			parts[i] = ToString(el)
		}
		return strings.Join(parts, "\n")
	case *DictValue:
		keys := val.Keys()
		parts := make([]string, len(keys))
		for i, key := range keys {
			entry, _ := val.Get(key)
			parts[i] = fmt.Sprintf("%s: %s", key, ToString(entry))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *MarkdownValue:
		return val.Node.String()
	case *FunctionValue:
		return "function"
	case NativeFunctionValue:
		return "native_function"
	default:
		return ""
	}
}

// Text is the plain-text form: markdown yields inner text instead of
// rendered source.
func Text(v Value) string {
	switch val := v.(type) {
	case *MarkdownValue:
		return val.Node.Text()
	case *ArrayValue:
		parts := make([]string, len(val.Elements))
		for i, el := range val.Elements {
			parts[i] = Text(el)
		}
		return strings.Join(parts, "\n")
	default:
		return ToString(v)
	}
}
