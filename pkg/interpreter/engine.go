package interpreter

import (
	"mq/engine-go/pkg/ast"
	"mq/engine-go/pkg/markdown"
	"mq/engine-go/pkg/parser"
	"mq/engine-go/pkg/runtime"
)

// Options configure an engine instance.
type Options struct {
	// UseCompiler selects the closure-compiler strategy; false selects
	// the tree-walking evaluator.
	UseCompiler bool
	// FilterNone drops None results from the output sequence.
	FilterNone bool
	// MaxCallDepth bounds user-function recursion (0 means the default).
	MaxCallDepth int
	// SearchPaths are the module loader's include/import roots.
	SearchPaths []string
}

func DefaultOptions() Options {
	return Options{UseCompiler: true, MaxCallDepth: DefaultMaxCallDepth}
}

// Engine evaluates mq programs over sequences of input values. One
// engine owns one environment root and one call stack; for parallelism
// across inputs, instantiate one engine per worker.
type Engine struct {
	opts     Options
	env      *runtime.Environment
	loader   *ModuleLoader
	debugger *Debugger
}

func New(opts Options) *Engine {
	if opts.MaxCallDepth <= 0 {
		opts.MaxCallDepth = DefaultMaxCallDepth
	}
	env := runtime.NewEnvironment(nil)
	env.SetNativeResolver(NativeResolver)
	return &Engine{
		opts:   opts,
		env:    env,
		loader: NewModuleLoader(opts.SearchPaths...),
	}
}

// SetUseCompiler toggles between the compiler and the tree-walker.
func (e *Engine) SetUseCompiler(use bool) { e.opts.UseCompiler = use }

// AddSearchPath appends a module search root.
func (e *Engine) AddSearchPath(path string) { e.loader.AddSearchPath(path) }

// DefineStringValue binds a string in the engine's root environment.
func (e *Engine) DefineStringValue(name, value string) {
	e.env.Define(name, runtime.StringValue{Val: value})
}

// AttachDebugger installs a debugger invoked at node boundaries.
func (e *Engine) AttachDebugger(handler DebugHandler) *Debugger {
	e.debugger = NewDebugger(handler)
	return e.debugger
}

// Eval parses, expands and evaluates source code over the inputs.
func (e *Engine) Eval(code string, inputs []runtime.Value) ([]runtime.Value, error) {
	program, err := parser.Parse(code, "main")
	if err != nil {
		return nil, err
	}
	expanded, err := Expand(program)
	if err != nil {
		return nil, err
	}
	return e.EvalProgram(expanded, inputs)
}

// EvalProgram evaluates an already-expanded program over the inputs.
//
// Top-level definitions, includes, imports and modules register once
// into the shared environment and are excluded from per-input
// execution. A `nodes` marker splits the rest: the part before runs
// once per input, the part after runs exactly once against the array of
// collected results, and an array result of that part is flattened into
// the output sequence.
func (e *Engine) EvalProgram(program ast.Program, inputs []runtime.Value) ([]runtime.Value, error) {
	stack := &CallStack{}
	ev := NewEvaluator(e.loader, e.opts.MaxCallDepth)
	if e.debugger != nil {
		ev.SetDebugger(e.debugger)
	}

	pipeline := make(ast.Program, 0, len(program))
	for _, node := range program {
		switch node.(type) {
		case *ast.Def, *ast.Include, *ast.Import, *ast.Module:
			if _, err := ev.evalNode(node, runtime.None, e.env, stack); err != nil {
				return nil, err
			}
		default:
			pipeline = append(pipeline, node)
		}
	}

	head, tail, hasNodes := splitAtNodes(pipeline)

	headSteps, err := e.buildSteps(head, ev)
	if err != nil {
		return nil, err
	}

	outputs := make([]runtime.Value, 0, len(inputs))
	for _, input := range inputs {
		out, err := e.runOnInput(headSteps, input, stack)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
	}

	if hasNodes {
		tailSteps, err := e.buildSteps(tail, ev)
		if err != nil {
			return nil, err
		}
		result, err := runSteps(tailSteps, runtime.NewArray(outputs...), stack, e.env)
		if err != nil {
			return nil, err
		}
		if arr, ok := result.(*runtime.ArrayValue); ok {
			outputs = arr.Elements
		} else {
			outputs = []runtime.Value{result}
		}
	}

	if e.opts.FilterNone {
		kept := outputs[:0]
		for _, out := range outputs {
			if !runtime.IsNone(out) {
				kept = append(kept, out)
			}
		}
		outputs = kept
	}
	return outputs, nil
}

func splitAtNodes(program ast.Program) (head, tail ast.Program, hasNodes bool) {
	for i, node := range program {
		if _, ok := node.(*ast.Nodes); ok {
			return program[:i], program[i+1:], true
		}
	}
	return program, nil, false
}

// buildSteps lowers the program with the selected strategy. Tree-walker
// steps are thin closures over the evaluator so both strategies run
// through the same pipeline plumbing.
func (e *Engine) buildSteps(program ast.Program, ev *Evaluator) ([]Step, error) {
	if e.opts.UseCompiler {
		compiler := NewCompiler(e.loader, e.opts.MaxCallDepth)
		if e.debugger != nil {
			compiler.SetDebugger(e.debugger)
		}
		return compiler.Compile(program)
	}
	steps := make([]Step, len(program))
	for i, node := range program {
		node := node
		steps[i] = func(input runtime.Value, stack *CallStack, env *runtime.Environment) (runtime.Value, error) {
			return ev.evalNode(node, input, env, stack)
		}
	}
	return steps, nil
}

// runOnInput applies the per-input steps. A document input is mapped
// recursively over every node of its tree; other inputs flow through
// the steps directly.
func (e *Engine) runOnInput(steps []Step, input runtime.Value, stack *CallStack) (runtime.Value, error) {
	md, ok := input.(*runtime.MarkdownValue)
	if !ok {
		return runSteps(steps, input, stack, e.env)
	}
	mapped, err := md.Node.MapValues(func(node *markdown.Node) (*markdown.Node, error) {
		result, err := runSteps(steps, runtime.NewMarkdown(node), stack, e.env)
		if err != nil {
			return nil, err
		}
		return markdownResult(node, result), nil
	})
	if err != nil {
		return nil, err
	}
	return runtime.NewMarkdown(mapped), nil
}

// markdownResult converts a per-node program result back into a tree
// node. None turns the node into a fragment of its children so the
// traversal descends; functions are not representable and become empty;
// document results replace the node; scalars and arrays become text.
func markdownResult(node *markdown.Node, result runtime.Value) *markdown.Node {
	switch v := result.(type) {
	case runtime.NoneValue:
		return node.ToFragment()
	case *runtime.FunctionValue:
		return markdown.Empty()
	case runtime.NativeFunctionValue:
		return markdown.Empty()
	case *runtime.MarkdownValue:
		return v.Node
	default:
		return markdown.NewText(runtime.ToString(result))
	}
}
