package interpreter

import (
	"errors"
	"os"
	"strings"

	"mq/engine-go/pkg/ast"
	"mq/engine-go/pkg/lexer"
	"mq/engine-go/pkg/markdown"
	"mq/engine-go/pkg/runtime"
)

// Step is one compiled evaluation step: an opaque callable over the
// pipeline value, the call stack and the live environment.
type Step func(input runtime.Value, stack *CallStack, env *runtime.Environment) (runtime.Value, error)

// Compiler lowers an expanded program once into an ordered list of
// steps. Identifier resolution stays late bound: a step resolves names
// against the live environment at run time, so closures observe
// bindings introduced after compilation. Match, qualified access and
// module/include/import lower to a step that re-invokes the tree-walking
// evaluator, so their semantics live in one place.
type Compiler struct {
	maxDepth int
	fallback *Evaluator
	debugger *Debugger
}

func NewCompiler(loader *ModuleLoader, maxDepth int) *Compiler {
	fallback := NewEvaluator(loader, maxDepth)
	return &Compiler{maxDepth: fallback.maxDepth, fallback: fallback}
}

func (c *Compiler) SetDebugger(d *Debugger) {
	c.debugger = d
	c.fallback.SetDebugger(d)
}

// Compile lowers every node of the program. The first error aborts the
// whole compilation with no partial program.
func (c *Compiler) Compile(program ast.Program) ([]Step, error) {
	steps := make([]Step, len(program))
	for i, node := range program {
		step, err := c.compileNode(node)
		if err != nil {
			return nil, err
		}
		steps[i] = step
	}
	return steps, nil
}

func runSteps(steps []Step, input runtime.Value, stack *CallStack, env *runtime.Environment) (runtime.Value, error) {
	value := input
	for _, step := range steps {
		out, err := step(value, stack, env)
		if err != nil {
			return nil, err
		}
		value = out
	}
	return value, nil
}

func (c *Compiler) compileNode(node ast.Node) (Step, error) {
	step, err := c.lower(node)
	if err != nil {
		return nil, err
	}
	if c.debugger == nil {
		return step, nil
	}
	return func(input runtime.Value, stack *CallStack, env *runtime.Environment) (runtime.Value, error) {
		if err := c.debugger.pause(node, env, stack.Depth()); err != nil {
			return nil, err
		}
		return step(input, stack, env)
	}, nil
}

func (c *Compiler) lower(node ast.Node) (Step, error) {
	switch n := node.(type) {
	case *ast.Literal:
		// Constant folded: the step ignores its input.
		value := literalValue(n)
		return func(runtime.Value, *CallStack, *runtime.Environment) (runtime.Value, error) {
			return value, nil
		}, nil

	case *ast.Self, *ast.Nodes:
		return func(input runtime.Value, _ *CallStack, _ *runtime.Environment) (runtime.Value, error) {
			return input, nil
		}, nil

	case *ast.Ident:
		name := n.Name
		tok := n.Token()
		return func(_ runtime.Value, _ *CallStack, env *runtime.Environment) (runtime.Value, error) {
			value, ok := env.Resolve(name)
			if !ok {
				return nil, &NotDefinedError{Name: name, Token: tok}
			}
			return value, nil
		}, nil

	case *ast.Selector:
		sel, err := markdown.ParseSelector(n.Name)
		if err != nil {
			return nil, &UserError{Message: err.Error(), Token: n.Token()}
		}
		return func(input runtime.Value, _ *CallStack, _ *runtime.Environment) (runtime.Value, error) {
			return applySelector(sel, input), nil
		}, nil

	case *ast.Let:
		value, err := c.compileNode(n.Value)
		if err != nil {
			return nil, err
		}
		name := n.Name.Name
		return func(input runtime.Value, stack *CallStack, env *runtime.Environment) (runtime.Value, error) {
			out, err := value(input, stack, env)
			if err != nil {
				return nil, err
			}
			env.Define(name, out)
			return input, nil
		}, nil

	case *ast.Var:
		value, err := c.compileNode(n.Value)
		if err != nil {
			return nil, err
		}
		name := n.Name.Name
		return func(input runtime.Value, stack *CallStack, env *runtime.Environment) (runtime.Value, error) {
			out, err := value(input, stack, env)
			if err != nil {
				return nil, err
			}
			env.DefineMutable(name, out)
			return input, nil
		}, nil

	case *ast.Assign:
		value, err := c.compileNode(n.Value)
		if err != nil {
			return nil, err
		}
		name := n.Name.Name
		tok := n.Token()
		return func(input runtime.Value, stack *CallStack, env *runtime.Environment) (runtime.Value, error) {
			out, err := value(input, stack, env)
			if err != nil {
				return nil, err
			}
			if err := env.Assign(name, out); err != nil {
				return nil, &UserError{Message: err.Error(), Token: tok}
			}
			return input, nil
		}, nil

	case *ast.Def:
		name := n.Name.Name
		params := paramNames(n.Params)
		body := n.Body
		return func(_ runtime.Value, _ *CallStack, env *runtime.Environment) (runtime.Value, error) {
			fn := &runtime.FunctionValue{Params: params, Body: body, Closure: env}
			env.Define(name, fn)
			return fn, nil
		}, nil

	case *ast.Fn:
		params := paramNames(n.Params)
		body := n.Body
		return func(_ runtime.Value, _ *CallStack, env *runtime.Environment) (runtime.Value, error) {
			return &runtime.FunctionValue{Params: params, Body: body, Closure: env}, nil
		}, nil

	case *ast.And:
		left, err := c.compileNode(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := c.compileNode(n.Right)
		if err != nil {
			return nil, err
		}
		return func(input runtime.Value, stack *CallStack, env *runtime.Environment) (runtime.Value, error) {
			lv, err := left(input, stack, env)
			if err != nil {
				return nil, err
			}
			if !runtime.IsTrue(lv) {
				return runtime.False, nil
			}
			rv, err := right(input, stack, env)
			if err != nil {
				return nil, err
			}
			if !runtime.IsTrue(rv) {
				return runtime.False, nil
			}
			return rv, nil
		}, nil

	case *ast.Or:
		left, err := c.compileNode(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := c.compileNode(n.Right)
		if err != nil {
			return nil, err
		}
		return func(input runtime.Value, stack *CallStack, env *runtime.Environment) (runtime.Value, error) {
			lv, err := left(input, stack, env)
			if err != nil {
				return nil, err
			}
			if runtime.IsTrue(lv) {
				return lv, nil
			}
			return right(input, stack, env)
		}, nil

	case *ast.If:
		type branch struct {
			cond Step
			body Step
		}
		branches := make([]branch, len(n.Branches))
		for i, b := range n.Branches {
			var cond Step
			var err error
			if b.Cond != nil {
				cond, err = c.compileNode(b.Cond)
				if err != nil {
					return nil, err
				}
			}
			body, err := c.compileNode(b.Body)
			if err != nil {
				return nil, err
			}
			branches[i] = branch{cond: cond, body: body}
		}
		return func(input runtime.Value, stack *CallStack, env *runtime.Environment) (runtime.Value, error) {
			for _, b := range branches {
				if b.cond == nil {
					return b.body(input, stack, env)
				}
				cv, err := b.cond(input, stack, env)
				if err != nil {
					return nil, err
				}
				if runtime.IsTrue(cv) {
					return b.body(input, stack, env)
				}
			}
			return runtime.None, nil
		}, nil

	case *ast.While:
		cond, err := c.compileNode(n.Cond)
		if err != nil {
			return nil, err
		}
		body, err := c.Compile(n.Body)
		if err != nil {
			return nil, err
		}
		return func(input runtime.Value, stack *CallStack, env *runtime.Environment) (runtime.Value, error) {
			loopEnv := env.Extend()
			cv, err := cond(input, stack, loopEnv)
			if err != nil {
				return nil, err
			}
			if !runtime.IsTrue(cv) {
				return runtime.None, nil
			}
			var results []runtime.Value
			value := input
			for {
				out, err := runSteps(body, value, stack, loopEnv)
				switch {
				case errors.Is(err, errBreak):
					if len(results) == 0 {
						return runtime.None, nil
					}
					return results[len(results)-1], nil
				case errors.Is(err, errContinue):
					if len(results) == 0 {
						value = runtime.None
					}
				case err != nil:
					return nil, err
				default:
					value = out
					results = append(results, out)
				}
				cv, err = cond(value, stack, loopEnv)
				if err != nil {
					return nil, err
				}
				if !runtime.IsTrue(cv) {
					return runtime.NewArray(results...), nil
				}
			}
		}, nil

	case *ast.Until:
		cond, err := c.compileNode(n.Cond)
		if err != nil {
			return nil, err
		}
		body, err := c.Compile(n.Body)
		if err != nil {
			return nil, err
		}
		return func(input runtime.Value, stack *CallStack, env *runtime.Environment) (runtime.Value, error) {
			loopEnv := env.Extend()
			cv, err := cond(input, stack, loopEnv)
			if err != nil {
				return nil, err
			}
			if !runtime.IsTrue(cv) {
				return runtime.None, nil
			}
			value := input
			for {
				out, err := runSteps(body, value, stack, loopEnv)
				switch {
				case errors.Is(err, errBreak):
					return value, nil
				case errors.Is(err, errContinue):
				case err != nil:
					return nil, err
				default:
					value = out
				}
				cv, err = cond(value, stack, loopEnv)
				if err != nil {
					return nil, err
				}
				if !runtime.IsTrue(cv) {
					return value, nil
				}
			}
		}, nil

	case *ast.Foreach:
		iterable, err := c.compileNode(n.Iterable)
		if err != nil {
			return nil, err
		}
		body, err := c.Compile(n.Body)
		if err != nil {
			return nil, err
		}
		name := n.Name.Name
		tok := n.Token()
		return func(input runtime.Value, stack *CallStack, env *runtime.Environment) (runtime.Value, error) {
			collection, err := iterable(input, stack, env)
			if err != nil {
				return nil, err
			}
			var items []runtime.Value
			switch v := collection.(type) {
			case *runtime.ArrayValue:
				items = v.Elements
			case runtime.StringValue:
				for _, r := range v.Val {
					items = append(items, runtime.StringValue{Val: string(r)})
				}
			default:
				return nil, &InvalidTypesError{Name: "foreach", Args: []string{collection.Kind().String()}, Token: tok}
			}
			loopEnv := env.Extend()
			results := make([]runtime.Value, 0, len(items))
			for _, item := range items {
				loopEnv.Define(name, item)
				out, err := runSteps(body, item, stack, loopEnv)
				switch {
				case errors.Is(err, errBreak):
					return runtime.NewArray(results...), nil
				case errors.Is(err, errContinue):
					continue
				case err != nil:
					return nil, err
				}
				results = append(results, out)
			}
			return runtime.NewArray(results...), nil
		}, nil

	case *ast.Try:
		body, err := c.compileNode(n.Body)
		if err != nil {
			return nil, err
		}
		catch, err := c.compileNode(n.Catch)
		if err != nil {
			return nil, err
		}
		return func(input runtime.Value, stack *CallStack, env *runtime.Environment) (runtime.Value, error) {
			value, err := body(input, stack, env)
			if err != nil {
				if isLoopSignal(err) || errors.Is(err, ErrQuit) {
					return nil, err
				}
				return catch(input, stack, env)
			}
			return value, nil
		}, nil

	case *ast.Paren:
		return c.compileNode(n.Inner)

	case *ast.Block:
		body, err := c.Compile(n.Body)
		if err != nil {
			return nil, err
		}
		return func(input runtime.Value, stack *CallStack, env *runtime.Environment) (runtime.Value, error) {
			return runSteps(body, input, stack, env.Extend())
		}, nil

	case *ast.InterpolatedString:
		return c.compileInterpolatedString(n)

	case *ast.Break:
		return func(runtime.Value, *CallStack, *runtime.Environment) (runtime.Value, error) {
			return nil, errBreak
		}, nil

	case *ast.Continue:
		return func(runtime.Value, *CallStack, *runtime.Environment) (runtime.Value, error) {
			return nil, errContinue
		}, nil

	case *ast.Call:
		return c.compileCall(n)

	case *ast.CallDynamic:
		return c.compileCallDynamic(n)

	case *ast.Macro:
		// Only present when the expander did not run; defines nothing.
		return func(input runtime.Value, _ *CallStack, _ *runtime.Environment) (runtime.Value, error) {
			return input, nil
		}, nil

	case *ast.Match, *ast.QualifiedAccess:
		// Tree-walker fallback; the pipeline value flows through.
		return func(input runtime.Value, stack *CallStack, env *runtime.Environment) (runtime.Value, error) {
			return c.fallback.evalNode(node, input, env, stack)
		}, nil

	case *ast.Module, *ast.Include, *ast.Import:
		// Tree-walker fallback; these ignore the pipeline value.
		return func(_ runtime.Value, stack *CallStack, env *runtime.Environment) (runtime.Value, error) {
			return c.fallback.evalNode(node, runtime.None, env, stack)
		}, nil

	default:
		return nil, &UserError{Message: "unsupported expression", Token: node.Token()}
	}
}

func (c *Compiler) compileInterpolatedString(n *ast.InterpolatedString) (Step, error) {
	type segment struct {
		kind ast.SegmentKind
		text string
		expr Step
	}
	segments := make([]segment, len(n.Segments))
	for i, seg := range n.Segments {
		out := segment{kind: seg.Kind, text: seg.Text}
		if seg.Kind == ast.SegmentExpr {
			compiled, err := c.compileNode(seg.Expr)
			if err != nil {
				return nil, err
			}
			out.expr = compiled
		}
		segments[i] = out
	}
	tok := n.Token()
	return func(input runtime.Value, stack *CallStack, env *runtime.Environment) (runtime.Value, error) {
		var sb strings.Builder
		for _, seg := range segments {
			switch seg.kind {
			case ast.SegmentText:
				sb.WriteString(seg.text)
			case ast.SegmentExpr:
				value, err := seg.expr(input, stack, env)
				if err != nil {
					return nil, err
				}
				sb.WriteString(runtime.ToString(value))
			case ast.SegmentEnv:
				value, ok := os.LookupEnv(seg.text)
				if !ok {
					return nil, &EnvNotFoundError{Name: seg.text, Token: tok}
				}
				sb.WriteString(value)
			case ast.SegmentSelf:
				sb.WriteString(runtime.ToString(input))
			}
		}
		return runtime.StringValue{Val: sb.String()}, nil
	}, nil
}

// compileCall resolves the callee name at run time against the live
// environment. A user function's body is compiled per call; no
// cross-call cache.
func (c *Compiler) compileCall(n *ast.Call) (Step, error) {
	args, err := c.Compile(ast.Program(n.Args))
	if err != nil {
		return nil, err
	}
	name := n.Name.Name
	optional := n.Optional
	tok := n.Token()
	return func(input runtime.Value, stack *CallStack, env *runtime.Environment) (runtime.Value, error) {
		if optional && runtime.IsNone(input) {
			return runtime.None, nil
		}

		resolved, found := env.Resolve(name)
		if found {
			switch fn := resolved.(type) {
			case *runtime.FunctionValue:
				argValues, err := evalSteps(args, input, stack, env)
				if err != nil {
					return nil, err
				}
				return c.applyCompiled(fn, name, input, argValues, stack, tok)
			case runtime.NativeFunctionValue:
				argValues, err := evalSteps(args, input, stack, env)
				if err != nil {
					return nil, err
				}
				return callBuiltin(input, fn.Name, argValues, tok)
			default:
				return nil, &InvalidDefinitionError{Name: name, Token: tok}
			}
		}

		argValues, err := evalSteps(args, input, stack, env)
		if err != nil {
			return nil, err
		}
		return callBuiltin(input, name, argValues, tok)
	}, nil
}

func (c *Compiler) compileCallDynamic(n *ast.CallDynamic) (Step, error) {
	callee, err := c.compileNode(n.Callee)
	if err != nil {
		return nil, err
	}
	args, err := c.Compile(ast.Program(n.Args))
	if err != nil {
		return nil, err
	}
	tok := n.Token()
	return func(input runtime.Value, stack *CallStack, env *runtime.Environment) (runtime.Value, error) {
		calleeValue, err := callee(input, stack, env)
		if err != nil {
			return nil, err
		}
		argValues, err := evalSteps(args, input, stack, env)
		if err != nil {
			return nil, err
		}
		switch fn := calleeValue.(type) {
		case *runtime.FunctionValue:
			return c.applyCompiled(fn, "<dynamic>", input, argValues, stack, tok)
		case runtime.NativeFunctionValue:
			return callBuiltin(input, fn.Name, argValues, tok)
		default:
			return nil, &InvalidDefinitionError{Name: "<dynamic>", Token: tok}
		}
	}, nil
}

// evalSteps evaluates compiled argument expressions, each against the
// caller's pipeline value and environment.
func evalSteps(steps []Step, input runtime.Value, stack *CallStack, env *runtime.Environment) ([]runtime.Value, error) {
	values := make([]runtime.Value, len(steps))
	for i, step := range steps {
		out, err := step(input, stack, env)
		if err != nil {
			return nil, err
		}
		values[i] = out
	}
	return values, nil
}

func (c *Compiler) applyCompiled(fn *runtime.FunctionValue, name string, input runtime.Value, args []runtime.Value, stack *CallStack, tok lexer.Token) (runtime.Value, error) {
	if stack.Depth() >= c.maxDepth {
		return nil, &RecursionError{MaxDepth: c.maxDepth, Token: tok}
	}
	callEnv := runtime.NewEnvironment(fn.Closure)
	if err := bindParams(fn.Params, name, input, args, callEnv, tok); err != nil {
		return nil, err
	}
	body, err := c.Compile(fn.Body)
	if err != nil {
		return nil, err
	}
	stack.Push()
	defer stack.Pop()
	return runSteps(body, input, stack, callEnv)
}
