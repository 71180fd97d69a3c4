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

// Evaluator interprets AST nodes directly against a value and an
// environment. It is a complete strategy on its own and also serves the
// compiler as the fallback for match, qualified access and
// module/include/import nodes.
type Evaluator struct {
	loader   *ModuleLoader
	maxDepth int
	debugger *Debugger
}

func NewEvaluator(loader *ModuleLoader, maxDepth int) *Evaluator {
	if loader == nil {
		loader = NewModuleLoader()
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxCallDepth
	}
	return &Evaluator{loader: loader, maxDepth: maxDepth}
}

func (ev *Evaluator) SetDebugger(d *Debugger) { ev.debugger = d }

// evalProgram threads a value through a statement sequence.
func (ev *Evaluator) evalProgram(program ast.Program, input runtime.Value, env *runtime.Environment, stack *CallStack) (runtime.Value, error) {
	value := input
	for _, node := range program {
		out, err := ev.evalNode(node, value, env, stack)
		if err != nil {
			return nil, err
		}
		value = out
	}
	return value, nil
}

func (ev *Evaluator) evalNode(node ast.Node, input runtime.Value, env *runtime.Environment, stack *CallStack) (runtime.Value, error) {
	if ev.debugger != nil {
		if err := ev.debugger.pause(node, env, stack.Depth()); err != nil {
			return nil, err
		}
	}

	switch n := node.(type) {
	case *ast.Literal:
		return literalValue(n), nil

	case *ast.Ident:
		value, ok := env.Resolve(n.Name)
		if !ok {
			return nil, &NotDefinedError{Name: n.Name, Token: n.Token()}
		}
		return value, nil

	case *ast.Selector:
		sel, err := markdown.ParseSelector(n.Name)
		if err != nil {
			return nil, &UserError{Message: err.Error(), Token: n.Token()}
		}
		return applySelector(sel, input), nil

	case *ast.Self, *ast.Nodes:
		return input, nil

	case *ast.Call:
		return ev.evalCall(n, input, env, stack)

	case *ast.CallDynamic:
		return ev.evalCallDynamic(n, input, env, stack)

	case *ast.Def:
		fn := &runtime.FunctionValue{Params: paramNames(n.Params), Body: n.Body, Closure: env}
		env.Define(n.Name.Name, fn)
		return fn, nil

	case *ast.Fn:
		return &runtime.FunctionValue{Params: paramNames(n.Params), Body: n.Body, Closure: env}, nil

	case *ast.Let:
		value, err := ev.evalNode(n.Value, input, env, stack)
		if err != nil {
			return nil, err
		}
		env.Define(n.Name.Name, value)
		return input, nil

	case *ast.Var:
		value, err := ev.evalNode(n.Value, input, env, stack)
		if err != nil {
			return nil, err
		}
		env.DefineMutable(n.Name.Name, value)
		return input, nil

	case *ast.Assign:
		value, err := ev.evalNode(n.Value, input, env, stack)
		if err != nil {
			return nil, err
		}
		if err := env.Assign(n.Name.Name, value); err != nil {
			return nil, &UserError{Message: err.Error(), Token: n.Token()}
		}
		return input, nil

	case *ast.InterpolatedString:
		return ev.evalInterpolatedString(n, input, env, stack)

	case *ast.And:
		left, err := ev.evalNode(n.Left, input, env, stack)
		if err != nil {
			return nil, err
		}
		if !runtime.IsTrue(left) {
			return runtime.False, nil
		}
		right, err := ev.evalNode(n.Right, input, env, stack)
		if err != nil {
			return nil, err
		}
		if !runtime.IsTrue(right) {
			return runtime.False, nil
		}
		return right, nil

	case *ast.Or:
		left, err := ev.evalNode(n.Left, input, env, stack)
		if err != nil {
			return nil, err
		}
		if runtime.IsTrue(left) {
			return left, nil
		}
		return ev.evalNode(n.Right, input, env, stack)

	case *ast.If:
		for _, branch := range n.Branches {
			if branch.Cond == nil {
				return ev.evalNode(branch.Body, input, env, stack)
			}
			cond, err := ev.evalNode(branch.Cond, input, env, stack)
			if err != nil {
				return nil, err
			}
			if runtime.IsTrue(cond) {
				return ev.evalNode(branch.Body, input, env, stack)
			}
		}
		return runtime.None, nil

	case *ast.While:
		return ev.evalWhile(n, input, env, stack)

	case *ast.Until:
		return ev.evalUntil(n, input, env, stack)

	case *ast.Foreach:
		return ev.evalForeach(n, input, env, stack)

	case *ast.Match:
		return ev.evalMatch(n, input, env, stack)

	case *ast.Try:
		value, err := ev.evalNode(n.Body, input, env, stack)
		if err != nil {
			if isLoopSignal(err) || errors.Is(err, ErrQuit) {
				return nil, err
			}
			return ev.evalNode(n.Catch, input, env, stack)
		}
		return value, nil

	case *ast.Paren:
		return ev.evalNode(n.Inner, input, env, stack)

	case *ast.Block:
		return ev.evalProgram(n.Body, input, env.Extend(), stack)

	case *ast.Module:
		return ev.evalModule(n, env, stack)

	case *ast.QualifiedAccess:
		return ev.evalQualifiedAccess(n, input, env, stack)

	case *ast.Include:
		if err := ev.evalInclude(n, env, stack); err != nil {
			return nil, err
		}
		return input, nil

	case *ast.Import:
		if err := ev.evalImport(n, env, stack); err != nil {
			return nil, err
		}
		return input, nil

	case *ast.Break:
		return nil, errBreak

	case *ast.Continue:
		return nil, errContinue

	case *ast.Macro:
		// Left behind only when the expander did not run; defines nothing.
		return input, nil

	default:
		return nil, &UserError{Message: "unsupported expression", Token: node.Token()}
	}
}

func literalValue(l *ast.Literal) runtime.Value {
	switch l.LitKind {
	case ast.LiteralString:
		return runtime.StringValue{Val: l.Str}
	case ast.LiteralNumber:
		return runtime.NumberValue{Val: l.Num}
	case ast.LiteralBool:
		if l.Bool {
			return runtime.True
		}
		return runtime.False
	case ast.LiteralSymbol:
		return runtime.SymbolValue{Name: l.Symbol}
	default:
		return runtime.None
	}
}

func paramNames(params []*ast.Ident) []string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return names
}

// applySelector tests a document value, or each element of an array,
// against a selector. Non-matching positions become None.
func applySelector(sel markdown.Selector, input runtime.Value) runtime.Value {
	switch v := input.(type) {
	case *runtime.MarkdownValue:
		if sel.Matches(v.TargetNode()) {
			return v
		}
		return runtime.None
	case *runtime.ArrayValue:
		elements := make([]runtime.Value, len(v.Elements))
		for i, el := range v.Elements {
			elements[i] = applySelector(sel, el)
		}
		return runtime.NewArray(elements...)
	default:
		return runtime.None
	}
}

func (ev *Evaluator) evalInterpolatedString(n *ast.InterpolatedString, input runtime.Value, env *runtime.Environment, stack *CallStack) (runtime.Value, error) {
	var sb strings.Builder
	for _, seg := range n.Segments {
		switch seg.Kind {
		case ast.SegmentText:
			sb.WriteString(seg.Text)
		case ast.SegmentExpr:
			value, err := ev.evalNode(seg.Expr, input, env, stack)
			if err != nil {
				return nil, err
			}
			sb.WriteString(runtime.ToString(value))
		case ast.SegmentEnv:
			value, ok := os.LookupEnv(seg.Text)
			if !ok {
				return nil, &EnvNotFoundError{Name: seg.Text, Token: n.Token()}
			}
			sb.WriteString(value)
		case ast.SegmentSelf:
			sb.WriteString(runtime.ToString(input))
		}
	}
	return runtime.StringValue{Val: sb.String()}, nil
}

// evalWhile runs the body in one child environment shared across
// iterations, re-testing the condition after each pass. The loop's
// result is the array of per-iteration values.
func (ev *Evaluator) evalWhile(n *ast.While, input runtime.Value, env *runtime.Environment, stack *CallStack) (runtime.Value, error) {
	loopEnv := env.Extend()
	cond, err := ev.evalNode(n.Cond, input, loopEnv, stack)
	if err != nil {
		return nil, err
	}
	if !runtime.IsTrue(cond) {
		return runtime.None, nil
	}

	var results []runtime.Value
	value := input
	for {
		out, err := ev.evalProgram(n.Body, value, loopEnv, stack)
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

		cond, err = ev.evalNode(n.Cond, value, loopEnv, stack)
		if err != nil {
			return nil, err
		}
		if !runtime.IsTrue(cond) {
			return runtime.NewArray(results...), nil
		}
	}
}

// evalUntil is the same loop as while, but its result is the final
// pipeline value rather than the per-iteration array.
func (ev *Evaluator) evalUntil(n *ast.Until, input runtime.Value, env *runtime.Environment, stack *CallStack) (runtime.Value, error) {
	loopEnv := env.Extend()
	cond, err := ev.evalNode(n.Cond, input, loopEnv, stack)
	if err != nil {
		return nil, err
	}
	if !runtime.IsTrue(cond) {
		return runtime.None, nil
	}

	value := input
	for {
		out, err := ev.evalProgram(n.Body, value, loopEnv, stack)
		switch {
		case errors.Is(err, errBreak):
			return value, nil
		case errors.Is(err, errContinue):
		case err != nil:
			return nil, err
		default:
			value = out
		}

		cond, err = ev.evalNode(n.Cond, value, loopEnv, stack)
		if err != nil {
			return nil, err
		}
		if !runtime.IsTrue(cond) {
			return value, nil
		}
	}
}

func (ev *Evaluator) evalForeach(n *ast.Foreach, input runtime.Value, env *runtime.Environment, stack *CallStack) (runtime.Value, error) {
	iterable, err := ev.evalNode(n.Iterable, input, env, stack)
	if err != nil {
		return nil, err
	}

	var items []runtime.Value
	switch v := iterable.(type) {
	case *runtime.ArrayValue:
		items = v.Elements
	case runtime.StringValue:
		for _, r := range v.Val {
			items = append(items, runtime.StringValue{Val: string(r)})
		}
	default:
		return nil, &InvalidTypesError{Name: "foreach", Args: []string{iterable.Kind().String()}, Token: n.Token()}
	}

	loopEnv := env.Extend()
	results := make([]runtime.Value, 0, len(items))
	for _, item := range items {
		loopEnv.Define(n.Name.Name, item)
		out, err := ev.evalProgram(n.Body, item, loopEnv, stack)
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
}

func (ev *Evaluator) evalMatch(n *ast.Match, input runtime.Value, env *runtime.Environment, stack *CallStack) (runtime.Value, error) {
	value, err := ev.evalNode(n.Value, input, env, stack)
	if err != nil {
		return nil, err
	}
	for _, arm := range n.Arms {
		armEnv := env.Extend()
		if !matchPattern(arm.Pattern, value, armEnv) {
			continue
		}
		if arm.Guard != nil {
			guard, err := ev.evalNode(arm.Guard, input, armEnv, stack)
			if err != nil {
				return nil, err
			}
			if !runtime.IsTrue(guard) {
				continue
			}
		}
		return ev.evalNode(arm.Body, input, armEnv, stack)
	}
	return runtime.None, nil
}

func matchPattern(p *ast.Pattern, value runtime.Value, env *runtime.Environment) bool {
	switch p.Kind {
	case ast.PatternWildcard:
		return true
	case ast.PatternLiteral:
		return runtime.Equal(value, literalValue(p.Literal))
	case ast.PatternIdent:
		env.Define(p.Name, value)
		return true
	case ast.PatternType:
		return strings.EqualFold(value.Kind().String(), p.TypeName)
	case ast.PatternArray, ast.PatternArrayRest:
		arr, ok := value.(*runtime.ArrayValue)
		if !ok {
			return false
		}
		hasRest := p.Kind == ast.PatternArrayRest || p.Rest != ""
		if hasRest {
			if len(arr.Elements) < len(p.Elements) {
				return false
			}
		} else if len(arr.Elements) != len(p.Elements) {
			return false
		}
		for i, elem := range p.Elements {
			if !matchPattern(elem, arr.Elements[i], env) {
				return false
			}
		}
		if hasRest && p.Rest != "" {
			rest := make([]runtime.Value, len(arr.Elements)-len(p.Elements))
			copy(rest, arr.Elements[len(p.Elements):])
			env.Define(p.Rest, runtime.NewArray(rest...))
		}
		return true
	case ast.PatternDict:
		dict, ok := value.(*runtime.DictValue)
		if !ok {
			return false
		}
		for i, key := range p.Keys {
			entry, found := dict.Get(key)
			if !found || !matchPattern(p.Values[i], entry, env) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// evalCall resolves the callee name in the live environment: a user
// function by name first, then a native function, else the call fails.
func (ev *Evaluator) evalCall(n *ast.Call, input runtime.Value, env *runtime.Environment, stack *CallStack) (runtime.Value, error) {
	if n.Optional && runtime.IsNone(input) {
		return runtime.None, nil
	}

	resolved, found := env.Resolve(n.Name.Name)
	if found {
		switch fn := resolved.(type) {
		case *runtime.FunctionValue:
			args, err := ev.evalArgs(n.Args, input, env, stack)
			if err != nil {
				return nil, err
			}
			return ev.applyFunction(fn, n.Name.Name, input, args, stack, n.Token())
		case runtime.NativeFunctionValue:
			args, err := ev.evalArgs(n.Args, input, env, stack)
			if err != nil {
				return nil, err
			}
			return callBuiltin(input, fn.Name, args, n.Token())
		default:
			return nil, &InvalidDefinitionError{Name: n.Name.Name, Token: n.Token()}
		}
	}

	args, err := ev.evalArgs(n.Args, input, env, stack)
	if err != nil {
		return nil, err
	}
	return callBuiltin(input, n.Name.Name, args, n.Token())
}

func (ev *Evaluator) evalCallDynamic(n *ast.CallDynamic, input runtime.Value, env *runtime.Environment, stack *CallStack) (runtime.Value, error) {
	callee, err := ev.evalNode(n.Callee, input, env, stack)
	if err != nil {
		return nil, err
	}
	args, err := ev.evalArgs(n.Args, input, env, stack)
	if err != nil {
		return nil, err
	}
	switch fn := callee.(type) {
	case *runtime.FunctionValue:
		return ev.applyFunction(fn, "<dynamic>", input, args, stack, n.Token())
	case runtime.NativeFunctionValue:
		return callBuiltin(input, fn.Name, args, n.Token())
	default:
		return nil, &InvalidDefinitionError{Name: "<dynamic>", Token: n.Token()}
	}
}

func (ev *Evaluator) evalArgs(nodes []ast.Node, input runtime.Value, env *runtime.Environment, stack *CallStack) ([]runtime.Value, error) {
	args := make([]runtime.Value, len(nodes))
	for i, node := range nodes {
		value, err := ev.evalNode(node, input, env, stack)
		if err != nil {
			return nil, err
		}
		args[i] = value
	}
	return args, nil
}

// applyFunction binds arguments in a child of the closure environment
// and walks the function body. The depth guard fires before any host
// stack growth.
func (ev *Evaluator) applyFunction(fn *runtime.FunctionValue, name string, input runtime.Value, args []runtime.Value, stack *CallStack, tok lexer.Token) (runtime.Value, error) {
	if stack.Depth() >= ev.maxDepth {
		return nil, &RecursionError{MaxDepth: ev.maxDepth, Token: tok}
	}
	callEnv := runtime.NewEnvironment(fn.Closure)
	if err := bindParams(fn.Params, name, input, args, callEnv, tok); err != nil {
		return nil, err
	}
	stack.Push()
	defer stack.Pop()
	return ev.evalProgram(fn.Body, input, callEnv, stack)
}

// bindParams binds positionally when counts match; when parameters
// exceed arguments by one, the first parameter takes the pipeline value.
func bindParams(params []string, name string, input runtime.Value, args []runtime.Value, env *runtime.Environment, tok lexer.Token) error {
	switch {
	case len(params) == len(args):
		for i, p := range params {
			env.Define(p, args[i])
		}
	case len(params) == len(args)+1:
		env.Define(params[0], input)
		for i, p := range params[1:] {
			env.Define(p, args[i])
		}
	default:
		return &InvalidNumberOfArgumentsError{Name: name, Expected: len(params), Got: len(args), Token: tok}
	}
	return nil
}

// callBuiltin dispatches a native call and stamps the call-site token
// onto errors raised without one.
func callBuiltin(input runtime.Value, name string, args []runtime.Value, tok lexer.Token) (runtime.Value, error) {
	value, err := EvalBuiltin(input, name, args)
	if err == nil {
		return value, nil
	}
	switch e := err.(type) {
	case *NotDefinedError:
		e.Token = tok
	case *InvalidTypesError:
		e.Token = tok
	case *InvalidNumberOfArgumentsError:
		e.Token = tok
	case *ZeroDivisionError:
		e.Token = tok
	case *UserError:
		e.Token = tok
	}
	return nil, err
}

func (ev *Evaluator) evalModule(n *ast.Module, env *runtime.Environment, stack *CallStack) (runtime.Value, error) {
	moduleEnv := env.Extend()
	if _, err := ev.evalProgram(n.Body, runtime.None, moduleEnv, stack); err != nil {
		return nil, err
	}
	namespace := namespaceOf(moduleEnv)
	env.Define(n.Name.Name, namespace)
	return runtime.None, nil
}

func namespaceOf(env *runtime.Environment) *runtime.DictValue {
	namespace := runtime.NewDict()
	for _, key := range env.Keys() {
		value, _ := env.Resolve(key)
		namespace.Set(key, value)
	}
	return namespace
}

func (ev *Evaluator) evalQualifiedAccess(n *ast.QualifiedAccess, input runtime.Value, env *runtime.Environment, stack *CallStack) (runtime.Value, error) {
	first, ok := env.Resolve(n.Path[0].Name)
	if !ok {
		return nil, &NotDefinedError{Name: n.Path[0].Name, Token: n.Token()}
	}
	namespace, ok := first.(*runtime.DictValue)
	if !ok {
		return nil, &InvalidDefinitionError{Name: n.Path[0].Name, Token: n.Token()}
	}
	for _, seg := range n.Path[1:] {
		next, found := namespace.Get(seg.Name)
		if !found {
			return nil, &NotDefinedError{Name: seg.Name, Token: n.Token()}
		}
		namespace, ok = next.(*runtime.DictValue)
		if !ok {
			return nil, &InvalidDefinitionError{Name: seg.Name, Token: n.Token()}
		}
	}

	member, found := namespace.Get(n.Target.Name)
	if !found {
		return nil, &NotDefinedError{Name: n.Target.Name, Token: n.Token()}
	}
	if !n.IsCall {
		return member, nil
	}

	args, err := ev.evalArgs(n.Args, input, env, stack)
	if err != nil {
		return nil, err
	}
	switch fn := member.(type) {
	case *runtime.FunctionValue:
		return ev.applyFunction(fn, n.Target.Name, input, args, stack, n.Token())
	case runtime.NativeFunctionValue:
		return callBuiltin(input, fn.Name, args, n.Token())
	default:
		return nil, &InvalidDefinitionError{Name: n.Target.Name, Token: n.Token()}
	}
}

// evalInclude loads a module and merges its function and variable
// definitions into the current environment.
func (ev *Evaluator) evalInclude(n *ast.Include, env *runtime.Environment, stack *CallStack) error {
	program, err := ev.loader.Load(n.Path)
	if err != nil {
		return err
	}
	for _, node := range program {
		switch decl := node.(type) {
		case *ast.Def, *ast.Let, *ast.Var, *ast.Module:
			if _, err := ev.evalNode(decl, runtime.None, env, stack); err != nil {
				return err
			}
		}
	}
	return nil
}

// evalImport loads a module under its own namespace, bound to the
// module's name.
func (ev *Evaluator) evalImport(n *ast.Import, env *runtime.Environment, stack *CallStack) error {
	program, err := ev.loader.Load(n.Path)
	if err != nil {
		return err
	}
	moduleEnv := env.Extend()
	for _, node := range program {
		switch decl := node.(type) {
		case *ast.Def, *ast.Let, *ast.Var, *ast.Module:
			if _, err := ev.evalNode(decl, runtime.None, moduleEnv, stack); err != nil {
				return err
			}
		}
	}
	env.Define(ModuleName(n.Path), namespaceOf(moduleEnv))
	return nil
}
