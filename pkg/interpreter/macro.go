package interpreter

import (
	"mq/engine-go/pkg/ast"
)

// MaxMacroDepth bounds nested macro expansion so self-referential macros
// terminate with an error instead of diverging.
const MaxMacroDepth = 1000

type macroDefinition struct {
	params []string
	body   ast.Node
}

// MacroExpander rewrites a program so no macro definition or macro call
// remains. Definitions are collected into one flat registry in a single
// pass before any expansion, so a later top-level definition is visible
// to an earlier call site.
type MacroExpander struct {
	macros map[string]macroDefinition
	depth  int
}

func NewMacroExpander() *MacroExpander {
	return &MacroExpander{macros: make(map[string]macroDefinition)}
}

// Expand is the convenience entry point over a fresh expander.
func Expand(program ast.Program) (ast.Program, error) {
	return NewMacroExpander().ExpandProgram(program)
}

// ExpandProgram collects the program's macro definitions, drops them,
// and expands every remaining node. Calls whose name matches a
// registered macro are replaced by their substituted bodies.
func (m *MacroExpander) ExpandProgram(program ast.Program) (ast.Program, error) {
	m.collect(program)

	expanded := make(ast.Program, 0, len(program))
	for _, node := range program {
		if _, ok := node.(*ast.Macro); ok {
			continue
		}
		out, err := m.expandNode(node)
		if err != nil {
			return nil, err
		}
		expanded = append(expanded, out)
	}
	return expanded, nil
}

func (m *MacroExpander) collect(program ast.Program) {
	for _, node := range program {
		macro, ok := node.(*ast.Macro)
		if !ok {
			continue
		}
		params := make([]string, len(macro.Params))
		for i, p := range macro.Params {
			params[i] = p.Name
		}
		m.macros[macro.Name.Name] = macroDefinition{params: params, body: macro.Body}
	}
}

func (m *MacroExpander) expandNode(node ast.Node) (ast.Node, error) {
	switch n := node.(type) {
	case *ast.Call:
		if _, ok := m.macros[n.Name.Name]; ok {
			return m.expandMacroCall(n)
		}
		args, err := m.expandNodes(n.Args)
		if err != nil {
			return nil, err
		}
		return ast.NewCall(n.Name, args, n.Optional, n.Token()), nil

	case *ast.CallDynamic:
		callee, err := m.expandNode(n.Callee)
		if err != nil {
			return nil, err
		}
		args, err := m.expandNodes(n.Args)
		if err != nil {
			return nil, err
		}
		return ast.NewCallDynamic(callee, args, n.Token()), nil

	case *ast.Block:
		body, err := m.ExpandProgram(n.Body)
		if err != nil {
			return nil, err
		}
		return ast.NewBlock(body, n.Token()), nil

	case *ast.Def:
		body, err := m.ExpandProgram(n.Body)
		if err != nil {
			return nil, err
		}
		return ast.NewDef(n.Name, n.Params, body, n.Token()), nil

	case *ast.Fn:
		body, err := m.ExpandProgram(n.Body)
		if err != nil {
			return nil, err
		}
		return ast.NewFn(n.Params, body, n.Token()), nil

	case *ast.Let:
		value, err := m.expandNode(n.Value)
		if err != nil {
			return nil, err
		}
		return ast.NewLet(n.Name, value, n.Token()), nil

	case *ast.Var:
		value, err := m.expandNode(n.Value)
		if err != nil {
			return nil, err
		}
		return ast.NewVar(n.Name, value, n.Token()), nil

	case *ast.Assign:
		value, err := m.expandNode(n.Value)
		if err != nil {
			return nil, err
		}
		return ast.NewAssign(n.Name, value, n.Token()), nil

	case *ast.And:
		left, right, err := m.expandPair(n.Left, n.Right)
		if err != nil {
			return nil, err
		}
		return ast.NewAnd(left, right, n.Token()), nil

	case *ast.Or:
		left, right, err := m.expandPair(n.Left, n.Right)
		if err != nil {
			return nil, err
		}
		return ast.NewOr(left, right, n.Token()), nil

	case *ast.If:
		branches := make([]ast.IfBranch, len(n.Branches))
		for i, branch := range n.Branches {
			var cond ast.Node
			var err error
			if branch.Cond != nil {
				cond, err = m.expandNode(branch.Cond)
				if err != nil {
					return nil, err
				}
			}
			body, err := m.expandNode(branch.Body)
			if err != nil {
				return nil, err
			}
			branches[i] = ast.IfBranch{Cond: cond, Body: body}
		}
		return ast.NewIf(branches, n.Token()), nil

	case *ast.While:
		cond, err := m.expandNode(n.Cond)
		if err != nil {
			return nil, err
		}
		body, err := m.ExpandProgram(n.Body)
		if err != nil {
			return nil, err
		}
		return ast.NewWhile(cond, body, n.Token()), nil

	case *ast.Until:
		cond, err := m.expandNode(n.Cond)
		if err != nil {
			return nil, err
		}
		body, err := m.ExpandProgram(n.Body)
		if err != nil {
			return nil, err
		}
		return ast.NewUntil(cond, body, n.Token()), nil

	case *ast.Foreach:
		iterable, err := m.expandNode(n.Iterable)
		if err != nil {
			return nil, err
		}
		body, err := m.ExpandProgram(n.Body)
		if err != nil {
			return nil, err
		}
		return ast.NewForeach(n.Name, iterable, body, n.Token()), nil

	case *ast.Match:
		value, err := m.expandNode(n.Value)
		if err != nil {
			return nil, err
		}
		arms := make([]ast.MatchArm, len(n.Arms))
		for i, arm := range n.Arms {
			var guard ast.Node
			if arm.Guard != nil {
				guard, err = m.expandNode(arm.Guard)
				if err != nil {
					return nil, err
				}
			}
			body, err := m.expandNode(arm.Body)
			if err != nil {
				return nil, err
			}
			arms[i] = ast.MatchArm{Pattern: arm.Pattern, Guard: guard, Body: body}
		}
		return ast.NewMatch(value, arms, n.Token()), nil

	case *ast.Try:
		body, catch, err := m.expandPair(n.Body, n.Catch)
		if err != nil {
			return nil, err
		}
		return ast.NewTry(body, catch, n.Token()), nil

	case *ast.Paren:
		inner, err := m.expandNode(n.Inner)
		if err != nil {
			return nil, err
		}
		return ast.NewParen(inner, n.Token()), nil

	case *ast.InterpolatedString:
		segments := make([]ast.StringSegment, len(n.Segments))
		for i, seg := range n.Segments {
			if seg.Kind == ast.SegmentExpr {
				expr, err := m.expandNode(seg.Expr)
				if err != nil {
					return nil, err
				}
				segments[i] = ast.StringSegment{Kind: ast.SegmentExpr, Expr: expr}
				continue
			}
			segments[i] = seg
		}
		return ast.NewInterpolatedString(segments, n.Token()), nil

	case *ast.Module:
		body, err := m.ExpandProgram(n.Body)
		if err != nil {
			return nil, err
		}
		return ast.NewModule(n.Name, body, n.Token()), nil

	case *ast.QualifiedAccess:
		args, err := m.expandNodes(n.Args)
		if err != nil {
			return nil, err
		}
		return ast.NewQualifiedAccess(n.Path, n.Target, args, n.IsCall, n.Token()), nil

	default:
		// Leaf nodes carry nothing expandable.
		return node, nil
	}
}

func (m *MacroExpander) expandNodes(nodes []ast.Node) ([]ast.Node, error) {
	out := make([]ast.Node, len(nodes))
	for i, node := range nodes {
		expanded, err := m.expandNode(node)
		if err != nil {
			return nil, err
		}
		out[i] = expanded
	}
	return out, nil
}

func (m *MacroExpander) expandPair(a, b ast.Node) (ast.Node, ast.Node, error) {
	left, err := m.expandNode(a)
	if err != nil {
		return nil, nil, err
	}
	right, err := m.expandNode(b)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

// expandMacroCall substitutes the call's unevaluated argument nodes into
// a fresh copy of the macro body, then re-expands the result so nested
// macro calls resolve too.
func (m *MacroExpander) expandMacroCall(call *ast.Call) (ast.Node, error) {
	if m.depth >= MaxMacroDepth {
		return nil, &MacroRecursionError{Limit: MaxMacroDepth}
	}
	def, ok := m.macros[call.Name.Name]
	if !ok {
		return nil, &UndefinedMacroError{Name: call.Name.Name, Token: call.Token()}
	}
	if len(def.params) != len(call.Args) {
		return nil, &MacroArityError{
			Name:     call.Name.Name,
			Expected: len(def.params),
			Got:      len(call.Args),
			Token:    call.Token(),
		}
	}

	subs := make(map[string]ast.Node, len(def.params))
	for i, param := range def.params {
		subs[param] = call.Args[i]
	}

	substituted := m.substitute(ast.Clone(def.body), subs)

	m.depth++
	expanded, err := m.expandNode(substituted)
	m.depth--
	return expanded, err
}

// substitute replaces parameter occurrences with argument nodes. A
// parameter landing in a call's callee position turns that call into a
// dynamic call, since the substituted node need not be an identifier.
func (m *MacroExpander) substitute(node ast.Node, subs map[string]ast.Node) ast.Node {
	switch n := node.(type) {
	case *ast.Ident:
		if replacement, ok := subs[n.Name]; ok {
			return ast.Clone(replacement)
		}
		return n

	case *ast.Call:
		args := m.substituteNodes(n.Args, subs)
		if replacement, ok := subs[n.Name.Name]; ok {
			return ast.NewCallDynamic(ast.Clone(replacement), args, n.Token())
		}
		return ast.NewCall(n.Name, args, n.Optional, n.Token())

	case *ast.CallDynamic:
		return ast.NewCallDynamic(m.substitute(n.Callee, subs), m.substituteNodes(n.Args, subs), n.Token())

	case *ast.Block:
		return ast.NewBlock(m.substituteProgram(n.Body, subs), n.Token())

	case *ast.Def:
		return ast.NewDef(n.Name, n.Params, m.substituteProgram(n.Body, subs), n.Token())

	case *ast.Fn:
		return ast.NewFn(n.Params, m.substituteProgram(n.Body, subs), n.Token())

	case *ast.Let:
		return ast.NewLet(n.Name, m.substitute(n.Value, subs), n.Token())

	case *ast.Var:
		return ast.NewVar(n.Name, m.substitute(n.Value, subs), n.Token())

	case *ast.Assign:
		return ast.NewAssign(n.Name, m.substitute(n.Value, subs), n.Token())

	case *ast.And:
		return ast.NewAnd(m.substitute(n.Left, subs), m.substitute(n.Right, subs), n.Token())

	case *ast.Or:
		return ast.NewOr(m.substitute(n.Left, subs), m.substitute(n.Right, subs), n.Token())

	case *ast.If:
		branches := make([]ast.IfBranch, len(n.Branches))
		for i, branch := range n.Branches {
			var cond ast.Node
			if branch.Cond != nil {
				cond = m.substitute(branch.Cond, subs)
			}
			branches[i] = ast.IfBranch{Cond: cond, Body: m.substitute(branch.Body, subs)}
		}
		return ast.NewIf(branches, n.Token())

	case *ast.While:
		return ast.NewWhile(m.substitute(n.Cond, subs), m.substituteProgram(n.Body, subs), n.Token())

	case *ast.Until:
		return ast.NewUntil(m.substitute(n.Cond, subs), m.substituteProgram(n.Body, subs), n.Token())

	case *ast.Foreach:
		return ast.NewForeach(n.Name, m.substitute(n.Iterable, subs), m.substituteProgram(n.Body, subs), n.Token())

	case *ast.Match:
		arms := make([]ast.MatchArm, len(n.Arms))
		for i, arm := range n.Arms {
			var guard ast.Node
			if arm.Guard != nil {
				guard = m.substitute(arm.Guard, subs)
			}
			arms[i] = ast.MatchArm{Pattern: arm.Pattern, Guard: guard, Body: m.substitute(arm.Body, subs)}
		}
		return ast.NewMatch(m.substitute(n.Value, subs), arms, n.Token())

	case *ast.Try:
		return ast.NewTry(m.substitute(n.Body, subs), m.substitute(n.Catch, subs), n.Token())

	case *ast.Paren:
		return ast.NewParen(m.substitute(n.Inner, subs), n.Token())

	case *ast.InterpolatedString:
		segments := make([]ast.StringSegment, len(n.Segments))
		for i, seg := range n.Segments {
			if seg.Kind == ast.SegmentExpr {
				segments[i] = ast.StringSegment{Kind: ast.SegmentExpr, Expr: m.substitute(seg.Expr, subs)}
				continue
			}
			segments[i] = seg
		}
		return ast.NewInterpolatedString(segments, n.Token())

	case *ast.Module:
		return ast.NewModule(n.Name, m.substituteProgram(n.Body, subs), n.Token())

	case *ast.QualifiedAccess:
		return ast.NewQualifiedAccess(n.Path, n.Target, m.substituteNodes(n.Args, subs), n.IsCall, n.Token())

	default:
		return node
	}
}

func (m *MacroExpander) substituteNodes(nodes []ast.Node, subs map[string]ast.Node) []ast.Node {
	out := make([]ast.Node, len(nodes))
	for i, node := range nodes {
		out[i] = m.substitute(node, subs)
	}
	return out
}

func (m *MacroExpander) substituteProgram(program ast.Program, subs map[string]ast.Node) ast.Program {
	out := make(ast.Program, len(program))
	for i, node := range program {
		out[i] = m.substitute(node, subs)
	}
	return out
}
