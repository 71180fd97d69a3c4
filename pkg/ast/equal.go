package ast

// Equal reports structural equality of two nodes, ignoring source tokens.
// Function values compare on parameters and body only, so this is also
// the basis of runtime function equality.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.NodeType() != b.NodeType() {
		return false
	}
	switch x := a.(type) {
	case *Literal:
		y := b.(*Literal)
		if x.LitKind != y.LitKind {
			return false
		}
		switch x.LitKind {
		case LiteralString:
			return x.Str == y.Str
		case LiteralNumber:
			return x.Num == y.Num
		case LiteralBool:
			return x.Bool == y.Bool
		case LiteralSymbol:
			return x.Symbol == y.Symbol
		default:
			return true
		}
	case *Ident:
		return x.Name == b.(*Ident).Name
	case *Selector:
		return x.Name == b.(*Selector).Name
	case *Self, *Nodes, *Break, *Continue:
		return true
	case *Include:
		return x.Path == b.(*Include).Path
	case *Import:
		return x.Path == b.(*Import).Path
	case *Call:
		y := b.(*Call)
		return equalIdent(x.Name, y.Name) && x.Optional == y.Optional && EqualPrograms(x.Args, y.Args)
	case *CallDynamic:
		y := b.(*CallDynamic)
		return Equal(x.Callee, y.Callee) && EqualPrograms(x.Args, y.Args)
	case *Def:
		y := b.(*Def)
		return equalIdent(x.Name, y.Name) && equalIdents(x.Params, y.Params) && EqualPrograms(x.Body, y.Body)
	case *Fn:
		y := b.(*Fn)
		return equalIdents(x.Params, y.Params) && EqualPrograms(x.Body, y.Body)
	case *Let:
		y := b.(*Let)
		return equalIdent(x.Name, y.Name) && Equal(x.Value, y.Value)
	case *Var:
		y := b.(*Var)
		return equalIdent(x.Name, y.Name) && Equal(x.Value, y.Value)
	case *Assign:
		y := b.(*Assign)
		return equalIdent(x.Name, y.Name) && Equal(x.Value, y.Value)
	case *InterpolatedString:
		y := b.(*InterpolatedString)
		if len(x.Segments) != len(y.Segments) {
			return false
		}
		for i := range x.Segments {
			xs, ys := x.Segments[i], y.Segments[i]
			if xs.Kind != ys.Kind || xs.Text != ys.Text || !Equal(xs.Expr, ys.Expr) {
				return false
			}
		}
		return true
	case *And:
		y := b.(*And)
		return Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case *Or:
		y := b.(*Or)
		return Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case *If:
		y := b.(*If)
		if len(x.Branches) != len(y.Branches) {
			return false
		}
		for i := range x.Branches {
			if !Equal(x.Branches[i].Cond, y.Branches[i].Cond) || !Equal(x.Branches[i].Body, y.Branches[i].Body) {
				return false
			}
		}
		return true
	case *While:
		y := b.(*While)
		return Equal(x.Cond, y.Cond) && EqualPrograms(x.Body, y.Body)
	case *Until:
		y := b.(*Until)
		return Equal(x.Cond, y.Cond) && EqualPrograms(x.Body, y.Body)
	case *Foreach:
		y := b.(*Foreach)
		return equalIdent(x.Name, y.Name) && Equal(x.Iterable, y.Iterable) && EqualPrograms(x.Body, y.Body)
	case *Match:
		y := b.(*Match)
		if !Equal(x.Value, y.Value) || len(x.Arms) != len(y.Arms) {
			return false
		}
		for i := range x.Arms {
			if !equalPattern(x.Arms[i].Pattern, y.Arms[i].Pattern) ||
				!Equal(x.Arms[i].Guard, y.Arms[i].Guard) ||
				!Equal(x.Arms[i].Body, y.Arms[i].Body) {
				return false
			}
		}
		return true
	case *Try:
		y := b.(*Try)
		return Equal(x.Body, y.Body) && Equal(x.Catch, y.Catch)
	case *Paren:
		return Equal(x.Inner, b.(*Paren).Inner)
	case *Block:
		return EqualPrograms(x.Body, b.(*Block).Body)
	case *Macro:
		y := b.(*Macro)
		return equalIdent(x.Name, y.Name) && equalIdents(x.Params, y.Params) && Equal(x.Body, y.Body)
	case *Module:
		y := b.(*Module)
		return equalIdent(x.Name, y.Name) && EqualPrograms(x.Body, y.Body)
	case *QualifiedAccess:
		y := b.(*QualifiedAccess)
		return equalIdents(x.Path, y.Path) && equalIdent(x.Target, y.Target) &&
			x.IsCall == y.IsCall && EqualPrograms(x.Args, y.Args)
	default:
		return false
	}
}

// EqualPrograms reports structural equality of two node slices.
func EqualPrograms(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalIdent(a, b *Ident) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Name == b.Name
}

func equalIdents(a, b []*Ident) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !equalIdent(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalPattern(a, b *Pattern) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind != b.Kind || a.Name != b.Name || a.Rest != b.Rest || a.TypeName != b.TypeName {
		return false
	}
	if (a.Literal == nil) != (b.Literal == nil) {
		return false
	}
	if a.Literal != nil && !Equal(a.Literal, b.Literal) {
		return false
	}
	if len(a.Elements) != len(b.Elements) || len(a.Keys) != len(b.Keys) || len(a.Values) != len(b.Values) {
		return false
	}
	for i := range a.Elements {
		if !equalPattern(a.Elements[i], b.Elements[i]) {
			return false
		}
	}
	for i := range a.Keys {
		if a.Keys[i] != b.Keys[i] {
			return false
		}
	}
	for i := range a.Values {
		if !equalPattern(a.Values[i], b.Values[i]) {
			return false
		}
	}
	return true
}
