package ast

// Clone deep-copies a node. Macro expansion substitutes argument nodes
// into fresh copies of macro bodies, so bodies must never be shared
// between expansion sites.
func Clone(node Node) Node {
	if node == nil {
		return nil
	}
	switch n := node.(type) {
	case *Literal:
		c := *n
		return &c
	case *Ident:
		c := *n
		return &c
	case *Selector:
		c := *n
		return &c
	case *Self:
		c := *n
		return &c
	case *Nodes:
		c := *n
		return &c
	case *Break:
		c := *n
		return &c
	case *Continue:
		c := *n
		return &c
	case *Include:
		c := *n
		return &c
	case *Import:
		c := *n
		return &c
	case *Call:
		return &Call{nodeImpl: n.nodeImpl, Name: cloneIdent(n.Name), Args: ClonePrograms(n.Args), Optional: n.Optional}
	case *CallDynamic:
		return &CallDynamic{nodeImpl: n.nodeImpl, Callee: Clone(n.Callee), Args: ClonePrograms(n.Args)}
	case *Def:
		return &Def{nodeImpl: n.nodeImpl, Name: cloneIdent(n.Name), Params: cloneIdents(n.Params), Body: ClonePrograms(n.Body)}
	case *Fn:
		return &Fn{nodeImpl: n.nodeImpl, Params: cloneIdents(n.Params), Body: ClonePrograms(n.Body)}
	case *Let:
		return &Let{nodeImpl: n.nodeImpl, Name: cloneIdent(n.Name), Value: Clone(n.Value)}
	case *Var:
		return &Var{nodeImpl: n.nodeImpl, Name: cloneIdent(n.Name), Value: Clone(n.Value)}
	case *Assign:
		return &Assign{nodeImpl: n.nodeImpl, Name: cloneIdent(n.Name), Value: Clone(n.Value)}
	case *InterpolatedString:
		segments := make([]StringSegment, len(n.Segments))
		for i, seg := range n.Segments {
			segments[i] = StringSegment{Kind: seg.Kind, Text: seg.Text, Expr: Clone(seg.Expr)}
		}
		return &InterpolatedString{nodeImpl: n.nodeImpl, Segments: segments}
	case *And:
		return &And{nodeImpl: n.nodeImpl, Left: Clone(n.Left), Right: Clone(n.Right)}
	case *Or:
		return &Or{nodeImpl: n.nodeImpl, Left: Clone(n.Left), Right: Clone(n.Right)}
	case *If:
		branches := make([]IfBranch, len(n.Branches))
		for i, b := range n.Branches {
			branches[i] = IfBranch{Cond: Clone(b.Cond), Body: Clone(b.Body)}
		}
		return &If{nodeImpl: n.nodeImpl, Branches: branches}
	case *While:
		return &While{nodeImpl: n.nodeImpl, Cond: Clone(n.Cond), Body: ClonePrograms(n.Body)}
	case *Until:
		return &Until{nodeImpl: n.nodeImpl, Cond: Clone(n.Cond), Body: ClonePrograms(n.Body)}
	case *Foreach:
		return &Foreach{nodeImpl: n.nodeImpl, Name: cloneIdent(n.Name), Iterable: Clone(n.Iterable), Body: ClonePrograms(n.Body)}
	case *Match:
		arms := make([]MatchArm, len(n.Arms))
		for i, arm := range n.Arms {
			arms[i] = MatchArm{Pattern: clonePattern(arm.Pattern), Guard: Clone(arm.Guard), Body: Clone(arm.Body)}
		}
		return &Match{nodeImpl: n.nodeImpl, Value: Clone(n.Value), Arms: arms}
	case *Try:
		return &Try{nodeImpl: n.nodeImpl, Body: Clone(n.Body), Catch: Clone(n.Catch)}
	case *Paren:
		return &Paren{nodeImpl: n.nodeImpl, Inner: Clone(n.Inner)}
	case *Block:
		return &Block{nodeImpl: n.nodeImpl, Body: ClonePrograms(n.Body)}
	case *Macro:
		return &Macro{nodeImpl: n.nodeImpl, Name: cloneIdent(n.Name), Params: cloneIdents(n.Params), Body: Clone(n.Body)}
	case *Module:
		return &Module{nodeImpl: n.nodeImpl, Name: cloneIdent(n.Name), Body: ClonePrograms(n.Body)}
	case *QualifiedAccess:
		return &QualifiedAccess{nodeImpl: n.nodeImpl, Path: cloneIdents(n.Path), Target: cloneIdent(n.Target), Args: ClonePrograms(n.Args), IsCall: n.IsCall}
	default:
		return node
	}
}

// ClonePrograms deep-copies a node slice.
func ClonePrograms(program []Node) []Node {
	if program == nil {
		return nil
	}
	out := make([]Node, len(program))
	for i, node := range program {
		out[i] = Clone(node)
	}
	return out
}

func cloneIdent(ident *Ident) *Ident {
	if ident == nil {
		return nil
	}
	c := *ident
	return &c
}

func cloneIdents(idents []*Ident) []*Ident {
	if idents == nil {
		return nil
	}
	out := make([]*Ident, len(idents))
	for i, ident := range idents {
		out[i] = cloneIdent(ident)
	}
	return out
}

func clonePattern(p *Pattern) *Pattern {
	if p == nil {
		return nil
	}
	c := *p
	if p.Literal != nil {
		lit := *p.Literal
		c.Literal = &lit
	}
	if p.Elements != nil {
		c.Elements = make([]*Pattern, len(p.Elements))
		for i, el := range p.Elements {
			c.Elements[i] = clonePattern(el)
		}
	}
	if p.Values != nil {
		c.Values = make([]*Pattern, len(p.Values))
		for i, v := range p.Values {
			c.Values[i] = clonePattern(v)
		}
	}
	if p.Keys != nil {
		c.Keys = append([]string(nil), p.Keys...)
	}
	return &c
}
