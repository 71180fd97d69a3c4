package ast

import "mq/engine-go/pkg/lexer"

type NodeType string

const (
	NodeLiteral            NodeType = "Literal"
	NodeIdent              NodeType = "Ident"
	NodeSelector           NodeType = "Selector"
	NodeCall               NodeType = "Call"
	NodeCallDynamic        NodeType = "CallDynamic"
	NodeDef                NodeType = "Def"
	NodeFn                 NodeType = "Fn"
	NodeLet                NodeType = "Let"
	NodeVar                NodeType = "Var"
	NodeAssign             NodeType = "Assign"
	NodeInterpolatedString NodeType = "InterpolatedString"
	NodeAnd                NodeType = "And"
	NodeOr                 NodeType = "Or"
	NodeIf                 NodeType = "If"
	NodeWhile              NodeType = "While"
	NodeUntil              NodeType = "Until"
	NodeForeach            NodeType = "Foreach"
	NodeMatch              NodeType = "Match"
	NodeTry                NodeType = "Try"
	NodeParen              NodeType = "Paren"
	NodeBlock              NodeType = "Block"
	NodeMacro              NodeType = "Macro"
	NodeModule             NodeType = "Module"
	NodeQualifiedAccess    NodeType = "QualifiedAccess"
	NodeInclude            NodeType = "Include"
	NodeImport             NodeType = "Import"
	NodeBreak              NodeType = "Break"
	NodeContinue           NodeType = "Continue"
	NodeSelf               NodeType = "Self"
	NodeNodes              NodeType = "Nodes"
)

// Node is the shared behaviour of every expression node. Each node keeps a
// back-reference to the token it was parsed from for diagnostics.
type Node interface {
	NodeType() NodeType
	Token() lexer.Token
	isNode()
}

type nodeImpl struct {
	Type NodeType
	Tok  lexer.Token
}

func newNodeImpl(kind NodeType, tok lexer.Token) nodeImpl {
	return nodeImpl{Type: kind, Tok: tok}
}

func (n nodeImpl) NodeType() NodeType { return n.Type }
func (n nodeImpl) Token() lexer.Token { return n.Tok }
func (nodeImpl) isNode()              {}

// Program is a pipe-chained sequence of expression nodes.
type Program []Node

// Literals

type LiteralKind int

const (
	LiteralString LiteralKind = iota
	LiteralNumber
	LiteralBool
	LiteralSymbol
	LiteralNone
)

type Literal struct {
	nodeImpl

	LitKind LiteralKind
	Str     string
	Num     float64
	Bool    bool
	Symbol  string
}

func NewStringLiteral(s string, tok lexer.Token) *Literal {
	return &Literal{nodeImpl: newNodeImpl(NodeLiteral, tok), LitKind: LiteralString, Str: s}
}

func NewNumberLiteral(n float64, tok lexer.Token) *Literal {
	return &Literal{nodeImpl: newNodeImpl(NodeLiteral, tok), LitKind: LiteralNumber, Num: n}
}

func NewBoolLiteral(b bool, tok lexer.Token) *Literal {
	return &Literal{nodeImpl: newNodeImpl(NodeLiteral, tok), LitKind: LiteralBool, Bool: b}
}

func NewSymbolLiteral(name string, tok lexer.Token) *Literal {
	return &Literal{nodeImpl: newNodeImpl(NodeLiteral, tok), LitKind: LiteralSymbol, Symbol: name}
}

func NewNoneLiteral(tok lexer.Token) *Literal {
	return &Literal{nodeImpl: newNodeImpl(NodeLiteral, tok), LitKind: LiteralNone}
}

// Ident

type Ident struct {
	nodeImpl

	Name string
}

func NewIdent(name string, tok lexer.Token) *Ident {
	return &Ident{nodeImpl: newNodeImpl(NodeIdent, tok), Name: name}
}

// Selector carries the raw selector text (".h", ".code", ".text", ...).
// Interpretation against the document tree happens at evaluation time.
type Selector struct {
	nodeImpl

	Name string
}

func NewSelector(name string, tok lexer.Token) *Selector {
	return &Selector{nodeImpl: newNodeImpl(NodeSelector, tok), Name: name}
}

// Calls

type Call struct {
	nodeImpl

	Name     *Ident
	Args     []Node
	Optional bool
}

func NewCall(name *Ident, args []Node, optional bool, tok lexer.Token) *Call {
	return &Call{nodeImpl: newNodeImpl(NodeCall, tok), Name: name, Args: args, Optional: optional}
}

// CallDynamic invokes the result of evaluating an arbitrary callee
// expression. Macro substitution into callee position produces these.
type CallDynamic struct {
	nodeImpl

	Callee Node
	Args   []Node
}

func NewCallDynamic(callee Node, args []Node, tok lexer.Token) *CallDynamic {
	return &CallDynamic{nodeImpl: newNodeImpl(NodeCallDynamic, tok), Callee: callee, Args: args}
}

// Definitions and bindings

type Def struct {
	nodeImpl

	Name   *Ident
	Params []*Ident
	Body   Program
}

func NewDef(name *Ident, params []*Ident, body Program, tok lexer.Token) *Def {
	return &Def{nodeImpl: newNodeImpl(NodeDef, tok), Name: name, Params: params, Body: body}
}

type Fn struct {
	nodeImpl

	Params []*Ident
	Body   Program
}

func NewFn(params []*Ident, body Program, tok lexer.Token) *Fn {
	return &Fn{nodeImpl: newNodeImpl(NodeFn, tok), Params: params, Body: body}
}

type Let struct {
	nodeImpl

	Name  *Ident
	Value Node
}

func NewLet(name *Ident, value Node, tok lexer.Token) *Let {
	return &Let{nodeImpl: newNodeImpl(NodeLet, tok), Name: name, Value: value}
}

type Var struct {
	nodeImpl

	Name  *Ident
	Value Node
}

func NewVar(name *Ident, value Node, tok lexer.Token) *Var {
	return &Var{nodeImpl: newNodeImpl(NodeVar, tok), Name: name, Value: value}
}

type Assign struct {
	nodeImpl

	Name  *Ident
	Value Node
}

func NewAssign(name *Ident, value Node, tok lexer.Token) *Assign {
	return &Assign{nodeImpl: newNodeImpl(NodeAssign, tok), Name: name, Value: value}
}

// Strings

type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentExpr
	SegmentEnv
	SegmentSelf
)

type StringSegment struct {
	Kind SegmentKind
	Text string
	Expr Node
}

type InterpolatedString struct {
	nodeImpl

	Segments []StringSegment
}

func NewInterpolatedString(segments []StringSegment, tok lexer.Token) *InterpolatedString {
	return &InterpolatedString{nodeImpl: newNodeImpl(NodeInterpolatedString, tok), Segments: segments}
}

// Boolean operators

type And struct {
	nodeImpl

	Left  Node
	Right Node
}

func NewAnd(left, right Node, tok lexer.Token) *And {
	return &And{nodeImpl: newNodeImpl(NodeAnd, tok), Left: left, Right: right}
}

type Or struct {
	nodeImpl

	Left  Node
	Right Node
}

func NewOr(left, right Node, tok lexer.Token) *Or {
	return &Or{nodeImpl: newNodeImpl(NodeOr, tok), Left: left, Right: right}
}

// Control flow

// IfBranch is one arm of an if/elif/else chain. Cond is nil for else.
type IfBranch struct {
	Cond Node
	Body Node
}

type If struct {
	nodeImpl

	Branches []IfBranch
}

func NewIf(branches []IfBranch, tok lexer.Token) *If {
	return &If{nodeImpl: newNodeImpl(NodeIf, tok), Branches: branches}
}

type While struct {
	nodeImpl

	Cond Node
	Body Program
}

func NewWhile(cond Node, body Program, tok lexer.Token) *While {
	return &While{nodeImpl: newNodeImpl(NodeWhile, tok), Cond: cond, Body: body}
}

type Until struct {
	nodeImpl

	Cond Node
	Body Program
}

func NewUntil(cond Node, body Program, tok lexer.Token) *Until {
	return &Until{nodeImpl: newNodeImpl(NodeUntil, tok), Cond: cond, Body: body}
}

type Foreach struct {
	nodeImpl

	Name     *Ident
	Iterable Node
	Body     Program
}

func NewForeach(name *Ident, iterable Node, body Program, tok lexer.Token) *Foreach {
	return &Foreach{nodeImpl: newNodeImpl(NodeForeach, tok), Name: name, Iterable: iterable, Body: body}
}

// Pattern matching

type PatternKind int

const (
	PatternLiteral PatternKind = iota
	PatternIdent
	PatternWildcard
	PatternArray
	PatternArrayRest
	PatternDict
	PatternType
)

type Pattern struct {
	Kind     PatternKind
	Literal  *Literal
	Name     string
	Elements []*Pattern
	Rest     string
	Keys     []string
	Values   []*Pattern
	TypeName string
}

type MatchArm struct {
	Pattern *Pattern
	Guard   Node
	Body    Node
}

type Match struct {
	nodeImpl

	Value Node
	Arms  []MatchArm
}

func NewMatch(value Node, arms []MatchArm, tok lexer.Token) *Match {
	return &Match{nodeImpl: newNodeImpl(NodeMatch, tok), Value: value, Arms: arms}
}

type Try struct {
	nodeImpl

	Body  Node
	Catch Node
}

func NewTry(body, catch Node, tok lexer.Token) *Try {
	return &Try{nodeImpl: newNodeImpl(NodeTry, tok), Body: body, Catch: catch}
}

// Grouping

type Paren struct {
	nodeImpl

	Inner Node
}

func NewParen(inner Node, tok lexer.Token) *Paren {
	return &Paren{nodeImpl: newNodeImpl(NodeParen, tok), Inner: inner}
}

type Block struct {
	nodeImpl

	Body Program
}

func NewBlock(body Program, tok lexer.Token) *Block {
	return &Block{nodeImpl: newNodeImpl(NodeBlock, tok), Body: body}
}

// Macros

type Macro struct {
	nodeImpl

	Name   *Ident
	Params []*Ident
	Body   Node
}

func NewMacro(name *Ident, params []*Ident, body Node, tok lexer.Token) *Macro {
	return &Macro{nodeImpl: newNodeImpl(NodeMacro, tok), Name: name, Params: params, Body: body}
}

// Modules

type Module struct {
	nodeImpl

	Name *Ident
	Body Program
}

func NewModule(name *Ident, body Program, tok lexer.Token) *Module {
	return &Module{nodeImpl: newNodeImpl(NodeModule, tok), Name: name, Body: body}
}

// QualifiedAccess resolves path::name or path::name(args) against a
// module namespace.
type QualifiedAccess struct {
	nodeImpl

	Path   []*Ident
	Target *Ident
	Args   []Node
	IsCall bool
}

func NewQualifiedAccess(path []*Ident, target *Ident, args []Node, isCall bool, tok lexer.Token) *QualifiedAccess {
	return &QualifiedAccess{nodeImpl: newNodeImpl(NodeQualifiedAccess, tok), Path: path, Target: target, Args: args, IsCall: isCall}
}

type Include struct {
	nodeImpl

	Path string
}

func NewInclude(path string, tok lexer.Token) *Include {
	return &Include{nodeImpl: newNodeImpl(NodeInclude, tok), Path: path}
}

type Import struct {
	nodeImpl

	Path string
}

func NewImport(path string, tok lexer.Token) *Import {
	return &Import{nodeImpl: newNodeImpl(NodeImport, tok), Path: path}
}

// Leaf markers

type Break struct {
	nodeImpl
}

func NewBreak(tok lexer.Token) *Break {
	return &Break{nodeImpl: newNodeImpl(NodeBreak, tok)}
}

type Continue struct {
	nodeImpl
}

func NewContinue(tok lexer.Token) *Continue {
	return &Continue{nodeImpl: newNodeImpl(NodeContinue, tok)}
}

// Self refers to the current pipeline value.
type Self struct {
	nodeImpl
}

func NewSelf(tok lexer.Token) *Self {
	return &Self{nodeImpl: newNodeImpl(NodeSelf, tok)}
}

// Nodes splits a program into a per-input part and an aggregate part run
// once over all collected results.
type Nodes struct {
	nodeImpl
}

func NewNodes(tok lexer.Token) *Nodes {
	return &Nodes{nodeImpl: newNodeImpl(NodeNodes, tok)}
}
