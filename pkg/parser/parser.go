// Package parser turns mq source text into expression-node programs.
package parser

import (
	"fmt"

	"mq/engine-go/pkg/ast"
	"mq/engine-go/pkg/lexer"
)

// ParseError reports a syntax problem at a specific token.
type ParseError struct {
	Message string
	Token   lexer.Token
}

func (e *ParseError) Error() string {
	pos := e.Token.Range.Start
	return fmt.Sprintf("%s:%d:%d: %s", e.Token.Module, pos.Line, pos.Column, e.Message)
}

// Parser is a hand-written recursive-descent parser over the token
// stream. Statements chain with pipes; multi-statement bodies use
// do/end blocks separated by newlines.
type Parser struct {
	tokens []lexer.Token
	pos    int
	module string
}

// Parse tokenizes and parses a whole program. The module name is
// attached to tokens for diagnostics.
func Parse(src, module string) (ast.Program, error) {
	tokens, err := lexer.Tokenize(src, module)
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: tokens, module: module}
	return p.parseProgram()
}

func (p *Parser) cur() lexer.Token {
	return p.tokens[p.pos]
}

func (p *Parser) peekKind() lexer.TokenKind {
	return p.tokens[p.pos].Kind
}

func (p *Parser) peekAhead(offset int) lexer.Token {
	if p.pos+offset >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+offset]
}

func (p *Parser) advance() lexer.Token {
	tok := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(kind lexer.TokenKind) (lexer.Token, error) {
	if p.peekKind() != kind {
		return lexer.Token{}, p.errorf("expected %s, found %s", kind, p.cur())
	}
	return p.advance(), nil
}

func (p *Parser) errorf(format string, args ...any) error {
	return &ParseError{Message: fmt.Sprintf(format, args...), Token: p.cur()}
}

func (p *Parser) skipNewlines() {
	for p.peekKind() == lexer.TokenNewLine {
		p.advance()
	}
}

func (p *Parser) parseProgram() (ast.Program, error) {
	var program ast.Program
	p.skipNewlines()
	for p.peekKind() != lexer.TokenEOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		program = append(program, stmt)
		switch p.peekKind() {
		case lexer.TokenPipe:
			p.advance()
			p.skipNewlines()
		case lexer.TokenNewLine:
			p.skipNewlines()
		case lexer.TokenSemiColon:
			p.advance()
			p.skipNewlines()
		case lexer.TokenEOF:
		default:
			return nil, p.errorf("unexpected %s", p.cur())
		}
	}
	return program, nil
}

// parsePipeBody parses statements chained with pipes until a body
// terminator (newline, semicolon, end, closing bracket, elif/else/catch).
func (p *Parser) parsePipeBody() (ast.Program, error) {
	var body ast.Program
	for {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmt)
		if p.peekKind() != lexer.TokenPipe {
			return body, nil
		}
		p.advance()
		p.skipNewlines()
	}
}

// parseBody parses either an inline colon body or a do/end block.
func (p *Parser) parseBody() (ast.Program, error) {
	switch p.peekKind() {
	case lexer.TokenColon:
		p.advance()
		p.skipNewlines()
		return p.parsePipeBody()
	case lexer.TokenDo:
		return p.parseDoEnd()
	}
	return nil, p.errorf("expected : or do, found %s", p.cur())
}

func (p *Parser) parseDoEnd() (ast.Program, error) {
	if _, err := p.expect(lexer.TokenDo); err != nil {
		return nil, err
	}
	var body ast.Program
	p.skipNewlines()
	for p.peekKind() != lexer.TokenEnd {
		if p.peekKind() == lexer.TokenEOF {
			return nil, p.errorf("unterminated do block")
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmt)
		if p.peekKind() == lexer.TokenPipe {
			p.advance()
		}
		p.skipNewlines()
	}
	p.advance() // end
	return body, nil
}

// blockNode wraps a multi-statement body in a block so call sites see a
// single expression.
func blockNode(body ast.Program, tok lexer.Token) ast.Node {
	if len(body) == 1 {
		return body[0]
	}
	return ast.NewBlock(body, tok)
}

func (p *Parser) parseStatement() (ast.Node, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (ast.Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peekKind() == lexer.TokenOrOr {
		tok := p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = ast.NewOr(left, right, tok)
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.peekKind() == lexer.TokenAndAnd {
		tok := p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = ast.NewAnd(left, right, tok)
	}
	return left, nil
}

var comparisonOps = map[lexer.TokenKind]string{
	lexer.TokenEqEq: "eq",
	lexer.TokenNeEq: "ne",
	lexer.TokenLt:   "lt",
	lexer.TokenLte:  "lte",
	lexer.TokenGt:   "gt",
	lexer.TokenGte:  "gte",
}

var additiveOps = map[lexer.TokenKind]string{
	lexer.TokenPlus:  "add",
	lexer.TokenMinus: "sub",
}

var multiplicativeOps = map[lexer.TokenKind]string{
	lexer.TokenAsterisk: "mul",
	lexer.TokenSlash:    "div",
	lexer.TokenPercent:  "mod",
}

// Operators are sugar over the builtin call forms, so a + b parses to
// add(a, b).
func opCall(name string, tok lexer.Token, args ...ast.Node) ast.Node {
	return ast.NewCall(ast.NewIdent(name, tok), args, false, tok)
}

func (p *Parser) parseComparison() (ast.Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if name, ok := comparisonOps[p.peekKind()]; ok {
		tok := p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return opCall(name, tok, left, right), nil
	}
	return left, nil
}

func (p *Parser) parseAdditive() (ast.Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		name, ok := additiveOps[p.peekKind()]
		if !ok {
			return left, nil
		}
		tok := p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = opCall(name, tok, left, right)
	}
}

func (p *Parser) parseMultiplicative() (ast.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		name, ok := multiplicativeOps[p.peekKind()]
		if !ok {
			return left, nil
		}
		tok := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = opCall(name, tok, left, right)
	}
}

func (p *Parser) parseUnary() (ast.Node, error) {
	switch p.peekKind() {
	case lexer.TokenNot:
		tok := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return opCall("not", tok, operand), nil
	case lexer.TokenMinus:
		tok := p.advance()
		if p.peekKind() == lexer.TokenNumber {
			numTok := p.advance()
			return ast.NewNumberLiteral(-numTok.Number, numTok), nil
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return opCall("sub", tok, ast.NewNumberLiteral(0, tok), operand), nil
	}
	return p.parsePostfix()
}

// parsePostfix applies trailing call parentheses, turning the callee
// expression into a dynamic call.
func (p *Parser) parsePostfix() (ast.Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.peekKind() == lexer.TokenLParen {
		tok := p.cur()
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		node = ast.NewCallDynamic(node, args, tok)
	}
	return node, nil
}

func (p *Parser) parseArgs() ([]ast.Node, error) {
	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return nil, err
	}
	var args []ast.Node
	p.skipNewlines()
	for p.peekKind() != lexer.TokenRParen {
		arg, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		p.skipNewlines()
		if p.peekKind() == lexer.TokenComma {
			p.advance()
			p.skipNewlines()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parseParams() ([]*ast.Ident, error) {
	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return nil, err
	}
	var params []*ast.Ident
	for p.peekKind() != lexer.TokenRParen {
		tok, err := p.expect(lexer.TokenIdent)
		if err != nil {
			return nil, err
		}
		params = append(params, ast.NewIdent(tok.Lit, tok))
		if p.peekKind() == lexer.TokenComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *Parser) parsePrimary() (ast.Node, error) {
	tok := p.cur()
	switch tok.Kind {
	case lexer.TokenNumber:
		p.advance()
		return ast.NewNumberLiteral(tok.Number, tok), nil
	case lexer.TokenString:
		p.advance()
		return ast.NewStringLiteral(tok.Lit, tok), nil
	case lexer.TokenBool:
		p.advance()
		return ast.NewBoolLiteral(tok.Bool, tok), nil
	case lexer.TokenNone:
		p.advance()
		return ast.NewNoneLiteral(tok), nil
	case lexer.TokenInterpolatedString:
		p.advance()
		return p.parseInterpolated(tok)
	case lexer.TokenEnv:
		p.advance()
		segments := []ast.StringSegment{{Kind: ast.SegmentEnv, Text: tok.Lit}}
		return ast.NewInterpolatedString(segments, tok), nil
	case lexer.TokenSelector:
		p.advance()
		return ast.NewSelector(tok.Lit, tok), nil
	case lexer.TokenSelf:
		p.advance()
		return ast.NewSelf(tok), nil
	case lexer.TokenNodes:
		p.advance()
		return ast.NewNodes(tok), nil
	case lexer.TokenBreak:
		p.advance()
		return ast.NewBreak(tok), nil
	case lexer.TokenContinue:
		p.advance()
		return ast.NewContinue(tok), nil
	case lexer.TokenColon:
		// A colon glued to an identifier is a symbol literal.
		next := p.peekAhead(1)
		if next.Kind == lexer.TokenIdent && adjacent(tok, next) {
			p.advance()
			p.advance()
			return ast.NewSymbolLiteral(next.Lit, tok), nil
		}
		return nil, p.errorf("unexpected %s", tok)
	case lexer.TokenLParen:
		p.advance()
		inner, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenRParen); err != nil {
			return nil, err
		}
		return ast.NewParen(inner, tok), nil
	case lexer.TokenLBracket:
		return p.parseArrayLiteral()
	case lexer.TokenIdent:
		return p.parseIdentExpr()
	case lexer.TokenLet:
		return p.parseBinding(func(name *ast.Ident, value ast.Node) ast.Node {
			return ast.NewLet(name, value, tok)
		})
	case lexer.TokenVar:
		return p.parseBinding(func(name *ast.Ident, value ast.Node) ast.Node {
			return ast.NewVar(name, value, tok)
		})
	case lexer.TokenDef:
		return p.parseDef()
	case lexer.TokenFn:
		return p.parseFn()
	case lexer.TokenIf:
		return p.parseIf()
	case lexer.TokenWhile:
		return p.parseLoop(false)
	case lexer.TokenUntil:
		return p.parseLoop(true)
	case lexer.TokenForeach:
		return p.parseForeach()
	case lexer.TokenMatch:
		return p.parseMatch()
	case lexer.TokenTry:
		return p.parseTry()
	case lexer.TokenMacro:
		return p.parseMacro()
	case lexer.TokenModule:
		return p.parseModule()
	case lexer.TokenInclude:
		p.advance()
		path, err := p.expect(lexer.TokenString)
		if err != nil {
			return nil, err
		}
		return ast.NewInclude(path.Lit, tok), nil
	case lexer.TokenImport:
		p.advance()
		path, err := p.expect(lexer.TokenString)
		if err != nil {
			return nil, err
		}
		return ast.NewImport(path.Lit, tok), nil
	}
	return nil, p.errorf("unexpected %s", tok)
}

// adjacent reports whether two tokens touch with no whitespace between.
func adjacent(a, b lexer.Token) bool {
	return a.Range.End == b.Range.Start
}

func (p *Parser) parseInterpolated(tok lexer.Token) (ast.Node, error) {
	segments := make([]ast.StringSegment, 0, len(tok.Segments))
	for _, seg := range tok.Segments {
		switch seg.Kind {
		case lexer.SegmentText:
			segments = append(segments, ast.StringSegment{Kind: ast.SegmentText, Text: seg.Text})
		case lexer.SegmentEnv:
			segments = append(segments, ast.StringSegment{Kind: ast.SegmentEnv, Text: seg.Text})
		case lexer.SegmentSelf:
			segments = append(segments, ast.StringSegment{Kind: ast.SegmentSelf})
		case lexer.SegmentExpr:
			program, err := Parse(seg.Text, tok.Module)
			if err != nil {
				return nil, &ParseError{Message: fmt.Sprintf("invalid interpolation segment: %v", err), Token: tok}
			}
			if len(program) != 1 {
				return nil, &ParseError{Message: "interpolation segment must be a single expression", Token: tok}
			}
			segments = append(segments, ast.StringSegment{Kind: ast.SegmentExpr, Expr: program[0]})
		}
	}
	return ast.NewInterpolatedString(segments, tok), nil
}

func (p *Parser) parseArrayLiteral() (ast.Node, error) {
	tok := p.advance() // [
	var elements []ast.Node
	p.skipNewlines()
	for p.peekKind() != lexer.TokenRBracket {
		el, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		elements = append(elements, el)
		p.skipNewlines()
		if p.peekKind() == lexer.TokenComma {
			p.advance()
			p.skipNewlines()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.TokenRBracket); err != nil {
		return nil, err
	}
	return ast.NewCall(ast.NewIdent("array", tok), elements, false, tok), nil
}

func (p *Parser) parseIdentExpr() (ast.Node, error) {
	tok := p.advance()
	name := ast.NewIdent(tok.Lit, tok)
	switch p.peekKind() {
	case lexer.TokenLParen:
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return ast.NewCall(name, args, false, tok), nil
	case lexer.TokenQuestion:
		if p.peekAhead(1).Kind == lexer.TokenLParen {
			p.advance() // ?
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			return ast.NewCall(name, args, true, tok), nil
		}
	case lexer.TokenColonColon:
		return p.parseQualifiedAccess(name, tok)
	case lexer.TokenEqual:
		p.advance()
		value, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		return ast.NewAssign(name, value, tok), nil
	}
	return name, nil
}

func (p *Parser) parseQualifiedAccess(first *ast.Ident, tok lexer.Token) (ast.Node, error) {
	path := []*ast.Ident{first}
	for p.peekKind() == lexer.TokenColonColon {
		p.advance()
		identTok, err := p.expect(lexer.TokenIdent)
		if err != nil {
			return nil, err
		}
		path = append(path, ast.NewIdent(identTok.Lit, identTok))
	}
	target := path[len(path)-1]
	path = path[:len(path)-1]
	if p.peekKind() == lexer.TokenLParen {
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return ast.NewQualifiedAccess(path, target, args, true, tok), nil
	}
	return ast.NewQualifiedAccess(path, target, nil, false, tok), nil
}

func (p *Parser) parseBinding(build func(*ast.Ident, ast.Node) ast.Node) (ast.Node, error) {
	p.advance() // let / var
	nameTok, err := p.expect(lexer.TokenIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenEqual); err != nil {
		return nil, err
	}
	value, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return build(ast.NewIdent(nameTok.Lit, nameTok), value), nil
}

func (p *Parser) parseDef() (ast.Node, error) {
	tok := p.advance() // def
	nameTok, err := p.expect(lexer.TokenIdent)
	if err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	if p.peekKind() == lexer.TokenSemiColon {
		p.advance()
	}
	return ast.NewDef(ast.NewIdent(nameTok.Lit, nameTok), params, body, tok), nil
}

func (p *Parser) parseFn() (ast.Node, error) {
	tok := p.advance() // fn
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return ast.NewFn(params, body, tok), nil
}

func (p *Parser) parseIf() (ast.Node, error) {
	tok := p.advance() // if
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenColon); err != nil {
		return nil, err
	}
	body, err := p.parseBranchBody()
	if err != nil {
		return nil, err
	}
	branches := []ast.IfBranch{{Cond: cond, Body: body}}
	for {
		switch p.peekKind() {
		case lexer.TokenElif:
			p.advance()
			cond, err := p.parseCondition()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.TokenColon); err != nil {
				return nil, err
			}
			body, err := p.parseBranchBody()
			if err != nil {
				return nil, err
			}
			branches = append(branches, ast.IfBranch{Cond: cond, Body: body})
		case lexer.TokenElse:
			p.advance()
			if _, err := p.expect(lexer.TokenColon); err != nil {
				return nil, err
			}
			body, err := p.parseBranchBody()
			if err != nil {
				return nil, err
			}
			branches = append(branches, ast.IfBranch{Body: body})
			return ast.NewIf(branches, tok), nil
		default:
			return ast.NewIf(branches, tok), nil
		}
	}
}

func (p *Parser) parseCondition() (ast.Node, error) {
	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return nil, err
	}
	cond, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return nil, err
	}
	return cond, nil
}

// parseBranchBody parses an if/elif/else arm: pipe-chained statements up
// to the next elif/else or terminator, wrapped in a block when needed.
func (p *Parser) parseBranchBody() (ast.Node, error) {
	tok := p.cur()
	var body ast.Program
	for {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmt)
		if p.peekKind() != lexer.TokenPipe {
			return blockNode(body, tok), nil
		}
		p.advance()
		p.skipNewlines()
	}
}

func (p *Parser) parseLoop(until bool) (ast.Node, error) {
	tok := p.advance() // while / until
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	if until {
		return ast.NewUntil(cond, body, tok), nil
	}
	return ast.NewWhile(cond, body, tok), nil
}

func (p *Parser) parseForeach() (ast.Node, error) {
	tok := p.advance() // foreach
	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(lexer.TokenIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenComma); err != nil {
		return nil, err
	}
	iterable, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return nil, err
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return ast.NewForeach(ast.NewIdent(nameTok.Lit, nameTok), iterable, body, tok), nil
}

func (p *Parser) parseMatch() (ast.Node, error) {
	tok := p.advance() // match
	value, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenDo); err != nil {
		return nil, err
	}
	var arms []ast.MatchArm
	p.skipNewlines()
	for p.peekKind() != lexer.TokenEnd {
		if p.peekKind() == lexer.TokenEOF {
			return nil, p.errorf("unterminated match block")
		}
		if _, err := p.expect(lexer.TokenPipe); err != nil {
			return nil, err
		}
		pattern, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		var guard ast.Node
		if p.peekKind() == lexer.TokenIf {
			p.advance()
			guard, err = p.parseStatement()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(lexer.TokenColon); err != nil {
			return nil, err
		}
		body, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		arms = append(arms, ast.MatchArm{Pattern: pattern, Guard: guard, Body: body})
		p.skipNewlines()
	}
	p.advance() // end
	return ast.NewMatch(value, arms, tok), nil
}

func (p *Parser) parsePattern() (*ast.Pattern, error) {
	tok := p.cur()
	switch tok.Kind {
	case lexer.TokenUnderscore:
		p.advance()
		return &ast.Pattern{Kind: ast.PatternWildcard}, nil
	case lexer.TokenNumber:
		p.advance()
		return &ast.Pattern{Kind: ast.PatternLiteral, Literal: ast.NewNumberLiteral(tok.Number, tok)}, nil
	case lexer.TokenString:
		p.advance()
		return &ast.Pattern{Kind: ast.PatternLiteral, Literal: ast.NewStringLiteral(tok.Lit, tok)}, nil
	case lexer.TokenBool:
		p.advance()
		return &ast.Pattern{Kind: ast.PatternLiteral, Literal: ast.NewBoolLiteral(tok.Bool, tok)}, nil
	case lexer.TokenNone:
		p.advance()
		return &ast.Pattern{Kind: ast.PatternLiteral, Literal: ast.NewNoneLiteral(tok)}, nil
	case lexer.TokenIdent:
		p.advance()
		return &ast.Pattern{Kind: ast.PatternIdent, Name: tok.Lit}, nil
	case lexer.TokenColon:
		next := p.peekAhead(1)
		if next.Kind == lexer.TokenIdent && adjacent(tok, next) {
			p.advance()
			p.advance()
			return &ast.Pattern{Kind: ast.PatternType, TypeName: next.Lit}, nil
		}
		return nil, p.errorf("unexpected %s in pattern", tok)
	case lexer.TokenLBracket:
		return p.parseArrayPattern()
	case lexer.TokenLBrace:
		return p.parseDictPattern()
	}
	return nil, p.errorf("unexpected %s in pattern", tok)
}

func (p *Parser) parseArrayPattern() (*ast.Pattern, error) {
	p.advance() // [
	pattern := &ast.Pattern{Kind: ast.PatternArray}
	for p.peekKind() != lexer.TokenRBracket {
		if p.peekKind() == lexer.TokenDotDot {
			p.advance()
			restTok, err := p.expect(lexer.TokenIdent)
			if err != nil {
				return nil, err
			}
			pattern.Kind = ast.PatternArrayRest
			pattern.Rest = restTok.Lit
			break
		}
		el, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		pattern.Elements = append(pattern.Elements, el)
		if p.peekKind() == lexer.TokenComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.TokenRBracket); err != nil {
		return nil, err
	}
	return pattern, nil
}

func (p *Parser) parseDictPattern() (*ast.Pattern, error) {
	p.advance() // {
	pattern := &ast.Pattern{Kind: ast.PatternDict}
	for p.peekKind() != lexer.TokenRBrace {
		keyTok, err := p.expect(lexer.TokenIdent)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenColon); err != nil {
			return nil, err
		}
		value, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		pattern.Keys = append(pattern.Keys, keyTok.Lit)
		pattern.Values = append(pattern.Values, value)
		if p.peekKind() == lexer.TokenComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.TokenRBrace); err != nil {
		return nil, err
	}
	return pattern, nil
}

func (p *Parser) parseTry() (ast.Node, error) {
	tok := p.advance() // try
	body, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenCatch); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenColon); err != nil {
		return nil, err
	}
	catch, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return ast.NewTry(body, catch, tok), nil
}

func (p *Parser) parseMacro() (ast.Node, error) {
	tok := p.advance() // macro
	nameTok, err := p.expect(lexer.TokenIdent)
	if err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	bodyTok := p.cur()
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	if p.peekKind() == lexer.TokenSemiColon {
		p.advance()
	}
	return ast.NewMacro(ast.NewIdent(nameTok.Lit, nameTok), params, blockNode(body, bodyTok), tok), nil
}

func (p *Parser) parseModule() (ast.Node, error) {
	tok := p.advance() // module
	nameTok, err := p.expect(lexer.TokenIdent)
	if err != nil {
		return nil, err
	}
	body, err := p.parseDoEnd()
	if err != nil {
		return nil, err
	}
	return ast.NewModule(ast.NewIdent(nameTok.Lit, nameTok), body, tok), nil
}
