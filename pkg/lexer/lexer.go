package lexer

import (
	"fmt"
	"strconv"
	"strings"
)

// Lexer scans mq source text into a flat token slice.
type Lexer struct {
	src    []rune
	pos    int
	line   int
	col    int
	module string
}

// SyntaxError reports an unexpected character or malformed literal.
type SyntaxError struct {
	Message string
	Pos     Position
	Module  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Module, e.Pos.Line, e.Pos.Column, e.Message)
}

// Tokenize scans src and returns all tokens including a trailing EOF token.
// The module name is attached to every token for diagnostics.
func Tokenize(src, module string) ([]Token, error) {
	l := &Lexer{src: []rune(src), line: 1, col: 1, module: module}
	var tokens []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokenEOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) position() Position {
	return Position{Line: l.line, Column: l.col}
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(offset int) rune {
	if l.pos+offset >= len(l.src) {
		return 0
	}
	return l.src[l.pos+offset]
}

func (l *Lexer) advance() rune {
	ch := l.src[l.pos]
	l.pos++
	if ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return ch
}

func (l *Lexer) errorf(pos Position, format string, args ...any) error {
	return &SyntaxError{Message: fmt.Sprintf(format, args...), Pos: pos, Module: l.module}
}

func (l *Lexer) token(kind TokenKind, start Position) Token {
	return Token{Kind: kind, Range: Range{Start: start, End: l.position()}, Module: l.module}
}

func (l *Lexer) next() (Token, error) {
	l.skipSpacesAndComments()
	start := l.position()
	if l.pos >= len(l.src) {
		return l.token(TokenEOF, start), nil
	}

	ch := l.peek()
	switch {
	case ch == '\n':
		l.advance()
		return l.token(TokenNewLine, start), nil
	case isDigit(ch):
		return l.scanNumber(start)
	case ch == '"':
		return l.scanString(start, false)
	case ch == 's' && l.peekAt(1) == '"':
		l.advance()
		return l.scanString(start, true)
	case ch == '$':
		return l.scanEnv(start)
	case ch == '.':
		return l.scanDotted(start)
	case isIdentStart(ch):
		return l.scanIdent(start), nil
	}

	l.advance()
	switch ch {
	case ',':
		return l.token(TokenComma, start), nil
	case ';':
		return l.token(TokenSemiColon, start), nil
	case '(':
		return l.token(TokenLParen, start), nil
	case ')':
		return l.token(TokenRParen, start), nil
	case '[':
		return l.token(TokenLBracket, start), nil
	case ']':
		return l.token(TokenRBracket, start), nil
	case '{':
		return l.token(TokenLBrace, start), nil
	case '}':
		return l.token(TokenRBrace, start), nil
	case '?':
		return l.token(TokenQuestion, start), nil
	case '+':
		return l.token(TokenPlus, start), nil
	case '-':
		return l.token(TokenMinus, start), nil
	case '*':
		return l.token(TokenAsterisk, start), nil
	case '/':
		return l.token(TokenSlash, start), nil
	case '%':
		return l.token(TokenPercent, start), nil
	case ':':
		if l.peek() == ':' {
			l.advance()
			return l.token(TokenColonColon, start), nil
		}
		return l.token(TokenColon, start), nil
	case '|':
		if l.peek() == '|' {
			l.advance()
			return l.token(TokenOrOr, start), nil
		}
		return l.token(TokenPipe, start), nil
	case '&':
		if l.peek() == '&' {
			l.advance()
			return l.token(TokenAndAnd, start), nil
		}
		return Token{}, l.errorf(start, "unexpected character %q", ch)
	case '=':
		if l.peek() == '=' {
			l.advance()
			return l.token(TokenEqEq, start), nil
		}
		return l.token(TokenEqual, start), nil
	case '!':
		if l.peek() == '=' {
			l.advance()
			return l.token(TokenNeEq, start), nil
		}
		return l.token(TokenNot, start), nil
	case '<':
		if l.peek() == '=' {
			l.advance()
			return l.token(TokenLte, start), nil
		}
		return l.token(TokenLt, start), nil
	case '>':
		if l.peek() == '=' {
			l.advance()
			return l.token(TokenGte, start), nil
		}
		return l.token(TokenGt, start), nil
	}
	return Token{}, l.errorf(start, "unexpected character %q", ch)
}

func (l *Lexer) skipSpacesAndComments() {
	for l.pos < len(l.src) {
		ch := l.peek()
		if ch == ' ' || ch == '\t' || ch == '\r' {
			l.advance()
			continue
		}
		if ch == '#' {
			for l.pos < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
			continue
		}
		return
	}
}

func (l *Lexer) scanNumber(start Position) (Token, error) {
	var sb strings.Builder
	for l.pos < len(l.src) && isDigit(l.peek()) {
		sb.WriteRune(l.advance())
	}
	if l.peek() == '.' && isDigit(l.peekAt(1)) {
		sb.WriteRune(l.advance())
		for l.pos < len(l.src) && isDigit(l.peek()) {
			sb.WriteRune(l.advance())
		}
	}
	if l.peek() == 'e' || l.peek() == 'E' {
		sb.WriteRune(l.advance())
		if l.peek() == '+' || l.peek() == '-' {
			sb.WriteRune(l.advance())
		}
		if !isDigit(l.peek()) {
			return Token{}, l.errorf(start, "malformed number literal %q", sb.String())
		}
		for l.pos < len(l.src) && isDigit(l.peek()) {
			sb.WriteRune(l.advance())
		}
	}
	n, err := strconv.ParseFloat(sb.String(), 64)
	if err != nil {
		return Token{}, l.errorf(start, "malformed number literal %q", sb.String())
	}
	tok := l.token(TokenNumber, start)
	tok.Number = n
	return tok, nil
}

// scanString handles both plain strings and interpolated s"..." strings.
func (l *Lexer) scanString(start Position, interpolated bool) (Token, error) {
	l.advance() // opening quote
	var text strings.Builder
	var segments []StringSegment

	flush := func() {
		if text.Len() > 0 {
			segments = append(segments, StringSegment{Kind: SegmentText, Text: text.String()})
			text.Reset()
		}
	}

	for {
		if l.pos >= len(l.src) {
			return Token{}, l.errorf(start, "unterminated string literal")
		}
		ch := l.advance()
		switch {
		case ch == '"':
			if interpolated {
				flush()
				tok := l.token(TokenInterpolatedString, start)
				tok.Segments = segments
				return tok, nil
			}
			tok := l.token(TokenString, start)
			tok.Lit = text.String()
			return tok, nil
		case ch == '\\':
			if l.pos >= len(l.src) {
				return Token{}, l.errorf(start, "unterminated string literal")
			}
			esc := l.advance()
			switch esc {
			case 'n':
				text.WriteRune('\n')
			case 't':
				text.WriteRune('\t')
			case 'r':
				text.WriteRune('\r')
			case '"':
				text.WriteRune('"')
			case '\\':
				text.WriteRune('\\')
			case '$':
				text.WriteRune('$')
			default:
				return Token{}, l.errorf(start, "unknown escape sequence \\%c", esc)
			}
		case interpolated && ch == '$' && l.peek() == '{':
			l.advance() // {
			inner, err := l.scanInterpolationExpr(start)
			if err != nil {
				return Token{}, err
			}
			flush()
			if inner == "self" {
				segments = append(segments, StringSegment{Kind: SegmentSelf})
			} else {
				segments = append(segments, StringSegment{Kind: SegmentExpr, Text: inner})
			}
		case interpolated && ch == '$' && isEnvStart(l.peek()):
			var name strings.Builder
			for l.pos < len(l.src) && isEnvChar(l.peek()) {
				name.WriteRune(l.advance())
			}
			flush()
			segments = append(segments, StringSegment{Kind: SegmentEnv, Text: name.String()})
		default:
			text.WriteRune(ch)
		}
	}
}

// scanInterpolationExpr consumes the inner source of a ${...} segment,
// tracking nested braces so dict literals inside interpolations work.
func (l *Lexer) scanInterpolationExpr(start Position) (string, error) {
	var sb strings.Builder
	depth := 1
	for {
		if l.pos >= len(l.src) {
			return "", l.errorf(start, "unterminated interpolation segment")
		}
		ch := l.advance()
		if ch == '{' {
			depth++
		} else if ch == '}' {
			depth--
			if depth == 0 {
				return strings.TrimSpace(sb.String()), nil
			}
		}
		sb.WriteRune(ch)
	}
}

func (l *Lexer) scanEnv(start Position) (Token, error) {
	l.advance() // $
	if !isEnvStart(l.peek()) {
		return Token{}, l.errorf(start, "malformed environment variable reference")
	}
	var name strings.Builder
	for l.pos < len(l.src) && isEnvChar(l.peek()) {
		name.WriteRune(l.advance())
	}
	tok := l.token(TokenEnv, start)
	tok.Lit = name.String()
	return tok, nil
}

// scanDotted lexes ".." and ".selector" tokens.
func (l *Lexer) scanDotted(start Position) (Token, error) {
	l.advance() // .
	if l.peek() == '.' {
		l.advance()
		return l.token(TokenDotDot, start), nil
	}
	if !isSelectorChar(l.peek()) {
		return Token{}, l.errorf(start, "malformed selector")
	}
	var name strings.Builder
	name.WriteRune('.')
	for l.pos < len(l.src) && isSelectorChar(l.peek()) {
		name.WriteRune(l.advance())
	}
	tok := l.token(TokenSelector, start)
	tok.Lit = name.String()
	return tok, nil
}

var keywords = map[string]TokenKind{
	"def":      TokenDef,
	"let":      TokenLet,
	"var":      TokenVar,
	"fn":       TokenFn,
	"if":       TokenIf,
	"elif":     TokenElif,
	"else":     TokenElse,
	"while":    TokenWhile,
	"until":    TokenUntil,
	"foreach":  TokenForeach,
	"match":    TokenMatch,
	"do":       TokenDo,
	"end":      TokenEnd,
	"try":      TokenTry,
	"catch":    TokenCatch,
	"macro":    TokenMacro,
	"module":   TokenModule,
	"include":  TokenInclude,
	"import":   TokenImport,
	"break":    TokenBreak,
	"continue": TokenContinue,
	"self":     TokenSelf,
	"nodes":    TokenNodes,
	"none":     TokenNone,
	"and":      TokenAndAnd,
	"or":       TokenOrOr,
	"not":      TokenNot,
}

func (l *Lexer) scanIdent(start Position) Token {
	var sb strings.Builder
	for l.pos < len(l.src) && isIdentChar(l.peek()) {
		sb.WriteRune(l.advance())
	}
	name := sb.String()
	if name == "_" {
		return l.token(TokenUnderscore, start)
	}
	if name == "true" || name == "false" {
		tok := l.token(TokenBool, start)
		tok.Bool = name == "true"
		return tok
	}
	if kind, ok := keywords[name]; ok {
		return l.token(kind, start)
	}
	tok := l.token(TokenIdent, start)
	tok.Lit = name
	return tok
}

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }

func isIdentStart(ch rune) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentChar(ch rune) bool { return isIdentStart(ch) || isDigit(ch) }

func isEnvStart(ch rune) bool {
	return ch == '_' || (ch >= 'A' && ch <= 'Z')
}

func isEnvChar(ch rune) bool { return isEnvStart(ch) || isDigit(ch) }

func isSelectorChar(ch rune) bool {
	return isIdentChar(ch) || ch == '#' || ch == '*'
}
