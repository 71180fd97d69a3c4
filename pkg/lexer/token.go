package lexer

import "fmt"

// TokenKind identifies the lexical category of a token.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenNewLine
	TokenIdent
	TokenEnv
	TokenSelector
	TokenString
	TokenInterpolatedString
	TokenNumber
	TokenBool
	TokenNone
	TokenComma
	TokenColon
	TokenColonColon
	TokenSemiColon
	TokenPipe
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenLBrace
	TokenRBrace
	TokenEqual
	TokenEqEq
	TokenNeEq
	TokenLt
	TokenLte
	TokenGt
	TokenGte
	TokenPlus
	TokenMinus
	TokenAsterisk
	TokenSlash
	TokenPercent
	TokenQuestion
	TokenAndAnd
	TokenOrOr
	TokenNot
	TokenDotDot
	TokenUnderscore
	TokenDef
	TokenLet
	TokenVar
	TokenFn
	TokenIf
	TokenElif
	TokenElse
	TokenWhile
	TokenUntil
	TokenForeach
	TokenMatch
	TokenDo
	TokenEnd
	TokenTry
	TokenCatch
	TokenMacro
	TokenModule
	TokenInclude
	TokenImport
	TokenBreak
	TokenContinue
	TokenSelf
	TokenNodes
)

func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "end of input"
	case TokenNewLine:
		return "newline"
	case TokenIdent:
		return "identifier"
	case TokenEnv:
		return "environment variable"
	case TokenSelector:
		return "selector"
	case TokenString:
		return "string"
	case TokenInterpolatedString:
		return "interpolated string"
	case TokenNumber:
		return "number"
	case TokenBool:
		return "bool"
	case TokenNone:
		return "none"
	case TokenComma:
		return ","
	case TokenColon:
		return ":"
	case TokenColonColon:
		return "::"
	case TokenSemiColon:
		return ";"
	case TokenPipe:
		return "|"
	case TokenLParen:
		return "("
	case TokenRParen:
		return ")"
	case TokenLBracket:
		return "["
	case TokenRBracket:
		return "]"
	case TokenLBrace:
		return "{"
	case TokenRBrace:
		return "}"
	case TokenEqual:
		return "="
	case TokenEqEq:
		return "=="
	case TokenNeEq:
		return "!="
	case TokenLt:
		return "<"
	case TokenLte:
		return "<="
	case TokenGt:
		return ">"
	case TokenGte:
		return ">="
	case TokenPlus:
		return "+"
	case TokenMinus:
		return "-"
	case TokenAsterisk:
		return "*"
	case TokenSlash:
		return "/"
	case TokenPercent:
		return "%"
	case TokenQuestion:
		return "?"
	case TokenAndAnd:
		return "&&"
	case TokenOrOr:
		return "||"
	case TokenNot:
		return "!"
	case TokenDotDot:
		return ".."
	case TokenUnderscore:
		return "_"
	case TokenDef:
		return "def"
	case TokenLet:
		return "let"
	case TokenVar:
		return "var"
	case TokenFn:
		return "fn"
	case TokenIf:
		return "if"
	case TokenElif:
		return "elif"
	case TokenElse:
		return "else"
	case TokenWhile:
		return "while"
	case TokenUntil:
		return "until"
	case TokenForeach:
		return "foreach"
	case TokenMatch:
		return "match"
	case TokenDo:
		return "do"
	case TokenEnd:
		return "end"
	case TokenTry:
		return "try"
	case TokenCatch:
		return "catch"
	case TokenMacro:
		return "macro"
	case TokenModule:
		return "module"
	case TokenInclude:
		return "include"
	case TokenImport:
		return "import"
	case TokenBreak:
		return "break"
	case TokenContinue:
		return "continue"
	case TokenSelf:
		return "self"
	case TokenNodes:
		return "nodes"
	default:
		return fmt.Sprintf("unknown_token_%d", int(k))
	}
}

// Position is a 1-based line/column location in the source text.
type Position struct {
	Line   int
	Column int
}

// Range spans a token in the source text.
type Range struct {
	Start Position
	End   Position
}

// SegmentKind identifies the variant of an interpolated-string segment.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentExpr
	SegmentEnv
	SegmentSelf
)

// StringSegment is one piece of an interpolated string literal. Expr
// segments carry the raw inner source; the parser turns it into a node.
type StringSegment struct {
	Kind SegmentKind
	Text string
}

// Token is a single lexeme together with its source location and the
// identifier of the module it was read from.
type Token struct {
	Kind     TokenKind
	Lit      string
	Number   float64
	Bool     bool
	Segments []StringSegment
	Range    Range
	Module   string
}

func (t Token) String() string {
	switch t.Kind {
	case TokenIdent, TokenSelector, TokenString:
		return t.Lit
	case TokenEnv:
		return "$" + t.Lit
	case TokenNumber:
		if t.Number == float64(int64(t.Number)) {
			return fmt.Sprintf("%d", int64(t.Number))
		}
		return fmt.Sprintf("%g", t.Number)
	case TokenBool:
		if t.Bool {
			return "true"
		}
		return "false"
	default:
		return t.Kind.String()
	}
}
