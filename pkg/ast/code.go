package ast

import (
	"fmt"
	"strings"
)

// ToCode reconstructs executable source text from a node. The output is
// valid mq code that parses back to an equivalent structure.
func ToCode(node Node) string {
	var sb strings.Builder
	writeNode(&sb, node, 0)
	return sb.String()
}

// ProgramToCode renders a program in inline pipe syntax.
func ProgramToCode(program []Node) string {
	var sb strings.Builder
	writeProgramInline(&sb, program, 0)
	return sb.String()
}

func writeNode(sb *strings.Builder, node Node, indent int) {
	switch n := node.(type) {
	case *Literal:
		writeLiteral(sb, n)
	case *Ident:
		sb.WriteString(n.Name)
	case *Selector:
		sb.WriteString(n.Name)
	case *Self:
		sb.WriteString("self")
	case *Nodes:
		sb.WriteString("nodes")
	case *Break:
		sb.WriteString("break")
	case *Continue:
		sb.WriteString("continue")
	case *Paren:
		sb.WriteByte('(')
		writeNode(sb, n.Inner, indent)
		sb.WriteByte(')')
	case *And:
		writeNode(sb, n.Left, indent)
		sb.WriteString(" && ")
		writeNode(sb, n.Right, indent)
	case *Or:
		writeNode(sb, n.Left, indent)
		sb.WriteString(" || ")
		writeNode(sb, n.Right, indent)
	case *Call:
		sb.WriteString(n.Name.Name)
		if n.Optional {
			sb.WriteByte('?')
		}
		sb.WriteByte('(')
		writeArgs(sb, n.Args, indent)
		sb.WriteByte(')')
	case *CallDynamic:
		writeNode(sb, n.Callee, indent)
		sb.WriteByte('(')
		writeArgs(sb, n.Args, indent)
		sb.WriteByte(')')
	case *Let:
		fmt.Fprintf(sb, "let %s = ", n.Name.Name)
		writeNode(sb, n.Value, indent)
	case *Var:
		fmt.Fprintf(sb, "var %s = ", n.Name.Name)
		writeNode(sb, n.Value, indent)
	case *Assign:
		fmt.Fprintf(sb, "%s = ", n.Name.Name)
		writeNode(sb, n.Value, indent)
	case *If:
		for i, branch := range n.Branches {
			switch {
			case i == 0:
				sb.WriteString("if (")
				writeNode(sb, branch.Cond, indent)
				sb.WriteString("): ")
			case branch.Cond != nil:
				sb.WriteString(" elif (")
				writeNode(sb, branch.Cond, indent)
				sb.WriteString("): ")
			default:
				sb.WriteString(" else: ")
			}
			writeNode(sb, branch.Body, indent)
		}
	case *While:
		sb.WriteString("while (")
		writeNode(sb, n.Cond, indent)
		sb.WriteByte(')')
		writeBody(sb, n.Body, indent)
	case *Until:
		sb.WriteString("until (")
		writeNode(sb, n.Cond, indent)
		sb.WriteByte(')')
		writeBody(sb, n.Body, indent)
	case *Foreach:
		fmt.Fprintf(sb, "foreach(%s, ", n.Name.Name)
		writeNode(sb, n.Iterable, indent)
		sb.WriteByte(')')
		writeBody(sb, n.Body, indent)
	case *Block:
		writeProgramInline(sb, n.Body, indent)
	case *Def:
		fmt.Fprintf(sb, "def %s(", n.Name.Name)
		writeParams(sb, n.Params)
		sb.WriteByte(')')
		writeBody(sb, n.Body, indent)
	case *Fn:
		sb.WriteString("fn(")
		writeParams(sb, n.Params)
		sb.WriteByte(')')
		writeBody(sb, n.Body, indent)
	case *Match:
		sb.WriteString("match (")
		writeNode(sb, n.Value, indent)
		sb.WriteString(") do")
		for _, arm := range n.Arms {
			sb.WriteByte('\n')
			sb.WriteString(strings.Repeat("  ", indent+1))
			sb.WriteString("| ")
			writePattern(sb, arm.Pattern)
			if arm.Guard != nil {
				sb.WriteString(" if ")
				writeNode(sb, arm.Guard, indent+1)
			}
			sb.WriteString(": ")
			writeNode(sb, arm.Body, indent+1)
		}
		sb.WriteByte('\n')
		sb.WriteString(strings.Repeat("  ", indent))
		sb.WriteString("end")
	case *InterpolatedString:
		sb.WriteString(`s"`)
		for _, seg := range n.Segments {
			switch seg.Kind {
			case SegmentText:
				sb.WriteString(escapeString(seg.Text))
			case SegmentExpr:
				sb.WriteString("${")
				writeNode(sb, seg.Expr, indent)
				sb.WriteByte('}')
			case SegmentEnv:
				fmt.Fprintf(sb, "$%s", seg.Text)
			case SegmentSelf:
				sb.WriteString("${self}")
			}
		}
		sb.WriteByte('"')
	case *Macro:
		fmt.Fprintf(sb, "macro %s(", n.Name.Name)
		writeParams(sb, n.Params)
		sb.WriteString("): ")
		writeNode(sb, n.Body, indent)
	case *Try:
		sb.WriteString("try ")
		writeNode(sb, n.Body, indent)
		sb.WriteString(" catch: ")
		writeNode(sb, n.Catch, indent)
	case *Module:
		fmt.Fprintf(sb, "module %s", n.Name.Name)
		writeProgramBlock(sb, n.Body, indent)
	case *QualifiedAccess:
		for _, part := range n.Path {
			sb.WriteString(part.Name)
			sb.WriteString("::")
		}
		sb.WriteString(n.Target.Name)
		if n.IsCall {
			sb.WriteByte('(')
			writeArgs(sb, n.Args, indent)
			sb.WriteByte(')')
		}
	case *Include:
		fmt.Fprintf(sb, "include %q", n.Path)
	case *Import:
		fmt.Fprintf(sb, "import %q", n.Path)
	}
}

func escapeString(s string) string {
	var sb strings.Builder
	for _, ch := range s {
		switch ch {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(ch)
		}
	}
	return sb.String()
}

func writeLiteral(sb *strings.Builder, lit *Literal) {
	switch lit.LitKind {
	case LiteralString:
		sb.WriteByte('"')
		sb.WriteString(escapeString(lit.Str))
		sb.WriteByte('"')
	case LiteralNumber:
		if lit.Num == float64(int64(lit.Num)) {
			fmt.Fprintf(sb, "%d", int64(lit.Num))
		} else {
			fmt.Fprintf(sb, "%g", lit.Num)
		}
	case LiteralSymbol:
		fmt.Fprintf(sb, ":%s", lit.Symbol)
	case LiteralBool:
		if lit.Bool {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case LiteralNone:
		sb.WriteString("none")
	}
}

func writeArgs(sb *strings.Builder, args []Node, indent int) {
	for i, arg := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeNode(sb, arg, indent)
	}
}

func writeParams(sb *strings.Builder, params []*Ident) {
	for i, param := range params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(param.Name)
	}
}

func writeProgramInline(sb *strings.Builder, program []Node, indent int) {
	for i, stmt := range program {
		if i > 0 {
			sb.WriteString(" | ")
		}
		writeNode(sb, stmt, indent)
	}
}

func writeProgramBlock(sb *strings.Builder, program []Node, indent int) {
	sb.WriteString(" do")
	for _, stmt := range program {
		sb.WriteByte('\n')
		sb.WriteString(strings.Repeat("  ", indent+1))
		writeNode(sb, stmt, indent+1)
	}
	sb.WriteByte('\n')
	sb.WriteString(strings.Repeat("  ", indent))
	sb.WriteString("end")
}

// writeBody chooses inline colon syntax for single statements and do/end
// blocks for longer bodies.
func writeBody(sb *strings.Builder, body []Node, indent int) {
	if len(body) > 1 {
		writeProgramBlock(sb, body, indent)
		return
	}
	if len(body) == 1 {
		sb.WriteString(": ")
		writeNode(sb, body[0], indent)
	}
}

func writePattern(sb *strings.Builder, p *Pattern) {
	switch p.Kind {
	case PatternLiteral:
		writeLiteral(sb, p.Literal)
	case PatternIdent:
		sb.WriteString(p.Name)
	case PatternWildcard:
		sb.WriteByte('_')
	case PatternArray:
		sb.WriteByte('[')
		for i, el := range p.Elements {
			if i > 0 {
				sb.WriteString(", ")
			}
			writePattern(sb, el)
		}
		sb.WriteByte(']')
	case PatternArrayRest:
		sb.WriteByte('[')
		for i, el := range p.Elements {
			if i > 0 {
				sb.WriteString(", ")
			}
			writePattern(sb, el)
		}
		if len(p.Elements) > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "..%s", p.Rest)
		sb.WriteByte(']')
	case PatternDict:
		sb.WriteByte('{')
		for i, key := range p.Keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "%s: ", key)
			writePattern(sb, p.Values[i])
		}
		sb.WriteByte('}')
	case PatternType:
		fmt.Fprintf(sb, ":%s", p.TypeName)
	}
}
