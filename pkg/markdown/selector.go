package markdown

import (
	"fmt"
	"strings"
)

// Selector is a node predicate parsed from selector syntax such as
// ".h2", ".code", ".##" or ".**".
type Selector struct {
	Kind  NodeKind
	Depth int    // heading depth filter, 0 matches any
	Lang  string // code language filter, "" matches any
	Any   bool   // ".**" matches every node
}

// ParseSelector maps selector source text to a predicate.
func ParseSelector(name string) (Selector, error) {
	body := strings.TrimPrefix(name, ".")
	if body == "**" {
		return Selector{Any: true}, nil
	}
	if body != "" && strings.Trim(body, "#") == "" {
		return Selector{Kind: KindHeading, Depth: len(body)}, nil
	}
	switch {
	case body == "h":
		return Selector{Kind: KindHeading}, nil
	case len(body) == 2 && body[0] == 'h' && body[1] >= '1' && body[1] <= '6':
		return Selector{Kind: KindHeading, Depth: int(body[1] - '0')}, nil
	case body == "code":
		return Selector{Kind: KindCode}, nil
	case strings.HasPrefix(body, "code_"):
		return Selector{Kind: KindCode, Lang: strings.TrimPrefix(body, "code_")}, nil
	case body == "inline_code":
		return Selector{Kind: KindInlineCode}, nil
	case body == "text":
		return Selector{Kind: KindText}, nil
	case body == "list":
		return Selector{Kind: KindList}, nil
	case body == "blockquote":
		return Selector{Kind: KindBlockquote}, nil
	case body == "hr":
		return Selector{Kind: KindHorizontalRule}, nil
	case body == "link":
		return Selector{Kind: KindLink}, nil
	case body == "strong":
		return Selector{Kind: KindStrong}, nil
	case body == "em":
		return Selector{Kind: KindEmphasis}, nil
	}
	return Selector{}, fmt.Errorf("unknown selector %q", name)
}

// Matches reports whether the node satisfies the selector.
func (s Selector) Matches(n *Node) bool {
	if n == nil {
		return false
	}
	if s.Any {
		return n.Kind != KindEmpty
	}
	if n.Kind != s.Kind {
		return false
	}
	if s.Kind == KindHeading && s.Depth != 0 && n.Depth != s.Depth {
		return false
	}
	if s.Kind == KindCode && s.Lang != "" && n.Lang != s.Lang {
		return false
	}
	return true
}
