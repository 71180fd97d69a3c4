// Package markdown provides the document tree queried and rewritten by
// the engine: node kinds, selector matching, text rendering, and the
// recursive map/fragment operations used for whole-document rewrites.
package markdown

import (
	"fmt"
	"strings"
)

type NodeKind int

const (
	KindText NodeKind = iota
	KindHeading
	KindCode
	KindInlineCode
	KindBlockquote
	KindList
	KindHorizontalRule
	KindLink
	KindStrong
	KindEmphasis
	KindFragment
	KindEmpty
)

func (k NodeKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindHeading:
		return "heading"
	case KindCode:
		return "code"
	case KindInlineCode:
		return "inline_code"
	case KindBlockquote:
		return "blockquote"
	case KindList:
		return "list"
	case KindHorizontalRule:
		return "horizontal_rule"
	case KindLink:
		return "link"
	case KindStrong:
		return "strong"
	case KindEmphasis:
		return "emphasis"
	case KindFragment:
		return "fragment"
	case KindEmpty:
		return "empty"
	default:
		return fmt.Sprintf("unknown_kind_%d", int(k))
	}
}

// Node is one markdown element. Leaf kinds carry their text in Value;
// container kinds (heading, blockquote, list, link, strong, emphasis,
// fragment) carry Children.
type Node struct {
	Kind     NodeKind
	Value    string
	Depth    int // heading level 1..6
	Lang     string
	Ordered  bool
	Index    int // ordinal for ordered list items
	URL      string
	Children []*Node
}

func NewText(value string) *Node {
	return &Node{Kind: KindText, Value: value}
}

func NewHeading(depth int, children ...*Node) *Node {
	return &Node{Kind: KindHeading, Depth: depth, Children: children}
}

func NewCode(lang, value string) *Node {
	return &Node{Kind: KindCode, Lang: lang, Value: value}
}

func NewFragment(children ...*Node) *Node {
	return &Node{Kind: KindFragment, Children: children}
}

func Empty() *Node {
	return &Node{Kind: KindEmpty}
}

func (n *Node) IsFragment() bool { return n.Kind == KindFragment }

func (n *Node) IsContainer() bool {
	switch n.Kind {
	case KindHeading, KindBlockquote, KindList, KindLink, KindStrong, KindEmphasis, KindFragment:
		return true
	}
	return false
}

// Text returns the plain textual content of the node and its children.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	if n.IsContainer() {
		var sb strings.Builder
		for _, child := range n.Children {
			sb.WriteString(child.Text())
		}
		return sb.String()
	}
	return n.Value
}

func (n *Node) IsEmpty() bool {
	if n == nil || n.Kind == KindEmpty {
		return true
	}
	return n.Text() == ""
}

// Clone deep-copies the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return &c
}

// WithValue replaces the node's textual content, preserving its kind and
// structure. Containers collapse their children to a single text child.
func (n *Node) WithValue(value string) *Node {
	c := n.Clone()
	if c.IsContainer() {
		c.Children = []*Node{NewText(value)}
		return c
	}
	c.Value = value
	return c
}

// FindAtIndex returns the i-th child, or nil when out of range.
func (n *Node) FindAtIndex(i int) *Node {
	if i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// WithChildrenValue replaces the text of the i-th child.
func (n *Node) WithChildrenValue(value string, i int) *Node {
	c := n.Clone()
	if i >= 0 && i < len(c.Children) {
		c.Children[i] = c.Children[i].WithValue(value)
	}
	return c
}

// ToFragment converts a container into a fragment of its children so a
// traversal can descend into them. Leaves become Empty.
func (n *Node) ToFragment() *Node {
	if n.Kind == KindFragment {
		return n.Clone()
	}
	if n.IsContainer() {
		return NewFragment(n.Clone().Children...)
	}
	return Empty()
}

// MapValues applies f to the node; when the result is a fragment the
// traversal recurses into the fragment's children, otherwise the result
// replaces the node as-is.
func (n *Node) MapValues(f func(*Node) (*Node, error)) (*Node, error) {
	mapped, err := f(n)
	if err != nil {
		return nil, err
	}
	if mapped.Kind != KindFragment {
		return mapped, nil
	}
	children := make([]*Node, len(mapped.Children))
	for i, child := range mapped.Children {
		out, err := child.MapValues(f)
		if err != nil {
			return nil, err
		}
		children[i] = out
	}
	mapped.Children = children
	return mapped, nil
}

// ApplyFragment merges a fragment produced from this node back into it,
// pairing children by position. Empty results keep the original child;
// nested fragments merge recursively; anything else replaces the child.
func (n *Node) ApplyFragment(fragment *Node) {
	if !n.IsContainer() || fragment.Kind != KindFragment {
		return
	}
	for i, child := range n.Children {
		if i >= len(fragment.Children) {
			break
		}
		replacement := fragment.Children[i]
		switch {
		case replacement.IsEmpty() && !replacement.IsFragment():
			// keep original
		case replacement.IsFragment():
			merged := child.Clone()
			merged.ApplyFragment(replacement)
			n.Children[i] = merged
		default:
			n.Children[i] = replacement
		}
	}
}

// String renders the node back to markdown source.
func (n *Node) String() string {
	switch n.Kind {
	case KindText:
		return n.Value
	case KindHeading:
		return strings.Repeat("#", n.Depth) + " " + renderChildren(n.Children)
	case KindCode:
		return "```" + n.Lang + "\n" + n.Value + "\n```"
	case KindInlineCode:
		return "`" + n.Value + "`"
	case KindBlockquote:
		return "> " + renderChildren(n.Children)
	case KindList:
		marker := "-"
		if n.Ordered {
			marker = fmt.Sprintf("%d.", n.Index+1)
		}
		return marker + " " + renderChildren(n.Children)
	case KindHorizontalRule:
		return "---"
	case KindLink:
		return "[" + renderChildren(n.Children) + "](" + n.URL + ")"
	case KindStrong:
		return "**" + renderChildren(n.Children) + "**"
	case KindEmphasis:
		return "*" + renderChildren(n.Children) + "*"
	case KindFragment:
		return renderChildren(n.Children)
	default:
		return ""
	}
}

func renderChildren(children []*Node) string {
	var sb strings.Builder
	for _, child := range children {
		sb.WriteString(child.String())
	}
	return sb.String()
}
