package markdown

import "testing"

const sampleDoc = `# Title

Some intro text.

## Usage

` + "```sh\nmake build\n```" + `

- first
- second
1. one

> a quote

---
`

func TestParseBlocks(t *testing.T) {
	nodes := Parse(sampleDoc)
	want := []NodeKind{
		KindHeading, KindText, KindHeading, KindCode,
		KindList, KindList, KindList, KindBlockquote, KindHorizontalRule,
	}
	if len(nodes) != len(want) {
		t.Fatalf("node count: got %d, want %d", len(nodes), len(want))
	}
	for i, kind := range want {
		if nodes[i].Kind != kind {
			t.Fatalf("node %d: got %v, want %v", i, nodes[i].Kind, kind)
		}
	}
	if nodes[0].Depth != 1 || nodes[2].Depth != 2 {
		t.Fatalf("heading depths: %d, %d", nodes[0].Depth, nodes[2].Depth)
	}
	if nodes[3].Lang != "sh" || nodes[3].Value != "make build" {
		t.Fatalf("code block: %#v", nodes[3])
	}
	if !nodes[6].Ordered || nodes[6].Index != 0 {
		t.Fatalf("ordered item: %#v", nodes[6])
	}
}

func TestParseInlineSpans(t *testing.T) {
	nodes := Parse("has `code`, **bold**, *em* and [a link](https://x.test)")
	if len(nodes) != 1 {
		t.Fatalf("node count: got %d", len(nodes))
	}
	kinds := make([]NodeKind, 0)
	for _, child := range nodes[0].Children {
		kinds = append(kinds, child.Kind)
	}
	// text, code, text, strong, text, em, text, link
	want := []NodeKind{KindText, KindInlineCode, KindText, KindStrong, KindText, KindEmphasis, KindText, KindLink}
	if len(kinds) != len(want) {
		t.Fatalf("inline kinds: got %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("inline %d: got %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestParseHashWithoutSpaceIsText(t *testing.T) {
	nodes := Parse("#tag")
	if len(nodes) != 1 || nodes[0].Kind != KindText {
		t.Fatalf("got %#v", nodes)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	doc := "# Title\n\nbody text\n\n```go\nx := 1\n```\n"
	rendered := Render(Parse(doc))
	if rendered != doc {
		t.Fatalf("round trip:\n got %q\nwant %q", rendered, doc)
	}
}

func TestRenderSkipsEmpty(t *testing.T) {
	out := Render([]*Node{NewText("keep"), Empty(), nil})
	if out != "keep\n" {
		t.Fatalf("got %q", out)
	}
}

func TestParseSelectorForms(t *testing.T) {
	tests := []struct {
		name string
		want Selector
	}{
		{".h", Selector{Kind: KindHeading}},
		{".h2", Selector{Kind: KindHeading, Depth: 2}},
		{".##", Selector{Kind: KindHeading, Depth: 2}},
		{".code", Selector{Kind: KindCode}},
		{".code_go", Selector{Kind: KindCode, Lang: "go"}},
		{".inline_code", Selector{Kind: KindInlineCode}},
		{".text", Selector{Kind: KindText}},
		{".list", Selector{Kind: KindList}},
		{".blockquote", Selector{Kind: KindBlockquote}},
		{".hr", Selector{Kind: KindHorizontalRule}},
		{".link", Selector{Kind: KindLink}},
		{".strong", Selector{Kind: KindStrong}},
		{".em", Selector{Kind: KindEmphasis}},
		{".**", Selector{Any: true}},
	}
	for _, tt := range tests {
		got, err := ParseSelector(tt.name)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got != tt.want {
			t.Fatalf("%s: got %+v, want %+v", tt.name, got, tt.want)
		}
	}
	if _, err := ParseSelector(".bogus"); err == nil {
		t.Fatalf("expected error for unknown selector")
	}
}

func TestSelectorMatches(t *testing.T) {
	h2 := NewHeading(2, NewText("x"))
	goCode := NewCode("go", "x")

	tests := []struct {
		selector string
		node     *Node
		want     bool
	}{
		{".h", h2, true},
		{".h2", h2, true},
		{".h1", h2, false},
		{".code", goCode, true},
		{".code_go", goCode, true},
		{".code_sh", goCode, false},
		{".text", h2, false},
		{".**", h2, true},
		{".**", Empty(), false},
	}
	for _, tt := range tests {
		sel, err := ParseSelector(tt.selector)
		if err != nil {
			t.Fatalf("%s: %v", tt.selector, err)
		}
		if got := sel.Matches(tt.node); got != tt.want {
			t.Fatalf("%s on %v: got %v, want %v", tt.selector, tt.node.Kind, got, tt.want)
		}
	}
}
