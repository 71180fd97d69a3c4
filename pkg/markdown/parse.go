package markdown

import (
	"regexp"
	"strconv"
	"strings"
)

var orderedItemRe = regexp.MustCompile(`^(\d+)\.\s+(.*)$`)

// Parse converts markdown text into a flat sequence of block nodes.
// The dialect is deliberately small: headings, fenced code, blockquotes,
// list items, horizontal rules and plain text paragraphs.
func Parse(text string) []*Node {
	var nodes []*Node
	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimRight(line, " \t")
		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "```"):
			lang := strings.TrimPrefix(trimmed, "```")
			var body []string
			for i++; i < len(lines); i++ {
				if strings.HasPrefix(strings.TrimRight(lines[i], " \t"), "```") {
					break
				}
				body = append(body, lines[i])
			}
			nodes = append(nodes, NewCode(lang, strings.Join(body, "\n")))
		case strings.HasPrefix(trimmed, "#"):
			depth := 0
			for depth < len(trimmed) && trimmed[depth] == '#' {
				depth++
			}
			if depth <= 6 && depth < len(trimmed) && trimmed[depth] == ' ' {
				nodes = append(nodes, NewHeading(depth, parseInline(trimmed[depth+1:])...))
			} else {
				nodes = append(nodes, NewText(trimmed))
			}
		case trimmed == "---" || trimmed == "***":
			nodes = append(nodes, &Node{Kind: KindHorizontalRule})
		case strings.HasPrefix(trimmed, "> "):
			nodes = append(nodes, &Node{Kind: KindBlockquote, Children: parseInline(strings.TrimPrefix(trimmed, "> "))})
		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			nodes = append(nodes, &Node{Kind: KindList, Children: parseInline(trimmed[2:])})
		case orderedItemRe.MatchString(trimmed):
			m := orderedItemRe.FindStringSubmatch(trimmed)
			index, _ := strconv.Atoi(m[1])
			nodes = append(nodes, &Node{Kind: KindList, Ordered: true, Index: index - 1, Children: parseInline(m[2])})
		default:
			nodes = append(nodes, NewText(trimmed))
		}
	}
	return nodes
}

var inlineRe = regexp.MustCompile("(`[^`]+`)|(\\*\\*[^*]+\\*\\*)|(\\*[^*]+\\*)|(\\[[^\\]]*\\]\\([^)]*\\))")

var linkRe = regexp.MustCompile(`^\[([^\]]*)\]\(([^)]*)\)$`)

func parseInline(text string) []*Node {
	var nodes []*Node
	rest := text
	for rest != "" {
		loc := inlineRe.FindStringIndex(rest)
		if loc == nil {
			nodes = append(nodes, NewText(rest))
			break
		}
		if loc[0] > 0 {
			nodes = append(nodes, NewText(rest[:loc[0]]))
		}
		match := rest[loc[0]:loc[1]]
		switch {
		case strings.HasPrefix(match, "`"):
			nodes = append(nodes, &Node{Kind: KindInlineCode, Value: strings.Trim(match, "`")})
		case strings.HasPrefix(match, "**"):
			nodes = append(nodes, &Node{Kind: KindStrong, Children: []*Node{NewText(strings.Trim(match, "*"))}})
		case strings.HasPrefix(match, "*"):
			nodes = append(nodes, &Node{Kind: KindEmphasis, Children: []*Node{NewText(strings.Trim(match, "*"))}})
		default:
			m := linkRe.FindStringSubmatch(match)
			nodes = append(nodes, &Node{Kind: KindLink, URL: m[2], Children: []*Node{NewText(m[1])}})
		}
		rest = rest[loc[1]:]
	}
	if len(nodes) == 0 {
		nodes = append(nodes, NewText(""))
	}
	return nodes
}

// Render joins block nodes back into a markdown document, skipping
// empty nodes.
func Render(nodes []*Node) string {
	var parts []string
	for _, node := range nodes {
		if node == nil || node.Kind == KindEmpty {
			continue
		}
		s := node.String()
		if s == "" {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n\n") + "\n"
}
