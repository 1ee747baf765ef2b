package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// textless elements never contribute to an element's text.
var textless = map[string]bool{
	"script":   true,
	"style":    true,
	"template": true,
}

// NormalizeSpace collapses whitespace runs to one space and trims the ends.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NodeName returns the DOM nodeName of n: upper-case tag names for HTML
// elements, the raw tag name for foreign content.
func NodeName(n *html.Node) string {
	switch n.Type {
	case html.ElementNode:
		if n.Namespace == "" {
			return strings.ToUpper(n.Data)
		}
		return n.Data
	case html.DocumentNode:
		return "#document"
	case html.TextNode:
		return "#text"
	case html.CommentNode:
		return "#comment"
	}
	return "#" + n.Data
}

// Attr returns the value of the named attribute.
func Attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or def.
func AttrOr(n *html.Node, name, def string) string {
	if v, ok := Attr(n, name); ok {
		return v
	}
	return def
}

// IsButtonInput reports whether n is an input whose label is its value.
func IsButtonInput(n *html.Node) bool {
	if n.Type != html.ElementNode || n.Data != "input" {
		return false
	}
	switch strings.ToLower(AttrOr(n, "type", "")) {
	case "submit", "button", "reset":
		return true
	}
	return false
}

// Text returns the raw text of n: the concatenated text of its descendants,
// skipping script, style and template content. Button-like inputs contribute
// their value. With pierce set, a host's shadow tree text comes before its
// light text.
func (t *Tree) Text(n *html.Node, pierce bool) string {
	var b strings.Builder
	t.appendText(&b, n, pierce)
	return b.String()
}

func (t *Tree) appendText(b *strings.Builder, n *html.Node, pierce bool) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if textless[n.Data] {
			return
		}
		if IsButtonInput(n) {
			b.WriteString(AttrOr(n, "value", ""))
			return
		}
	case html.DocumentNode:
	default:
		return
	}
	if pierce {
		if sr := t.shadows[n]; sr != nil {
			t.appendText(b, sr, pierce)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		t.appendText(b, c, pierce)
	}
}
