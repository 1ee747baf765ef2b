// Package xpath evaluates XPath 1.0 expressions over the light tree of the
// query root and synthesizes readable XPath selectors for elements.
package xpath

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"github.com/hazyhaar/domlocator/dom"
	"github.com/hazyhaar/domlocator/engine"
	"golang.org/x/net/html"
)

// Name is the registry name of the engine.
const Name = "xpath"

const (
	capLength  = 50
	longValue  = 100
	ordinalMax = 5
)

var defaultAttributes = []string{"title", "aria-label", "disabled", "role"}

var importantAttributes = map[string][]string{
	"form":  {"action"},
	"img":   {"alt"},
	"input": {"placeholder", "type", "name", "value"},
}

// Engine implements engine.Engine.
type Engine struct{}

// New returns the engine.
func New() *Engine { return &Engine{} }

// Query returns the first element selected by body.
func (e *Engine) Query(root dom.Root, body string) (*html.Node, error) {
	nodes, err := e.QueryAll(root, body)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

// QueryAll returns the elements selected by body, in document order. The
// root acts as the document: "/" and "//" are anchored at it. Non-element
// results (text, attributes) and the root itself are dropped.
func (e *Engine) QueryAll(root dom.Root, body string) ([]*html.Node, error) {
	if strings.TrimSpace(body) == "" {
		return nil, engine.ErrEmptySelector
	}
	expr, err := xpath.Compile(body)
	if err != nil {
		return nil, engine.Malformed(Name, body, -1, err)
	}
	return evaluate(root, expr), nil
}

func evaluate(root dom.Root, expr *xpath.Expr) []*html.Node {
	var set dom.NodeSet
	for _, n := range htmlquery.QuerySelectorAll(root.Node, expr) {
		if n.Type != html.ElementNode || n == root.Node || !root.Contains(n) {
			continue
		}
		set.Add(n)
	}
	return set.Nodes()
}

// Create climbs from target towards root. Each level contributes a tag step
// qualified by important attributes, and the first level with text also by
// its normalized text. The first path whose first match is target wins; a
// positional step is added for levels whose tag repeats among siblings.
// ModeNoText builds a purely positional path anchored on the nearest id.
func (e *Engine) Create(root dom.Root, target *html.Node, mode engine.Mode) (string, bool) {
	if target == nil || target.Type != html.ElementNode || target == root.Node || !root.Contains(target) {
		return "", false
	}
	if mode == engine.ModeNoText {
		return createNoText(root, target)
	}

	var tokens []string
	unique := func(prefix string) (string, bool) {
		path := tokens
		if prefix != "" {
			path = append([]string{prefix}, tokens...)
		}
		selector := "//" + strings.Join(path, "/")
		for strings.Contains(selector, "///") {
			selector = strings.ReplaceAll(selector, "///", "//")
		}
		selector = strings.TrimSuffix(selector, "/")
		expr, err := xpath.Compile(selector)
		if err != nil {
			return "", false
		}
		nodes := evaluate(root, expr)
		if len(nodes) > 0 && nodes[0] == target {
			return selector, true
		}
		if len(nodes) < ordinalMax && len(selector) > longValue {
			for i, n := range nodes {
				if n == target {
					return "(" + selector + ")[" + strconv.Itoa(i+1) + "]", true
				}
			}
		}
		return "", false
	}

	usedText := false
	for el := target; el != nil && el != root.Node && el.Type == html.ElementNode; el = el.Parent {
		nodeName := strings.ToLower(el.Data)
		tag := nodeName
		var tagConditions []string
		if nodeName == "svg" {
			tag = "*"
			tagConditions = append(tagConditions, `local-name()="svg"`)
		}

		var attrConditions []string
		for _, name := range append(append([]string(nil), defaultAttributes...), importantAttributes[tag]...) {
			value, _ := dom.Attr(el, name)
			switch {
			case value == "":
			case utf8.RuneCountInString(value) <= capLength:
				attrConditions = append(attrConditions, "normalize-space(@"+name+")="+literal(value))
			default:
				attrConditions = append(attrConditions, "starts-with(normalize-space(@"+name+"), "+literal(value)+")")
			}
		}

		var textConditions []string
		if text := normalizeSpace(htmlquery.InnerText(el)); tag != "select" && text != "" && !usedText {
			if utf8.RuneCountInString(text) <= capLength {
				textConditions = append(textConditions, "normalize-space(.)="+literal(text))
			} else {
				textConditions = append(textConditions, "starts-with(normalize-space(.), "+literal(text)+")")
			}
			usedText = true
		}

		conditions := append(append(append([]string(nil), tagConditions...), textConditions...), attrConditions...)
		token := ""
		switch {
		case len(conditions) > 0:
			token = tag + "[" + strings.Join(conditions, " and ") + "]"
		case len(tokens) == 0:
			token = tag
		}
		if selector, ok := unique(token); ok {
			return selector, true
		}

		ordinal := ""
		if p := el.Parent; p != nil && p.Type == html.ElementNode {
			same, index := 0, 0
			for _, s := range dom.Children(p) {
				if strings.ToLower(s.Data) == nodeName {
					same++
					if s == el {
						index = same
					}
				}
			}
			if same > 1 {
				ordinal = "[" + strconv.Itoa(index) + "]"
			}
		}
		structural := strings.Join(append(append([]string(nil), tagConditions...), attrConditions...), " and ")
		step := tag + ordinal
		if structural != "" {
			step += "[" + structural + "]"
		}
		tokens = append([]string{step}, tokens...)
	}
	return unique("")
}

func createNoText(root dom.Root, target *html.Node) (string, bool) {
	var steps []string
	for el := target; el != nil && el != root.Node && el.Type == html.ElementNode; el = el.Parent {
		if id, _ := dom.Attr(el, "id"); id != "" {
			steps = append([]string{"//*[@id=" + literal(id) + "]"}, steps...)
			return verify(root, strings.Join(steps, ""), target)
		}
		ordinal := ""
		if p := el.Parent; p != nil && p.Type == html.ElementNode {
			same, index := 0, 0
			for _, s := range dom.Children(p) {
				if s.Data == el.Data {
					same++
					if s == el {
						index = same
					}
				}
			}
			if same > 1 {
				ordinal = "[" + strconv.Itoa(index) + "]"
			}
		}
		steps = append([]string{"/" + strings.ToLower(el.Data) + ordinal}, steps...)
	}
	return verify(root, strings.Join(steps, ""), target)
}

func verify(root dom.Root, selector string, target *html.Node) (string, bool) {
	expr, err := xpath.Compile(selector)
	if err != nil {
		return "", false
	}
	nodes := evaluate(root, expr)
	if len(nodes) == 1 && nodes[0] == target {
		return selector, true
	}
	return "", false
}

// literal renders s, capped, as an XPath 1.0 string literal. Callers compare
// with equality only when s fits under the cap. XPath has no
// escapes, so mixed quotes go through concat().
func literal(s string) string {
	if r := []rune(s); len(r) > capLength {
		s = string(r[:capLength])
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, "'")
	for i, p := range parts {
		parts[i] = "'" + p + "'"
	}
	return "concat(" + strings.Join(parts, `, "'", `) + ")"
}

// normalizeSpace mirrors XPath normalize-space(), which only knows XML
// whitespace.
func normalizeSpace(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	}), " ")
}
