// Package css is the exact-match structural engine: bodies are CSS selector
// groups evaluated in the light tree of the query root.
package css

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/hazyhaar/domlocator/dom"
	"github.com/hazyhaar/domlocator/engine"
	"golang.org/x/net/html"
)

// Name is the registry name of the engine.
const Name = "css"

var (
	plainID    = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9\-_]+$`)
	plainClass = regexp.MustCompile(`^-?[_a-zA-Z][_a-zA-Z0-9-]*$`)
)

// Engine implements engine.Engine.
type Engine struct{}

// New returns the engine.
func New() *Engine { return &Engine{} }

// Query returns the first light-tree descendant of root matching body.
func (e *Engine) Query(root dom.Root, body string) (*html.Node, error) {
	sel, err := compile(body)
	if err != nil {
		return nil, err
	}
	return root.QueryFirst(sel), nil
}

// QueryAll returns every light-tree descendant of root matching body.
func (e *Engine) QueryAll(root dom.Root, body string) ([]*html.Node, error) {
	sel, err := compile(body)
	if err != nil {
		return nil, err
	}
	return root.QueryAll(sel), nil
}

// Create climbs from target towards root, preferring an id, then a growing
// class list, then the tag (with an ordinal when the tag repeats among
// siblings). The first candidate whose first match from root is target wins.
func (e *Engine) Create(root dom.Root, target *html.Node, _ engine.Mode) (string, bool) {
	if target == nil || target.Type != html.ElementNode || target == root.Node || !root.Contains(target) {
		return "", false
	}

	var tokens []string
	unique := func(prefix string) (string, bool) {
		path := tokens
		if prefix != "" {
			path = append([]string{prefix}, tokens...)
		}
		selector := strings.Join(path, " > ")
		sel, err := dom.CompileCSS(selector)
		if err != nil {
			return "", false
		}
		return selector, root.QueryFirst(sel) == target
	}

	for el := target; el != nil && el != root.Node && el.Type == html.ElementNode; el = el.Parent {
		nodeName := el.Data
		best := ""

		if id, _ := dom.Attr(el, "id"); id != "" {
			token := `[id=` + engine.CSSString(id) + `]`
			if plainID.MatchString(id) {
				token = "#" + id
			}
			if selector, ok := unique(token); ok {
				return selector, true
			}
			best = token
		}

		// A document or shadow root parent counts too: :nth-child only looks
		// at siblings.
		var parent *html.Node
		if p := el.Parent; p != nil && (p.Type == html.ElementNode || p.Type == html.DocumentNode) {
			parent = p
		}

		classes := plainClasses(el)
		for i := range classes {
			token := "." + strings.Join(classes[:i+1], ".")
			if selector, ok := unique(token); ok {
				return selector, true
			}
			if best == "" && parent != nil {
				if sel, err := dom.CompileCSS(token); err == nil && len(root.At(parent).QueryAll(sel)) == 1 {
					best = token
				}
			}
		}

		if parent != nil {
			siblings := dom.Children(parent)
			sameTag, position := 0, 0
			for i, s := range siblings {
				if s.Data == nodeName {
					sameTag++
				}
				if s == el {
					position = i + 1
				}
			}
			token := nodeName
			if sameTag > 1 {
				token = nodeName + ":nth-child(" + strconv.Itoa(position) + ")"
			}
			if selector, ok := unique(token); ok {
				return selector, true
			}
			if best == "" {
				best = token
			}
		} else if best == "" {
			best = nodeName
		}
		tokens = append([]string{best}, tokens...)
	}

	return unique("")
}

func plainClasses(n *html.Node) []string {
	var out []string
	for _, c := range strings.Fields(dom.AttrOr(n, "class", "")) {
		if plainClass.MatchString(c) {
			out = append(out, c)
		}
	}
	return out
}

func compile(body string) (cascadia.Selector, error) {
	if strings.TrimSpace(body) == "" {
		return nil, engine.ErrEmptySelector
	}
	sel, err := dom.CompileCSS(body)
	if err != nil {
		return nil, engine.Malformed(Name, body, -1, err)
	}
	return sel, nil
}
