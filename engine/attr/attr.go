// Package attr resolves elements by the exact value of one attribute, such
// as id or data-testid. The light variant stays in the light tree of the
// root; the piercing variant also searches every reachable shadow tree.
package attr

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/hazyhaar/domlocator/dom"
	"github.com/hazyhaar/domlocator/engine"
	"golang.org/x/net/html"
)

// Engine matches elements whose attribute equals the selector body.
type Engine struct {
	attribute string
	pierce    bool
}

// New returns an engine for attribute. With pierce set, queries cross
// shadow boundaries.
func New(attribute string, pierce bool) *Engine {
	return &Engine{attribute: attribute, pierce: pierce}
}

// Name is the registry name: the attribute, suffixed with ":light" for the
// non-piercing variant.
func (e *Engine) Name() string {
	if e.pierce {
		return e.attribute
	}
	return e.attribute + ":light"
}

// Create returns the target's attribute value when it identifies the target
// alone.
func (e *Engine) Create(root dom.Root, target *html.Node, _ engine.Mode) (string, bool) {
	if target == nil || target.Type != html.ElementNode {
		return "", false
	}
	value, ok := dom.Attr(target, e.attribute)
	if !ok || value == "" {
		return "", false
	}
	all, err := e.QueryAll(root, value)
	if err != nil || len(all) != 1 || all[0] != target {
		return "", false
	}
	return value, true
}

// Query returns the first element whose attribute equals body.
func (e *Engine) Query(root dom.Root, body string) (*html.Node, error) {
	if body == "" {
		return nil, engine.ErrEmptySelector
	}
	if !e.pierce {
		sel, err := e.selector(body)
		if err != nil {
			return nil, err
		}
		return root.QueryFirst(sel), nil
	}
	var found *html.Node
	root.Tree.WalkElements(root.Node, true, func(n *html.Node) bool {
		if e.matches(n, body) {
			found = n
			return false
		}
		return true
	})
	return found, nil
}

// QueryAll returns every element whose attribute equals body.
func (e *Engine) QueryAll(root dom.Root, body string) ([]*html.Node, error) {
	if body == "" {
		return nil, engine.ErrEmptySelector
	}
	if !e.pierce {
		sel, err := e.selector(body)
		if err != nil {
			return nil, err
		}
		return root.QueryAll(sel), nil
	}
	var out []*html.Node
	root.Tree.WalkElements(root.Node, true, func(n *html.Node) bool {
		if e.matches(n, body) {
			out = append(out, n)
		}
		return true
	})
	return out, nil
}

func (e *Engine) matches(n *html.Node, value string) bool {
	v, ok := dom.Attr(n, e.attribute)
	return ok && v == value
}

func (e *Engine) selector(value string) (cascadia.Selector, error) {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(e.attribute)
	b.WriteByte('=')
	b.WriteString(engine.CSSString(value))
	b.WriteByte(']')
	sel, err := dom.CompileCSS(b.String())
	if err != nil {
		return nil, engine.Malformed(e.Name(), value, -1, err)
	}
	return sel, nil
}
