// Package deep is the shadow-piercing structural engine. The body is first
// tried as one plain CSS selector against the light tree of the scope. When
// that finds nothing the selector is matched right to left, and ancestor steps cross from the top of a shadow
// tree to its host, so "div span" finds a span inside a shadow root whose
// host is a div. Sub-trees are explored with an explicit worklist.
package deep

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/hazyhaar/domlocator/dom"
	"github.com/hazyhaar/domlocator/engine"
	"golang.org/x/net/html"
)

// Name is the registry name of the engine.
const Name = "deep"

// Engine implements engine.Engine. It cannot synthesize selectors.
type Engine struct{}

// New returns the engine.
func New() *Engine { return &Engine{} }

// Create is not supported.
func (e *Engine) Create(dom.Root, *html.Node, engine.Mode) (string, bool) {
	return "", false
}

// Query returns the first direct structural match, as the css engine would
// find it. Otherwise it returns the first piercing match; the light tree of
// the root is searched before any shadow tree.
func (e *Engine) Query(root dom.Root, body string) (*html.Node, error) {
	m, err := newMatcher(root, body)
	if err != nil {
		return nil, err
	}
	if m.direct != nil {
		if n := root.QueryFirst(m.direct); n != nil {
			return n, nil
		}
	}
	var found *html.Node
	m.each(func(n *html.Node) bool {
		found = n
		return false
	})
	return found, nil
}

// QueryAll returns the direct structural matches followed by the piercing
// matches, scope by scope: the root's light tree, then each shadow tree in
// depth-first order of discovery.
func (e *Engine) QueryAll(root dom.Root, body string) ([]*html.Node, error) {
	m, err := newMatcher(root, body)
	if err != nil {
		return nil, err
	}
	var set dom.NodeSet
	if m.direct != nil {
		for _, n := range root.QueryAll(m.direct) {
			set.Add(n)
		}
	}
	m.each(func(n *html.Node) bool {
		set.Add(n)
		return true
	})
	return set.Nodes(), nil
}

type matcher struct {
	root   dom.Root
	direct cascadia.Selector // nil when the body is not a plain selector group
	groups []chain
	host   *html.Node // host of the root when the root is a shadow root
}

func newMatcher(root dom.Root, body string) (*matcher, error) {
	if strings.TrimSpace(body) == "" {
		return nil, engine.ErrEmptySelector
	}
	groups, err := parse(body)
	if err != nil {
		return nil, err
	}
	m := &matcher{root: root, groups: groups, host: root.Tree.Host(root.Node)}
	if sel, err := cascadia.Compile(body); err == nil {
		m.direct = sel
	}
	return m, nil
}

// each calls fn for every matching element until fn returns false.
func (m *matcher) each(fn func(*html.Node) bool) {
	tree := m.root.Tree
	stack := []*html.Node{m.root.Node}
	for len(stack) > 0 {
		scope := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var nested []*html.Node
		if sr := tree.ShadowRoot(scope); sr != nil {
			nested = append(nested, sr)
		}
		stopped := false
		tree.WalkElements(scope, false, func(n *html.Node) bool {
			if sr := tree.ShadowRoot(n); sr != nil {
				nested = append(nested, sr)
			}
			if m.matches(n) && !fn(n) {
				stopped = true
				return false
			}
			return true
		})
		if stopped {
			return
		}
		for i := len(nested) - 1; i >= 0; i-- {
			stack = append(stack, nested[i])
		}
	}
}

func (m *matcher) matches(n *html.Node) bool {
	for _, c := range m.groups {
		last := len(c) - 1
		if c[last].sel.Match(n) && m.matchFrom(c, n, last) {
			return true
		}
	}
	return false
}

// matchFrom checks the compounds left of index i, given that n matched c[i].
func (m *matcher) matchFrom(c chain, n *html.Node, i int) bool {
	if i == 0 {
		return true
	}
	prev := c[i-1].sel
	switch c[i].comb {
	case '>':
		p := m.up(n)
		return p != nil && prev.Match(p) && m.matchFrom(c, p, i-1)
	case '+':
		s := dom.PrevElementSibling(n)
		return s != nil && prev.Match(s) && m.matchFrom(c, s, i-1)
	case '~':
		for s := dom.PrevElementSibling(n); s != nil; s = dom.PrevElementSibling(s) {
			if prev.Match(s) && m.matchFrom(c, s, i-1) {
				return true
			}
		}
	default:
		for p := m.up(n); p != nil; p = m.up(p) {
			if prev.Match(p) && m.matchFrom(c, p, i-1) {
				return true
			}
		}
	}
	return false
}

// up steps to the parent element or shadow host without leaving the root.
func (m *matcher) up(n *html.Node) *html.Node {
	p := m.root.Tree.ParentOrHost(n)
	if p == nil || p == m.root.Node || (m.host != nil && p == m.host) {
		return nil
	}
	return p
}
