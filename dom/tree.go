// Package dom models the node tree the locator engines run against: an
// x/net/html document, the shadow roots attached to its elements, and the
// layout of every node (captured from a live page or derived from markup).
//
// A shadow root is an html.DocumentNode that is never linked into its host's
// child list. Light-tree walks, cascadia matches and goquery selections
// therefore stop at every encapsulation boundary on their own; only code that
// asks the Tree for a host's shadow root crosses one.
package dom

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

var (
	// ErrNotElement is returned when an element was required.
	ErrNotElement = errors.New("dom: not an element")
	// ErrShadowAttached is returned when a host already carries a shadow root.
	ErrShadowAttached = errors.New("dom: shadow root already attached")
)

// Tree is a document plus its shadow roots and layout side tables.
// A Tree is not safe for concurrent mutation; concurrent reads are fine.
type Tree struct {
	doc     *html.Node
	shadows map[*html.Node]*html.Node // host -> shadow root
	hosts   map[*html.Node]*html.Node // shadow root -> host
	layout  map[*html.Node]Layout
	live    bool
}

// NewTree wraps an already parsed document. Declarative shadow roots are not
// expanded; use Parse for that.
func NewTree(doc *html.Node) *Tree {
	return &Tree{
		doc:     doc,
		shadows: make(map[*html.Node]*html.Node),
		hosts:   make(map[*html.Node]*html.Node),
		layout:  make(map[*html.Node]Layout),
	}
}

// Parse reads an HTML document and attaches every declarative shadow root
// (<template shadowrootmode="open|closed">) to its host.
func Parse(r io.Reader) (*Tree, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	t := NewTree(doc)
	t.attachDeclarative(doc)
	return t, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Tree, error) {
	return Parse(strings.NewReader(s))
}

// Document returns the document node.
func (t *Tree) Document() *html.Node { return t.doc }

// Root returns the document scope.
func (t *Tree) Root() Root { return Root{Tree: t, Node: t.doc} }

// RootAt returns a scope rooted at n.
func (t *Tree) RootAt(n *html.Node) Root { return Root{Tree: t, Node: n} }

// AttachShadow creates an empty shadow root on host.
func (t *Tree) AttachShadow(host *html.Node) (*html.Node, error) {
	if host == nil || host.Type != html.ElementNode {
		return nil, fmt.Errorf("dom: attach shadow: %w", ErrNotElement)
	}
	if _, ok := t.shadows[host]; ok {
		return nil, fmt.Errorf("dom: attach shadow to <%s>: %w", host.Data, ErrShadowAttached)
	}
	sr := &html.Node{Type: html.DocumentNode}
	t.shadows[host] = sr
	t.hosts[sr] = host
	return sr, nil
}

// ShadowRoot returns the shadow root attached to host, or nil.
func (t *Tree) ShadowRoot(host *html.Node) *html.Node {
	return t.shadows[host]
}

// Host returns the host of a shadow root, or nil when n is not one.
func (t *Tree) Host(n *html.Node) *html.Node {
	return t.hosts[n]
}

// IsShadowRoot reports whether n is a shadow root of this tree.
func (t *Tree) IsShadowRoot(n *html.Node) bool {
	_, ok := t.hosts[n]
	return ok
}

// ParentOrHost returns the parent element of n. When n sits at the top of a
// shadow tree (or is a shadow root) the host is returned instead. It returns
// nil at the top of the document.
func (t *Tree) ParentOrHost(n *html.Node) *html.Node {
	p := n.Parent
	if p == nil {
		return t.hosts[n]
	}
	if p.Type == html.ElementNode {
		return p
	}
	return t.hosts[p]
}

// Contains reports whether n is ancestor or equal to other in the light tree.
func Contains(n, other *html.Node) bool {
	for p := other; p != nil; p = p.Parent {
		if p == n {
			return true
		}
	}
	return false
}

func (t *Tree) attachDeclarative(n *html.Node) {
	queue := []*html.Node{n}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		var next *html.Node
		for c := cur.FirstChild; c != nil; c = next {
			next = c.NextSibling
			if cur.Type == html.ElementNode && isShadowTemplate(c) && t.shadows[cur] == nil {
				sr, _ := t.AttachShadow(cur)
				for gc := c.FirstChild; gc != nil; {
					gnext := gc.NextSibling
					c.RemoveChild(gc)
					sr.AppendChild(gc)
					gc = gnext
				}
				cur.RemoveChild(c)
				queue = append(queue, sr)
				continue
			}
			queue = append(queue, c)
		}
	}
}

func isShadowTemplate(n *html.Node) bool {
	if n.Type != html.ElementNode || n.Data != "template" {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == "shadowrootmode" || a.Key == "shadowroot" {
			return a.Val == "open" || a.Val == "closed"
		}
	}
	return false
}
