package dom

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Root is a query scope: the document, an element, or a shadow root.
type Root struct {
	Tree *Tree
	Node *html.Node
}

// Queryable reports whether the scope can host queries. Text, comment and
// doctype nodes cannot.
func (r Root) Queryable() bool {
	if r.Tree == nil || r.Node == nil {
		return false
	}
	return r.Node.Type == html.ElementNode || r.Node.Type == html.DocumentNode
}

// At returns a scope in the same tree rooted at n.
func (r Root) At(n *html.Node) Root { return Root{Tree: r.Tree, Node: n} }

// Selection wraps the scope node for goquery traversal.
func (r Root) Selection() *goquery.Selection {
	return goquery.NewDocumentFromNode(r.Node).Selection
}

// QueryAll returns the light-tree descendants of the scope matching m, in
// document order. The scope node itself is never part of the result.
func (r Root) QueryAll(m goquery.Matcher) []*html.Node {
	return r.Selection().FindMatcher(m).Nodes
}

// QueryFirst returns the first light-tree descendant matching m, or nil.
func (r Root) QueryFirst(m cascadia.Matcher) *html.Node {
	var found *html.Node
	r.Tree.WalkElements(r.Node, false, func(n *html.Node) bool {
		if m.Match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// Contains reports whether n is the scope node or one of its light-tree
// descendants.
func (r Root) Contains(n *html.Node) bool {
	return Contains(r.Node, n)
}

// CompileCSS compiles a selector group.
func CompileCSS(selector string) (cascadia.Selector, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("dom: css %q: %w", selector, err)
	}
	return sel, nil
}

// NodeSet is an insertion-ordered identity set of nodes.
type NodeSet struct {
	seen  map[*html.Node]struct{}
	nodes []*html.Node
}

// Add inserts n and reports whether it was absent.
func (s *NodeSet) Add(n *html.Node) bool {
	if s.seen == nil {
		s.seen = make(map[*html.Node]struct{})
	}
	if _, ok := s.seen[n]; ok {
		return false
	}
	s.seen[n] = struct{}{}
	s.nodes = append(s.nodes, n)
	return true
}

// Has reports membership.
func (s *NodeSet) Has(n *html.Node) bool {
	_, ok := s.seen[n]
	return ok
}

// Len returns the number of nodes.
func (s *NodeSet) Len() int { return len(s.nodes) }

// Nodes returns the nodes in insertion order.
func (s *NodeSet) Nodes() []*html.Node { return s.nodes }
