package dom

import "golang.org/x/net/html"

// WalkElements visits the element descendants of root in preorder. With
// pierce set the walk is composed: a host's shadow tree is visited before its
// light children, and a shadow root attached to root itself is entered too.
// visit returns false to stop the walk.
func (t *Tree) WalkElements(root *html.Node, pierce bool, visit func(*html.Node) bool) {
	stack := t.pushChildren(nil, root, pierce)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visit(n) {
			return
		}
		stack = t.pushChildren(stack, n, pierce)
	}
}

// pushChildren pushes the element children of n in reverse so that popping
// yields shadow children first, then light children, each in document order.
func (t *Tree) pushChildren(stack []*html.Node, n *html.Node, pierce bool) []*html.Node {
	for c := n.LastChild; c != nil; c = c.PrevSibling {
		if c.Type == html.ElementNode {
			stack = append(stack, c)
		}
	}
	if pierce {
		if sr := t.shadows[n]; sr != nil {
			for c := sr.LastChild; c != nil; c = c.PrevSibling {
				if c.Type == html.ElementNode {
					stack = append(stack, c)
				}
			}
		}
	}
	return stack
}

// ShadowRoots returns every shadow root reachable from root, outermost first.
func (t *Tree) ShadowRoots(root *html.Node) []*html.Node {
	var out []*html.Node
	if sr := t.shadows[root]; sr != nil {
		out = append(out, sr)
	}
	t.WalkElements(root, true, func(n *html.Node) bool {
		if sr := t.shadows[n]; sr != nil {
			out = append(out, sr)
		}
		return true
	})
	return out
}

// Children returns the element children of n.
func Children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// PrevElementSibling returns the closest preceding element sibling, or nil.
func PrevElementSibling(n *html.Node) *html.Node {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// ElementByID returns the first element with the given id anywhere in the
// composed tree, or nil.
func (t *Tree) ElementByID(id string) *html.Node {
	var found *html.Node
	t.WalkElements(t.doc, true, func(n *html.Node) bool {
		if v, ok := Attr(n, "id"); ok && v == id {
			found = n
			return false
		}
		return true
	})
	return found
}
