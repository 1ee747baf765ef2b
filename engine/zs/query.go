package zs

import (
	"math"

	"github.com/hazyhaar/domlocator/dom"
	"golang.org/x/net/html"
)

// frontier maps reached nodes to the boundary that '^' and '~' may not
// climb past. The first boundary recorded for a node wins.
type frontier struct {
	nodes []*html.Node
	bound map[*html.Node]*html.Node
}

func newFrontier() *frontier {
	return &frontier{bound: make(map[*html.Node]*html.Node)}
}

func (f *frontier) add(n, boundary *html.Node) {
	if _, ok := f.bound[n]; ok {
		return
	}
	f.nodes = append(f.nodes, n)
	f.bound[n] = boundary
}

type textKey struct {
	scope *html.Node
	key   string
}

// evaluator resolves tokens against one root. Text cues are collected on
// first use and filtered per scope.
type evaluator struct {
	s      *session
	root   dom.Root
	cues   *cueTable
	scoped map[textKey][]*html.Node
}

func newEvaluator(root dom.Root, opts Options) *evaluator {
	return &evaluator{
		s:      newSession(root.Tree, opts),
		root:   root,
		scoped: make(map[textKey][]*html.Node),
	}
}

func (e *evaluator) run(tokens []token, all bool) []*html.Node {
	current := newFrontier()
	current.add(e.root.Node, e.root.Node)
	for _, tok := range tokens {
		next := newFrontier()
		for _, n := range current.nodes {
			boundary := current.bound[n]
			var found []*html.Node
			switch tok.comb {
			case '^':
				if n != boundary && n.Parent != nil {
					found = []*html.Node{n.Parent}
				}
			case '>':
				boundary = n
				found = e.matchChildren(n, tok, all)
			case '~':
				for {
					found = e.matchSubtree(n, tok, all)
					if len(found) > 0 {
						boundary = n
						break
					}
					if n == boundary || n.Parent == nil {
						break
					}
					n = n.Parent
				}
			default:
				boundary = n
				found = e.matchSubtree(n, tok, all)
			}
			for _, m := range found {
				next.add(m, boundary)
			}
		}
		current = next
	}

	var out []*html.Node
	for _, n := range current.nodes {
		if n.Type == html.ElementNode {
			out = append(out, n)
		}
	}
	return out
}

// picker counts matches down to the indexed one. Without an index and with
// all set every match is taken.
type picker struct {
	all   bool
	index int
}

func newPicker(tok token, all bool) *picker {
	if tok.hasIndex {
		all = false
	}
	return &picker{all: all, index: tok.index}
}

func (p *picker) take() bool {
	if p.all || p.index == 0 {
		return true
	}
	p.index--
	return false
}

// matchSubtree returns the matches of tok among n and its descendants.
func (e *evaluator) matchSubtree(n *html.Node, tok token, all bool) []*html.Node {
	p := newPicker(tok, all)
	if tok.kind == kindText {
		elements := e.textCues(n, tok.value)
		if p.all {
			return elements
		}
		if p.index < len(elements) {
			return []*html.Node{elements[p.index]}
		}
		return nil
	}

	var out []*html.Node
	if n.Type == html.ElementNode && tok.sel.Match(n) && p.take() {
		out = append(out, n)
		if !p.all {
			return out
		}
	}
	e.root.Tree.WalkElements(n, false, func(c *html.Node) bool {
		if !tok.sel.Match(c) || !p.take() {
			return true
		}
		out = append(out, c)
		return p.all
	})
	return out
}

// matchChildren returns the matches of tok among the element children of n.
func (e *evaluator) matchChildren(n *html.Node, tok token, all bool) []*html.Node {
	p := newPicker(tok, all)
	var candidates []*html.Node
	if tok.kind == kindText {
		for _, c := range e.textCues(n, tok.value) {
			if c.Parent == n {
				candidates = append(candidates, c)
			}
		}
	} else {
		for _, c := range dom.Children(n) {
			if tok.sel.Match(c) {
				candidates = append(candidates, c)
			}
		}
	}

	var out []*html.Node
	for _, c := range candidates {
		if !p.take() {
			continue
		}
		out = append(out, c)
		if !p.all {
			break
		}
	}
	return out
}

// textCues returns the elements inside scope carrying the text cue key.
func (e *evaluator) textCues(scope *html.Node, key string) []*html.Node {
	if e.cues == nil {
		e.cues = e.s.preprocess(e.root.Node, []*html.Node{e.root.Node}, math.MaxInt)
	}
	c := e.cues.byKey[key]
	if c == nil || c.kind != cueText {
		return nil
	}
	elements := c.elements[0]
	if scope == e.root.Node {
		return elements
	}
	k := textKey{scope: scope, key: key}
	if cached, ok := e.scoped[k]; ok {
		return cached
	}
	var filtered []*html.Node
	for _, n := range elements {
		if dom.Contains(scope, n) {
			filtered = append(filtered, n)
		}
	}
	e.scoped[k] = filtered
	return filtered
}
