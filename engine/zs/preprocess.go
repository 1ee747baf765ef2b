package zs

import (
	"strings"

	"github.com/hazyhaar/domlocator/dom"
	"github.com/hazyhaar/domlocator/engine"
	"golang.org/x/net/html"
)

type cueKind uint8

const (
	cueText cueKind = iota
	cueTag
	cueImgAlt
	cueAriaLabel
)

// lca places an element relative to the target path.
type lca struct {
	pathDepth int        // depth of node on the path
	node      *html.Node // lowest path node containing the element
	anchor    *html.Node // child of node holding the element, nil on the path
	depth     int        // distance from the element up to node
}

// pathCue is one distinct cue value. elements[d] holds, in document order,
// the carriers found inside path[d], at most maxCount of them.
type pathCue struct {
	key         string
	kind        cueKind
	score       float64
	elements    [][]*html.Node
	anchorCount map[*html.Node]int
	members     map[*html.Node]bool
}

type cueTable struct {
	cues  []*pathCue
	byKey map[string]*pathCue
	lcas  map[*html.Node]lca
}

// preprocess walks the light subtree of root once, collecting cues and the
// lca record of every element against path.
func (s *session) preprocess(root *html.Node, path []*html.Node, maxCount int) *cueTable {
	t := &cueTable{byKey: make(map[string]*pathCue), lcas: make(map[*html.Node]lca)}
	textScore := s.opts.textScore()

	add := func(key string, kind cueKind, score float64, n *html.Node, l lca, textValue string) {
		c := t.byKey[key]
		if c == nil {
			if textValue != "" {
				score *= textMetric(textValue)
			}
			c = &pathCue{
				key:         key,
				kind:        kind,
				score:       score,
				elements:    make([][]*html.Node, len(path)),
				anchorCount: make(map[*html.Node]int),
				members:     make(map[*html.Node]bool),
			}
			t.byKey[key] = c
			t.cues = append(t.cues, c)
		}
		if c.members[n] {
			return
		}
		c.members[n] = true
		for d := l.pathDepth; d >= 0; d-- {
			if len(c.elements[d]) < maxCount {
				c.elements[d] = append(c.elements[d], n)
			}
		}
		if l.anchor != nil {
			c.anchorCount[l.anchor]++
		}
	}

	elementCues := func(n *html.Node, l lca, detached bool) {
		if !detached && n.Data == "input" {
			if v := dom.AttrOr(n, "placeholder", ""); v != "" && s.opts.UsePlaceholders {
				add(engine.Quote(v), cueText, textScore, n, l, v)
			}
			if dom.AttrOr(n, "type", "") == "button" {
				if v := dom.AttrOr(n, "value", ""); v != "" {
					add(engine.Quote(v), cueText, textScore, n, l, v)
				}
			}
		}
		if plainTag(n.Data) {
			add(n.Data, cueTag, s.opts.GenericTagScore, n, l, "")
		}
		if s.opts.ImgAltScore != 0 && n.Data == "img" {
			if alt := dom.AttrOr(n, "alt", ""); alt != "" {
				add("img[alt="+engine.CSSString(alt)+"]", cueImgAlt, s.opts.ImgAltScore, n, l, alt)
			}
		}
		if s.opts.AriaLabelScore != 0 {
			if label := dom.AttrOr(n, "aria-label", ""); label != "" {
				add("[aria-label="+engine.CSSString(label)+"]", cueAriaLabel, s.opts.AriaLabelScore, n, l, label)
			}
		}
	}

	var visit func(n *html.Node, l lca, depth int)
	visit = func(n *html.Node, l lca, depth int) {
		isElement := n.Type == html.ElementNode
		detached := s.detached(n)
		if isElement {
			elementCues(n, l, detached)
		}
		t.lcas[n] = l

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if isElement && !detached && c.Type == html.TextNode {
				if text := strings.TrimSpace(c.Data); text != "" {
					add(engine.Quote(text), cueText, textScore, n, l, text)
				}
			}
			if c.Type != html.ElementNode {
				continue
			}
			if depth+1 < len(path) && path[depth+1] == c {
				visit(c, lca{pathDepth: depth + 1, node: c}, depth+1)
				continue
			}
			anchor := l.anchor
			if anchor == nil {
				anchor = c
			}
			visit(c, lca{pathDepth: l.pathDepth, node: l.node, anchor: anchor, depth: l.depth + 1}, depth+1)
		}
	}
	visit(root, lca{node: root}, 0)
	return t
}

// plainTag reports whether name can be used verbatim as a CSS type selector.
func plainTag(name string) bool {
	if name == "" || name[0] < 'a' || name[0] > 'z' {
		return false
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-') {
			return false
		}
	}
	return true
}
