package zs

import (
	"math"
	"unicode/utf16"

	"github.com/hazyhaar/domlocator/dom"
	"github.com/hazyhaar/domlocator/engine"
	"golang.org/x/net/html"
)

const ascendCost = 2000

// step is one state of the search: a token reaching node, depth levels
// below the path element it is attached to.
type step struct {
	tok    token
	node   *html.Node
	depth  int
	score  float64
	total  float64
	prev   *step
	repeat int // '^' steps stand for repeat hops
}

// stepMap keeps the cheapest step per anchor, iterating in first-insertion
// order. The nil anchor is the path element itself.
type stepMap struct {
	keys  []*html.Node
	steps map[*html.Node]*step
}

func (m *stepMap) get(anchor *html.Node) *step {
	return m.steps[anchor]
}

// relax stores s unless a strictly cheaper step is already known.
func (m *stepMap) relax(anchor *html.Node, s *step) {
	if m.steps == nil {
		m.steps = make(map[*html.Node]*step)
	}
	old, ok := m.steps[anchor]
	if !ok {
		m.keys = append(m.keys, anchor)
	}
	if old == nil || old.total > s.total {
		m.steps[anchor] = s
	}
}

type search struct {
	s     *session
	root  *html.Node
	path  []*html.Node
	mode  engine.Mode
	table *cueTable
	lists listIndex
}

func newSearch(root dom.Root, path []*html.Node, opts Options, mode engine.Mode) *search {
	s := newSession(root.Tree, opts)
	maxCount := maxCues
	if mode == engine.ModeNoText {
		maxCount = maxCuesNoText
	}
	sr := &search{
		s:     s,
		root:  root.Node,
		path:  path,
		mode:  mode,
		table: s.preprocess(root.Node, path, maxCount),
	}
	if opts.DetectLists {
		sr.lists = s.buildLists(root.Node, path)
	}
	return sr
}

// best runs the search from the root down the path and returns the
// serialized cheapest selector reaching the target.
func (sr *search) best() (string, bool) {
	path := sr.path
	last := len(path) - 1
	queue := make([]stepMap, len(path))
	start := &step{node: sr.root}
	var initial stepMap
	initial.relax(nil, start)

	for stepDepth := -1; stepDepth < len(path); stepDepth++ {
		steps := &initial
		ancestorDepth := 0
		if stepDepth >= 0 {
			steps = &queue[stepDepth]
			ancestorDepth = stepDepth
		}
		for _, cue := range sr.table.cues {
			elements := cue.elements[ancestorDepth]
			for index, n := range elements {
				l := sr.table.lcas[n]
				if l.pathDepth <= stepDepth {
					continue
				}
				if sr.mode == engine.ModeNoText && l.pathDepth == last {
					// Nothing from the target's subtree, and only its tag from
					// the target itself.
					if l.depth > 0 || cue.kind != cueTag {
						continue
					}
				}
				if sr.sameList(l) {
					continue
				}
				if cue.kind != cueTag && !sr.s.visible(n) {
					continue
				}

				score := sr.score(cue, n, l, index, len(elements), len(path)-stepDepth)
				for _, anchor := range steps.keys {
					prev := steps.get(anchor)
					if anchor != nil && cue.anchorCount[anchor] > index {
						continue
					}
					tok := token{comb: '~', value: cue.key, index: index, hasIndex: index > 0}
					if stepDepth == -1 {
						tok.comb = 0
					}
					tok.kind = kindCSS
					if cue.kind == cueText {
						tok.kind = kindText
					}
					next := &step{
						tok:   tok,
						node:  n,
						depth: l.depth,
						score: score,
						total: prev.total + score,
						prev:  prev,
					}
					queue[l.pathDepth].relax(l.anchor, next)

					if next.depth > 0 {
						cost := float64(ascendCost * next.depth)
						queue[l.pathDepth].relax(nil, &step{
							tok:    token{comb: '^'},
							node:   l.node,
							score:  cost,
							total:  next.total + cost,
							prev:   next,
							repeat: next.depth,
						})
					}
				}
			}
		}
	}

	var best *step
	final := &queue[last]
	for _, anchor := range final.keys {
		s := final.get(anchor)
		if best == nil || s.total < best.total {
			best = s
		}
	}
	if best == nil {
		return "", false
	}

	var tokens []token
	for s := best; s != nil && s != start; s = s.prev {
		for r := max(s.repeat, 1); r > 0; r-- {
			tokens = append(tokens, s.tok)
		}
	}
	for i, j := 0, len(tokens)-1; i < j; i, j = i+1, j-1 {
		tokens[i], tokens[j] = tokens[j], tokens[i]
	}
	for i := 0; i < best.depth; i++ {
		tokens = append(tokens, token{comb: '^'})
	}
	if len(tokens) == 0 || tokens[0].comb != 0 {
		return "", false
	}
	return serialize(tokens), true
}

// sameList reports whether the element hangs off the path through a sibling
// of the path child that belongs to the same detected list.
func (sr *search) sameList(l lca) bool {
	if sr.lists == nil || l.anchor == nil || l.pathDepth+1 >= len(sr.path) {
		return false
	}
	target := sr.path[l.pathDepth+1]
	if l.anchor == target {
		return false
	}
	id := sr.lists[l.anchor]
	return id != 0 && id == sr.lists[target]
}

// score is the cost of one step using cue. Unique cues dominate, then large
// text, then closeness to the path.
func (sr *search) score(cue *pathCue, n *html.Node, l lca, index, count, distance int) float64 {
	shortText := 0.0
	if sr.s.opts.AvoidShortText && cue.kind == cueText {
		shortText = math.Max(0, float64(distance-2*(jsLength(cue.key)-2)))
	}
	size := 1.0
	if cue.kind == cueText {
		size = sr.s.elementMetrics(n).fontMetric
	}
	return (cue.score + shortText) * (float64(index+count*1000) + 5*size + float64(l.depth))
}

// jsLength counts UTF-16 code units, so characters outside the BMP count twice.
func jsLength(s string) int {
	return len(utf16.Encode([]rune(s)))
}
