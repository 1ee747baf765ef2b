// Package text locates elements by their visible text content.
//
// A body is one of three matchers: a quoted string ("…" or '…') matches the
// whole normalized text exactly and case-sensitively; /pattern/flags is a
// regular expression; anything else is a case-insensitive substring. An
// element matches when its text matches and none of its child elements (nor
// its shadow root, when piercing) does, so the nearest owner of a matching
// run wins, including runs split across inline children.
package text

import (
	"regexp"

	"github.com/hazyhaar/domlocator/dom"
	"github.com/hazyhaar/domlocator/engine"
	"golang.org/x/net/html"
)

const (
	// Name is the piercing engine.
	Name = "text"
	// LightName stays in the light tree.
	LightName = "text:light"
)

var plainWord = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// pruned elements and everything under them are never candidates.
var pruned = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"template": true,
}

// Engine implements engine.Engine.
type Engine struct {
	pierce bool
}

// New returns a text engine; pierce selects shadow-piercing traversal.
func New(pierce bool) *Engine { return &Engine{pierce: pierce} }

// Name returns the registry name.
func (e *Engine) Name() string {
	if e.pierce {
		return Name
	}
	return LightName
}

// Query returns the first matching element in composed document order.
func (e *Engine) Query(root dom.Root, body string) (*html.Node, error) {
	s, err := e.session(root, body)
	if err != nil {
		return nil, err
	}
	var found *html.Node
	s.walk(root.Node, func(n *html.Node) bool {
		if s.matchesSelf(n) {
			found = n
			return false
		}
		return true
	})
	return found, nil
}

// QueryAll returns every matching element in composed document order.
func (e *Engine) QueryAll(root dom.Root, body string) ([]*html.Node, error) {
	s, err := e.session(root, body)
	if err != nil {
		return nil, err
	}
	var out []*html.Node
	s.walk(root.Node, func(n *html.Node) bool {
		if s.matchesSelf(n) {
			out = append(out, n)
		}
		return true
	})
	return out, nil
}

// Create prefers a bare alphanumeric word taken from one of the target's own
// text runs, then the quoted full text. Both must resolve back to the target.
// Text cues are the target's own text, so ModeNoText yields nothing.
func (e *Engine) Create(root dom.Root, target *html.Node, mode engine.Mode) (string, bool) {
	if mode == engine.ModeNoText || target == nil || target.Type != html.ElementNode {
		return "", false
	}
	for c := target.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode {
			continue
		}
		word := dom.NormalizeSpace(c.Data)
		if plainWord.MatchString(word) && e.resolvesTo(root, word, target) {
			return word, true
		}
	}
	full := dom.NormalizeSpace(root.Tree.Text(target, e.pierce))
	if full == "" {
		return "", false
	}
	quoted := engine.Quote(full)
	if e.resolvesTo(root, quoted, target) {
		return quoted, true
	}
	return "", false
}

func (e *Engine) resolvesTo(root dom.Root, body string, target *html.Node) bool {
	got, err := e.Query(root, body)
	return err == nil && got == target
}

func (e *Engine) session(root dom.Root, body string) (*session, error) {
	m, err := compileMatcher(body)
	if err != nil {
		return nil, err
	}
	return &session{
		tree:    root.Tree,
		pierce:  e.pierce,
		match:   m,
		texts:   make(map[*html.Node]string),
		skipped: make(map[*html.Node]bool),
	}, nil
}

// session memoizes normalized text for one query.
type session struct {
	tree    *dom.Tree
	pierce  bool
	match   matcher
	texts   map[*html.Node]string
	skipped map[*html.Node]bool
}

// walk visits the candidate elements under root in composed order, leaving
// out pruned elements and their subtrees.
func (s *session) walk(root *html.Node, visit func(*html.Node) bool) {
	s.tree.WalkElements(root, s.pierce, func(n *html.Node) bool {
		if s.prunedNode(n) {
			s.skipped[n] = true
			return true
		}
		return visit(n)
	})
}

func isPruned(n *html.Node) bool {
	return n.Namespace == "" && pruned[n.Data]
}

func (s *session) prunedNode(n *html.Node) bool {
	if isPruned(n) {
		return true
	}
	p := s.tree.ParentOrHost(n)
	return p != nil && s.skipped[p]
}

func (s *session) text(n *html.Node) string {
	if t, ok := s.texts[n]; ok {
		return t
	}
	t := dom.NormalizeSpace(s.tree.Text(n, s.pierce))
	s.texts[n] = t
	return t
}

func (s *session) matchesSelf(n *html.Node) bool {
	if !s.match(s.text(n)) {
		return false
	}
	if s.pierce {
		if sr := s.tree.ShadowRoot(n); sr != nil && s.match(s.text(sr)) {
			return false
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && !isPruned(c) && s.match(s.text(c)) {
			return false
		}
	}
	return true
}
