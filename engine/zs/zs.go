// Package zs is the heuristic locator engine. It describes an element by the
// human-visible cues around it (text runs, placeholders, image alt text,
// aria labels, tag names) chained with proximity combinators, and picks the
// cheapest chain through a dynamic-programming search over the path from the
// root to the target.
//
// Selector grammar, one token after another:
//
//	"text" 'text' `text`   a text cue (exact trimmed text run)
//	css                    a CSS fragment (up to a space or combinator)
//	#N                     suffix: take the N-th match instead of the first
//	A B                    B anywhere under A
//	A > B                  B a direct child of A
//	A ~ B                  climb from A to the nearest container holding B
//	A ^                    the parent of A
//
// Every call builds its own cue tables; nothing is cached across calls.
package zs

import (
	"github.com/hazyhaar/domlocator/dom"
	"github.com/hazyhaar/domlocator/engine"
	"golang.org/x/net/html"
)

// Name is the registry name of the engine.
const Name = "zs"

// Options weigh the cues. Lower scores are preferred.
type Options struct {
	GenericTagScore float64 `yaml:"generic_tag_score" json:"generic_tag_score"`
	TextScore       float64 `yaml:"text_score" json:"text_score"`
	ImgAltScore     float64 `yaml:"img_alt_score" json:"img_alt_score"`
	AriaLabelScore  float64 `yaml:"aria_label_score" json:"aria_label_score"`
	DetectLists     bool    `yaml:"detect_lists" json:"detect_lists"`
	AvoidShortText  bool    `yaml:"avoid_short_text" json:"avoid_short_text"`
	UsePlaceholders bool    `yaml:"use_placeholders" json:"use_placeholders"`
}

// DefaultOptions returns the stock weights.
func DefaultOptions() Options {
	return Options{
		GenericTagScore: 10,
		TextScore:       1,
		ImgAltScore:     2,
		AriaLabelScore:  2,
		DetectLists:     true,
		AvoidShortText:  false,
		UsePlaceholders: true,
	}
}

func (o Options) textScore() float64 {
	if o.TextScore == 0 {
		return 1
	}
	return o.TextScore
}

const (
	maxCues       = 10
	maxCuesNoText = 50
)

// Engine implements engine.Engine.
type Engine struct {
	opts Options
}

// New returns an engine with the given options.
func New(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Options returns the engine's weights.
func (e *Engine) Options() Options { return e.opts }

// Query returns the first element the selector resolves to.
func (e *Engine) Query(root dom.Root, body string) (*html.Node, error) {
	nodes, err := e.evaluate(root, body, false)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

// QueryAll returns every element the selector resolves to.
func (e *Engine) QueryAll(root dom.Root, body string) ([]*html.Node, error) {
	return e.evaluate(root, body, true)
}

func (e *Engine) evaluate(root dom.Root, body string, all bool) ([]*html.Node, error) {
	tokens, err := tokenize(body)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, engine.ErrEmptySelector
	}
	for i := range tokens {
		if tokens[i].kind != kindCSS {
			continue
		}
		sel, err := dom.CompileCSS(tokens[i].value)
		if err != nil {
			return nil, engine.Malformed(Name, body, -1, err)
		}
		tokens[i].sel = sel
	}
	return newEvaluator(root, e.opts).run(tokens, all), nil
}

// Create returns the cheapest heuristic selector for target, verified by
// resolving it again.
func (e *Engine) Create(root dom.Root, target *html.Node, mode engine.Mode) (string, bool) {
	if target == nil || target.Type != html.ElementNode {
		return "", false
	}
	path := pathFromRoot(root.Node, target)
	if path == nil {
		return "", false
	}
	selector, ok := newSearch(root, path, e.opts, mode).best()
	if !ok {
		return "", false
	}
	got, err := e.Query(root, selector)
	if err != nil || got != target {
		return "", false
	}
	return selector, true
}

// pathFromRoot lists the ancestors of target from root down to target, or
// nil when target is outside the light tree of root.
func pathFromRoot(root, target *html.Node) []*html.Node {
	var path []*html.Node
	for n := target; ; n = n.Parent {
		if n == nil {
			return nil
		}
		path = append(path, n)
		if n == root {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
