package dom

import (
	"strconv"
	"strings"

	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

// Rect is a border box in CSS pixels.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Layout is what the engines need to know about a rendered node.
type Layout struct {
	Box        Rect
	FontSize   float64 // px
	FontWeight float64
	// Rendered is false for nodes outside the layout tree (display:none,
	// hidden, non-rendered tags). Such nodes are "detached".
	Rendered bool
}

// Visible reports whether the box has a non-trivial area.
func (l Layout) Visible() bool {
	return l.Box.Width > 1 && l.Box.Height > 1
}

const (
	staticWidth       = 100
	staticHeight      = 20
	defaultFontSize   = 16
	defaultFontWeight = 400
	rootFontSize      = 16
)

var nonRendered = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"template": true,
	"noscript": true,
	"meta":     true,
	"link":     true,
	"title":    true,
	"base":     true,
}

// headingScale is the user-agent em size of headings.
var headingScale = map[string]float64{
	"h1": 2,
	"h2": 1.5,
	"h3": 1.17,
	"h4": 1,
	"h5": 0.83,
	"h6": 0.67,
}

var boldTags = map[string]bool{
	"b": true, "strong": true, "th": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

var fontSizeKeywords = map[string]float64{
	"xx-small": 9,
	"x-small":  10,
	"small":    13,
	"medium":   16,
	"large":    18,
	"x-large":  24,
	"xx-large": 32,
}

// SetLayout records the layout of n, overriding anything derived.
func (t *Tree) SetLayout(n *html.Node, l Layout) {
	t.layout[n] = l
}

// SetLive switches the tree to captured layout: a node without a recorded
// layout is then detached instead of being derived from its markup.
func (t *Tree) SetLive(live bool) { t.live = live }

// Live reports whether layout comes from a capture.
func (t *Tree) Live() bool { return t.live }

// Layout returns the layout of n. Static trees derive it from markup on every
// call: inline styles, the hidden attribute and non-rendered tags decide
// whether n is rendered, and every rendered element gets the same nominal box
// unless its inherited visibility is hidden.
func (t *Tree) Layout(n *html.Node) Layout {
	if l, ok := t.layout[n]; ok {
		return l
	}
	if t.live || n.Type != html.ElementNode {
		return Layout{}
	}
	return t.staticLayout(n)
}

func (t *Tree) staticLayout(n *html.Node) Layout {
	var chain []*html.Node
	for e := n; e != nil; e = t.ParentOrHost(e) {
		chain = append(chain, e)
	}

	l := Layout{FontSize: defaultFontSize, FontWeight: defaultFontWeight, Rendered: true}
	invisible := false
	for i := len(chain) - 1; i >= 0; i-- {
		e := chain[i]
		decls := InlineStyle(e)
		if nonRendered[e.Data] || decls["display"] == "none" {
			l.Rendered = false
		}
		if _, hidden := Attr(e, "hidden"); hidden {
			l.Rendered = false
		}
		switch decls["visibility"] {
		case "hidden", "collapse":
			invisible = true
		case "visible":
			invisible = false
		}
		if scale, ok := headingScale[e.Data]; ok {
			l.FontSize *= scale
		}
		if boldTags[e.Data] {
			l.FontWeight = 700
		}
		if v, ok := decls["font-size"]; ok {
			l.FontSize = parseFontSize(v, l.FontSize)
		}
		if v, ok := decls["font-weight"]; ok {
			l.FontWeight = parseFontWeight(v, l.FontWeight)
		}
	}
	if l.Rendered && !invisible {
		l.Box = Rect{Width: staticWidth, Height: staticHeight}
	}
	return l
}

// InlineStyle parses the style attribute of n into lower-cased
// property/value pairs. Unparseable styles yield an empty map.
func InlineStyle(n *html.Node) map[string]string {
	raw, ok := Attr(n, "style")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	decls, err := parser.ParseDeclarations(raw)
	if err != nil {
		return nil
	}
	out := make(map[string]string, len(decls))
	for _, d := range decls {
		out[strings.ToLower(d.Property)] = strings.ToLower(strings.TrimSpace(d.Value))
	}
	return out
}

func parseFontSize(v string, parent float64) float64 {
	if px, ok := fontSizeKeywords[v]; ok {
		return px
	}
	switch v {
	case "smaller":
		return parent / 1.2
	case "larger":
		return parent * 1.2
	}
	for _, unit := range []struct {
		suffix string
		scale  float64
	}{
		{"rem", rootFontSize},
		{"px", 1},
		{"em", parent},
		{"%", parent / 100},
	} {
		if num, ok := strings.CutSuffix(v, unit.suffix); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
			if err != nil {
				return parent
			}
			return f * unit.scale
		}
	}
	return parent
}

func parseFontWeight(v string, parent float64) float64 {
	switch v {
	case "normal":
		return 400
	case "bold":
		return 700
	case "bolder":
		if parent < 400 {
			return 400
		}
		if parent < 600 {
			return 700
		}
		return 900
	case "lighter":
		if parent > 700 {
			return 700
		}
		if parent > 500 {
			return 400
		}
		return 100
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return parent
	}
	return f
}
