package zs

import (
	"errors"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/hazyhaar/domlocator/dom"
	"golang.org/x/net/html"
)

// session holds what one Create or Query call learns about the tree. It is
// dropped with the call.
type session struct {
	tree    *dom.Tree
	opts    Options
	metrics map[*html.Node]elementMetrics
}

type elementMetrics struct {
	layout     dom.Layout
	fontMetric float64
}

func newSession(tree *dom.Tree, opts Options) *session {
	return &session{tree: tree, opts: opts, metrics: make(map[*html.Node]elementMetrics)}
}

func (s *session) elementMetrics(n *html.Node) elementMetrics {
	if m, ok := s.metrics[n]; ok {
		return m
	}
	l := s.tree.Layout(n)
	m := elementMetrics{layout: l, fontMetric: fontMetric(l.FontSize, l.FontWeight)}
	s.metrics[n] = m
	return m
}

func (s *session) visible(n *html.Node) bool {
	return s.elementMetrics(n).layout.Visible()
}

// detached reports whether n has no offset parent: it is not rendered, or it
// is the document element or body.
func (s *session) detached(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return true
	}
	if n.Data == "html" || n.Data == "body" {
		return true
	}
	return !s.elementMetrics(n).layout.Rendered
}

// fontMetric decays with font size and weight, so larger and bolder text
// costs less.
func fontMetric(size, weight float64) float64 {
	fs := math.Trunc(size)
	if fs == 0 || math.IsNaN(fs) {
		fs = 12
	}
	fw := math.Trunc(weight)
	if fw == 0 || math.IsNaN(fw) {
		fw = 400
	}
	m := fs / 12 * (1 + (fw/400-1)/5)
	return 1 / math.Exp(m-1)
}

var volatileText = regexp.MustCompile(`^\$?[\d,]+(\.\d+|(\.\d+)?[kKmMbBgG])?$`)

// textMetric penalizes text that looks like a price, a counter or a large
// number.
func textMetric(text string) float64 {
	if volatileText.MatchString(text) {
		return 12
	}
	if num, ok := jsNumber(text); ok && (num >= 32 || num < 0) {
		return 6
	}
	return 1
}

var (
	decimalNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
	prefixNumber  = regexp.MustCompile(`^0([xX][0-9a-fA-F]+|[oO][0-7]+|[bB][01]+)$`)
)

// jsNumber parses text the way a lenient numeric conversion would: surrounding
// whitespace is ignored and an empty string is zero. Accepted forms are signed
// decimals with an optional exponent, signed Infinity, and unsigned 0x, 0o and
// 0b integers.
func jsNumber(text string) (float64, bool) {
	text = strings.TrimFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\ufeff'
	})
	switch text {
	case "":
		return 0, true
	case "Infinity", "+Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}
	if prefixNumber.MatchString(text) {
		base := map[byte]int{'x': 16, 'o': 8, 'b': 2}[text[1]|0x20]
		n, ok := new(big.Int).SetString(text[2:], base)
		if !ok {
			return 0, false
		}
		f, _ := new(big.Float).SetInt(n).Float64()
		return f, true
	}
	if !decimalNumber.MatchString(text) {
		return 0, false
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return f, true
}

// jsInt truncates like a 32-bit integer conversion. NaN and infinities are
// zero.
func jsInt(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(int32(int64(f)))
}
