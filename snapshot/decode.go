package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/domlocator/dom"
)

// ErrNoDocument is returned for a capture without a document.
var ErrNoDocument = errors.New("snapshot: no document")

// CDP node types.
const (
	elementNode  = 1
	textNode     = 3
	cdataNode    = 4
	commentNode  = 8
	documentNode = 9
	doctypeNode  = 10
	fragmentNode = 11
)

func at[T any](s []T, i int, def T) T {
	if i < 0 || i >= len(s) {
		return def
	}
	return s[i]
}

// Decode builds a live tree from the JSON result of
// DOMSnapshot.captureSnapshot. See Build.
func Decode(raw []byte) (*dom.Tree, error) {
	var res proto.DOMSnapshotCaptureSnapshotResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	return Build(&res)
}

// Build turns a DOMSnapshot.captureSnapshot result, requested with the
// computed styles display, visibility, font-size and font-weight in that
// order, into a live tree. Only the top document is decoded; frames are left
// empty. Nodes without a layout object are detached.
func Build(res *proto.DOMSnapshotCaptureSnapshotResult) (*dom.Tree, error) {
	if res == nil || len(res.Documents) == 0 || res.Documents[0] == nil || res.Documents[0].Nodes == nil {
		return nil, ErrNoDocument
	}
	str := func(i proto.DOMSnapshotStringIndex) string {
		return at(res.Strings, int(i), "")
	}
	d := res.Documents[0]
	nt := d.Nodes
	if len(nt.NodeType) == 0 || nt.NodeType[0] != documentNode {
		return nil, ErrNoDocument
	}

	shadowType := make(map[int]string)
	if rare := nt.ShadowRootType; rare != nil {
		for k, i := range rare.Index {
			shadowType[i] = str(at(rare.Value, k, -1))
		}
	}

	doc := &html.Node{Type: html.DocumentNode}
	tree := dom.NewTree(doc)
	nodes := make([]*html.Node, len(nt.NodeType))
	nodes[0] = doc

	for i := 1; i < len(nt.NodeType); i++ {
		pi := at(nt.ParentIndex, i, -1)
		if pi < 0 || pi >= i {
			return nil, fmt.Errorf("snapshot: node %d: parent %d out of order", i, pi)
		}
		parent := nodes[pi]
		if parent == nil {
			continue // inside a skipped node
		}
		name := str(at(nt.NodeName, i, -1))
		value := str(at(nt.NodeValue, i, -1))

		switch nt.NodeType[i] {
		case elementNode:
			if strings.HasPrefix(name, "::") {
				continue // pseudo-element
			}
			n := newElement(name)
			attrs := at(nt.Attributes, i, proto.DOMSnapshotArrayOfStrings(nil))
			for k := 0; k+1 < len(attrs); k += 2 {
				n.Attr = append(n.Attr, html.Attribute{Key: str(attrs[k]), Val: str(attrs[k+1])})
			}
			parent.AppendChild(n)
			nodes[i] = n
		case textNode, cdataNode:
			n := &html.Node{Type: html.TextNode, Data: value}
			parent.AppendChild(n)
			nodes[i] = n
		case commentNode:
			n := &html.Node{Type: html.CommentNode, Data: value}
			parent.AppendChild(n)
			nodes[i] = n
		case doctypeNode:
			n := &html.Node{Type: html.DoctypeNode, Data: strings.ToLower(name)}
			parent.AppendChild(n)
			nodes[i] = n
		case fragmentNode:
			mode, ok := shadowType[i]
			if !ok {
				// Template content: flatten into the template as the parser does.
				nodes[i] = parent
				continue
			}
			if mode == "user-agent" {
				continue
			}
			sr, err := tree.AttachShadow(parent)
			if err != nil {
				return nil, fmt.Errorf("snapshot: node %d: %w", i, err)
			}
			nodes[i] = sr
		}
	}

	if lt := d.Layout; lt != nil {
		for k, i := range lt.NodeIndex {
			if i < 0 || i >= len(nodes) || nodes[i] == nil || nodes[i].Type == html.DocumentNode {
				continue
			}
			styles := at(lt.Styles, k, proto.DOMSnapshotArrayOfStrings(nil))
			bounds := at(lt.Bounds, k, proto.DOMSnapshotRectangle(nil))
			tree.SetLayout(nodes[i], layoutOf(str, styles, bounds))
		}
	}
	tree.SetLive(true)
	return tree, nil
}

// newElement lower-cases HTML tag names, which CDP reports in upper case.
// Mixed-case names (foreign content) are kept.
func newElement(name string) *html.Node {
	if name == strings.ToUpper(name) {
		name = strings.ToLower(name)
	}
	return &html.Node{Type: html.ElementNode, Data: name, DataAtom: atom.Lookup([]byte(name))}
}

func layoutOf(str func(proto.DOMSnapshotStringIndex) string, styles proto.DOMSnapshotArrayOfStrings, bounds proto.DOMSnapshotRectangle) dom.Layout {
	style := func(k int) string { return str(at(styles, k, -1)) }
	l := dom.Layout{
		Box: dom.Rect{
			Left:   at(bounds, 0, 0),
			Top:    at(bounds, 1, 0),
			Width:  at(bounds, 2, 0),
			Height: at(bounds, 3, 0),
		},
		FontSize:   parsePx(style(2)),
		FontWeight: parseWeight(style(3)),
		Rendered:   true,
	}
	// Hidden boxes keep their offset parent but paint nothing.
	if v := style(1); v == "hidden" || v == "collapse" {
		l.Box.Width, l.Box.Height = 0, 0
	}
	return l
}

func parsePx(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "px"), 64)
	if err != nil {
		return 0
	}
	return f
}

func parseWeight(v string) float64 {
	switch v {
	case "normal":
		return 400
	case "bold":
		return 700
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}
