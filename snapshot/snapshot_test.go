package snapshot

import (
	"errors"
	"os"
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/net/html"

	"github.com/hazyhaar/domlocator/dom"
	"github.com/hazyhaar/domlocator/engine/text"
	"github.com/hazyhaar/domlocator/safeurl"
)

func loadPage(t *testing.T) *dom.Tree {
	t.Helper()
	raw, err := os.ReadFile("testdata/page.json")
	if err != nil {
		t.Fatal(err)
	}
	tree, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	return tree
}

func findElement(t *testing.T, n *html.Node, name string) *html.Node {
	t.Helper()
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil && found == nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == name {
				found = c
				return
			}
			walk(c)
		}
	}
	walk(n)
	if found == nil {
		t.Fatalf("no <%s>", name)
	}
	return found
}

func TestDecode_Structure(t *testing.T) {
	tree := loadPage(t)
	if !tree.Live() {
		t.Fatal("decoded tree should be live")
	}
	doc := tree.Document()
	if doc.FirstChild == nil || doc.FirstChild.Type != html.DoctypeNode || doc.FirstChild.Data != "html" {
		t.Fatalf("first child: got %+v, want doctype html", doc.FirstChild)
	}

	app := tree.ElementByID("app")
	if app == nil || app.Data != "div" {
		t.Fatalf("got %v, want div#app", app)
	}
	sr := tree.ShadowRoot(app)
	if sr == nil {
		t.Fatal("div#app should host a shadow root")
	}
	button := findElement(t, sr, "button")
	if v, _ := dom.Attr(button, "aria-label"); v != "Close" {
		t.Errorf("aria-label: got %q, want Close", v)
	}
	if light := dom.Children(app); len(light) != 1 || light[0].Data != "span" {
		t.Errorf("light children of #app: got %v, want [span]", light)
	}

	p := findElement(t, doc, "p")
	if p.FirstChild == nil || p.FirstChild.Type != html.TextNode || p.FirstChild != p.LastChild {
		t.Fatal("pseudo-elements must be skipped")
	}
	if p.FirstChild.Data != "Hello" {
		t.Errorf("got %q, want Hello", p.FirstChild.Data)
	}

	svg := findElement(t, doc, "svg")
	if svg.FirstChild == nil || svg.FirstChild.Data != "linearGradient" {
		t.Errorf("foreign tag case must be kept, got %v", svg.FirstChild)
	}
	body := findElement(t, doc, "body")
	if body.LastChild.Type != html.CommentNode || body.LastChild.Data != " end " {
		t.Errorf("last child of body: got %+v, want comment", body.LastChild)
	}
}

func TestDecode_Layout(t *testing.T) {
	tree := loadPage(t)
	doc := tree.Document()

	head := findElement(t, doc, "head")
	if tree.Layout(head).Rendered {
		t.Error("head has no layout object and should be detached")
	}
	if tree.Layout(findElement(t, doc, "title")).Rendered {
		t.Error("title should be detached")
	}

	p := findElement(t, doc, "p")
	l := tree.Layout(p)
	if !l.Rendered || !l.Visible() {
		t.Fatalf("p: got %+v, want rendered and visible", l)
	}
	if l.FontSize != 24 || l.FontWeight != 700 {
		t.Errorf("p font: got %v/%v, want 24/700", l.FontSize, l.FontWeight)
	}
	if l.Box != (dom.Rect{Left: 8, Top: 60, Width: 784, Height: 30}) {
		t.Errorf("p box: got %+v", l.Box)
	}

	button := findElement(t, tree.ShadowRoot(tree.ElementByID("app")), "button")
	if got := tree.Layout(button).FontSize; got != 13.3333 {
		t.Errorf("button font size: got %v, want 13.3333", got)
	}

	span := findElement(t, doc, "span")
	sl := tree.Layout(span)
	if !sl.Rendered || sl.Visible() {
		t.Errorf("visibility:hidden span: got %+v, want rendered and not visible", sl)
	}
	if tree.Layout(findElement(t, doc, "linearGradient")).Rendered {
		t.Error("linearGradient should be detached")
	}
}

func TestDecode_QueryThroughShadow(t *testing.T) {
	tree := loadPage(t)
	got, err := text.New(true).Query(tree.Root(), `"Close"`)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Data != "button" {
		t.Fatalf("got %v, want button", got)
	}
	light, err := text.New(false).Query(tree.Root(), `"Close"`)
	if err != nil {
		t.Fatal(err)
	}
	if light != nil {
		t.Fatalf("light text engine: got %v, want nil", light)
	}
}

func TestBuild_Result(t *testing.T) {
	res := &proto.DOMSnapshotCaptureSnapshotResult{
		Strings: []string{"#document", "HTML", "BODY", "A", "href", "/cart", "#text", "Cart", "block", "visible", "16px", "700"},
		Documents: []*proto.DOMSnapshotDocumentSnapshot{{
			Nodes: &proto.DOMSnapshotNodeTreeSnapshot{
				ParentIndex: []int{-1, 0, 1, 2, 3},
				NodeType:    []int{9, 1, 1, 1, 3},
				NodeName:    []proto.DOMSnapshotStringIndex{0, 1, 2, 3, 6},
				NodeValue:   []proto.DOMSnapshotStringIndex{-1, -1, -1, -1, 7},
				Attributes:  []proto.DOMSnapshotArrayOfStrings{nil, nil, nil, {4, 5}, nil},
			},
			Layout: &proto.DOMSnapshotLayoutTreeSnapshot{
				NodeIndex: []int{3},
				Styles:    []proto.DOMSnapshotArrayOfStrings{{8, 9, 10, 11}},
				Bounds:    []proto.DOMSnapshotRectangle{{10, 20, 40, 18}},
			},
		}},
	}
	tree, err := Build(res)
	if err != nil {
		t.Fatal(err)
	}
	a, err := text.New(true).Query(tree.Root(), `"Cart"`)
	if err != nil {
		t.Fatal(err)
	}
	if a == nil || a.Data != "a" || dom.AttrOr(a, "href", "") != "/cart" {
		t.Fatalf("got %v, want <a href=/cart>", a)
	}
	l := tree.Layout(a)
	if !l.Visible() || l.FontWeight != 700 || l.Box.Left != 10 {
		t.Fatalf("layout: got %+v", l)
	}

	if _, err := Build(nil); !errors.Is(err, ErrNoDocument) {
		t.Errorf("nil result: got %v, want ErrNoDocument", err)
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := Decode([]byte(`{"documents":[],"strings":[]}`)); !errors.Is(err, ErrNoDocument) {
		t.Errorf("empty capture: got %v, want ErrNoDocument", err)
	}
	if _, err := Decode([]byte(`{"documents":[{"nodes":{"nodeType":[1]}}],"strings":[]}`)); !errors.Is(err, ErrNoDocument) {
		t.Errorf("element root: got %v, want ErrNoDocument", err)
	}
	if _, err := Decode([]byte(`{`)); err == nil {
		t.Error("truncated JSON should fail")
	}
	bad := `{"documents":[{"nodes":{"parentIndex":[-1,2,0],"nodeType":[9,1,1],"nodeName":[0,0,0]}}],"strings":["DIV"]}`
	if _, err := Decode([]byte(bad)); err == nil {
		t.Error("forward parent index should fail")
	}
}

func TestBlocked(t *testing.T) {
	set := map[string]bool{"images": true, "stylesheets": true, "xhr": true}
	tests := []struct {
		resType string
		want    bool
	}{
		{"Image", true},
		{"Stylesheet", true},
		{"Font", false},
		{"XHR", true},
		{"Document", false},
	}
	for _, tt := range tests {
		if got := blocked(set, tt.resType); got != tt.want {
			t.Errorf("blocked(%q): got %v, want %v", tt.resType, got, tt.want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}
	c.defaults()
	if c.Stealth != StealthHeadless || c.Timeout <= 0 || c.Logger == nil {
		t.Fatalf("got %+v", c)
	}
}

func TestCapturer_Closed(t *testing.T) {
	c := NewCapturer(Config{})
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(t.Context()); !errors.Is(err, ErrClosed) {
		t.Fatalf("got %v, want ErrClosed", err)
	}
}

func TestCapturer_RefusesUnsafeURL(t *testing.T) {
	c := NewCapturer(Config{})
	defer c.Close()
	for _, u := range []string{"file:///etc/passwd", "http://127.0.0.1:9222/json"} {
		if _, err := c.Load(t.Context(), u); !errors.Is(err, safeurl.ErrUnsafe) {
			t.Errorf("%s: got %v, want ErrUnsafe", u, err)
		}
	}
	if c.browser != nil {
		t.Fatal("no browser should start for a refused URL")
	}
}
