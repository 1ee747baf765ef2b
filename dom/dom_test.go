package dom

import (
	"testing"

	"golang.org/x/net/html"
)

func mustParse(t *testing.T, src string) *Tree {
	t.Helper()
	tree, err := ParseString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return tree
}

func TestParse_DeclarativeShadow(t *testing.T) {
	tree := mustParse(t, `<div id="host"><template shadowrootmode="open"><span id="inner">in</span></template><b id="light">out</b></div>`)

	host := tree.ElementByID("host")
	if host == nil {
		t.Fatal("host not found")
	}
	sr := tree.ShadowRoot(host)
	if sr == nil {
		t.Fatal("shadow root not attached")
	}
	if tree.Host(sr) != host {
		t.Fatal("host mapping broken")
	}
	for c := host.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "template" {
			t.Fatal("template should be removed from the light tree")
		}
	}

	inner := tree.ElementByID("inner")
	if inner == nil || inner.Parent != sr {
		t.Fatal("inner span should live in the shadow root")
	}
	if got := tree.ParentOrHost(inner); got != host {
		t.Fatalf("ParentOrHost: got %v, want host", got)
	}
}

func TestParse_NestedShadow(t *testing.T) {
	tree := mustParse(t, `<div id="a"><template shadowrootmode="open"><div id="b"><template shadowrootmode="closed"><i id="c">deep</i></template></div></template></div>`)

	c := tree.ElementByID("c")
	if c == nil {
		t.Fatal("nested shadow content not found")
	}
	b := tree.ElementByID("b")
	if got := tree.ParentOrHost(c); got != b {
		t.Fatalf("ParentOrHost(c): got %v, want #b", got)
	}
	if n := len(tree.ShadowRoots(tree.Document())); n != 2 {
		t.Fatalf("shadow roots: got %d, want 2", n)
	}
}

func TestAttachShadow_Twice(t *testing.T) {
	tree := mustParse(t, `<div id="x"></div>`)
	x := tree.ElementByID("x")
	if _, err := tree.AttachShadow(x); err != nil {
		t.Fatal(err)
	}
	if _, err := tree.AttachShadow(x); err == nil {
		t.Fatal("expected error on second attach")
	}
}

func TestWalkElements_ComposedOrder(t *testing.T) {
	tree := mustParse(t, `<div id="h"><template shadowrootmode="open"><p id="s1"></p></template><p id="l1"></p></div><p id="after"></p>`)

	var light, composed []string
	tree.WalkElements(tree.Document(), false, func(n *html.Node) bool {
		if id, ok := Attr(n, "id"); ok {
			light = append(light, id)
		}
		return true
	})
	tree.WalkElements(tree.Document(), true, func(n *html.Node) bool {
		if id, ok := Attr(n, "id"); ok {
			composed = append(composed, id)
		}
		return true
	})

	wantLight := []string{"h", "l1", "after"}
	wantComposed := []string{"h", "s1", "l1", "after"}
	if len(light) != len(wantLight) {
		t.Fatalf("light: got %v, want %v", light, wantLight)
	}
	for i := range wantLight {
		if light[i] != wantLight[i] {
			t.Fatalf("light: got %v, want %v", light, wantLight)
		}
	}
	if len(composed) != len(wantComposed) {
		t.Fatalf("composed: got %v, want %v", composed, wantComposed)
	}
	for i := range wantComposed {
		if composed[i] != wantComposed[i] {
			t.Fatalf("composed: got %v, want %v", composed, wantComposed)
		}
	}
}

func TestText(t *testing.T) {
	tree := mustParse(t, `<div id="d">Hello <script>nope()</script><b>big</b>
	world <input type="submit" value="Go"></div>
	<div id="h"><template shadowrootmode="open">shadow </template>light</div>`)

	d := tree.ElementByID("d")
	if got, want := NormalizeSpace(tree.Text(d, false)), "Hello big world Go"; got != want {
		t.Errorf("text: got %q, want %q", got, want)
	}
	h := tree.ElementByID("h")
	if got, want := NormalizeSpace(tree.Text(h, true)), "shadow light"; got != want {
		t.Errorf("pierced text: got %q, want %q", got, want)
	}
	if got, want := NormalizeSpace(tree.Text(h, false)), "light"; got != want {
		t.Errorf("light text: got %q, want %q", got, want)
	}
}

func TestStaticLayout(t *testing.T) {
	tree := mustParse(t, `<div id="shown">a</div>
	<div style="display: none"><span id="under">b</span></div>
	<p hidden id="hid">c</p>
	<h1 id="title">Title <span id="small" style="font-size: 10px">x</span></h1>
	<div style="font-weight: bold; font-size: 2em"><i id="styled">y</i></div>`)

	cases := []struct {
		id       string
		rendered bool
		size     float64
		weight   float64
	}{
		{"shown", true, 16, 400},
		{"under", false, 16, 400},
		{"hid", false, 16, 400},
		{"title", true, 32, 700},
		{"small", true, 10, 700},
		{"styled", true, 32, 700},
	}
	for _, c := range cases {
		n := tree.ElementByID(c.id)
		if n == nil {
			t.Fatalf("%s not found", c.id)
		}
		l := tree.Layout(n)
		if l.Rendered != c.rendered {
			t.Errorf("%s rendered: got %v, want %v", c.id, l.Rendered, c.rendered)
		}
		if l.FontSize != c.size {
			t.Errorf("%s font size: got %v, want %v", c.id, l.FontSize, c.size)
		}
		if l.FontWeight != c.weight {
			t.Errorf("%s font weight: got %v, want %v", c.id, l.FontWeight, c.weight)
		}
		if l.Visible() != c.rendered {
			t.Errorf("%s visible: got %v, want %v", c.id, l.Visible(), c.rendered)
		}
	}
}

func TestStaticLayout_VisibilityInherits(t *testing.T) {
	tree := mustParse(t, `<div style="visibility: hidden"><span id="in">a</span><span id="back" style="visibility: visible">b</span></div>`)

	in := tree.Layout(tree.ElementByID("in"))
	if !in.Rendered || in.Visible() {
		t.Errorf("in: got rendered=%v visible=%v, want true false", in.Rendered, in.Visible())
	}
	back := tree.Layout(tree.ElementByID("back"))
	if !back.Visible() {
		t.Error("back: visibility:visible on a child should show it again")
	}
}

func TestLiveLayout_DetachedByDefault(t *testing.T) {
	tree := mustParse(t, `<div id="x">x</div>`)
	tree.SetLive(true)
	x := tree.ElementByID("x")
	if tree.Layout(x).Rendered {
		t.Fatal("live tree without captured layout should be detached")
	}
	tree.SetLayout(x, Layout{Box: Rect{Width: 50, Height: 10}, Rendered: true})
	if !tree.Layout(x).Visible() {
		t.Fatal("captured layout should be visible")
	}
}

func TestRoot_QueryAllExcludesScope(t *testing.T) {
	tree := mustParse(t, `<div id="outer" class="x"><div class="x" id="inner"></div></div>`)
	sel, err := CompileCSS(".x")
	if err != nil {
		t.Fatal(err)
	}
	outer := tree.ElementByID("outer")
	got := tree.RootAt(outer).QueryAll(sel)
	if len(got) != 1 || got[0] != tree.ElementByID("inner") {
		t.Fatalf("QueryAll: got %d nodes, want only #inner", len(got))
	}
	if first := tree.Root().QueryFirst(sel); first != outer {
		t.Fatalf("QueryFirst: got %v, want #outer", first)
	}
}

func TestRoot_Queryable(t *testing.T) {
	tree := mustParse(t, `<p id="p">text</p>`)
	p := tree.ElementByID("p")
	if !tree.RootAt(p).Queryable() {
		t.Error("element root should be queryable")
	}
	if tree.RootAt(p.FirstChild).Queryable() {
		t.Error("text root should not be queryable")
	}
	if (Root{}).Queryable() {
		t.Error("zero root should not be queryable")
	}
}

func TestNodeSet(t *testing.T) {
	a, b := &html.Node{}, &html.Node{}
	var s NodeSet
	if !s.Add(a) || !s.Add(b) || s.Add(a) {
		t.Fatal("Add semantics broken")
	}
	if s.Len() != 2 || s.Nodes()[0] != a {
		t.Fatalf("got %d nodes, want 2 with a first", s.Len())
	}
}
