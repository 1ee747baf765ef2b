package text

import (
	"errors"
	"testing"

	"github.com/hazyhaar/domlocator/dom"
	"github.com/hazyhaar/domlocator/engine"
	"golang.org/x/net/html"
)

func parse(t *testing.T, src string) *dom.Tree {
	t.Helper()
	tree, err := dom.ParseString(src)
	if err != nil {
		t.Fatal(err)
	}
	return tree
}

func TestQuery_Modes(t *testing.T) {
	tree := parse(t, "<div id=\"yo\">yo</div><div id=\"ya\">ya</div><div id=\"ye\">\nye  </div>")
	e := New(true)

	cases := []struct {
		body string
		want string
	}{
		{`"yo"`, "yo"},
		{`'ya'`, "ya"},
		{`"ye"`, "ye"},
		{`"Yo"`, ""},
		{`/^[ay]+$/`, "ya"},
		{`/^YE$/i`, "ye"},
		{`YE`, "ye"},
		{`y`, "yo"},
		{`zz`, ""},
	}
	for _, c := range cases {
		got, err := e.Query(tree.Root(), c.body)
		if err != nil {
			t.Fatalf("%s: %v", c.body, err)
		}
		var want *html.Node
		if c.want != "" {
			want = tree.ElementByID(c.want)
		}
		if got != want {
			t.Errorf("%s: got %v, want #%s", c.body, got, c.want)
		}
	}
}

func TestQuery_SpanningRun(t *testing.T) {
	cases := []struct {
		name string
		src  string
		body string
		want string
	}{
		{"inline child", `<div id="s">Hello <b>wor</b>ld</div><p>other</p>`, "hello world", "s"},
		{"sibling divs", `<section id="s"><div>Hello</div> <div>World</div></section>`, "Hello World", "s"},
		{"sibling divs quoted", `<section id="s"><div>Hello</div> <div>World</div></section>`, `"Hello World"`, "s"},
		{"sibling divs newline", "<section id=\"s\"><div>Hello</div>\n    <div>World</div></section>", `"Hello World"`, "s"},
		{"no separator", `<section id="s"><div>Hello</div><div>World</div></section>`, `"Hello World"`, ""},
	}
	for _, c := range cases {
		tree := parse(t, c.src)
		got, err := New(true).Query(tree.Root(), c.body)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		var want *html.Node
		if c.want != "" {
			want = tree.ElementByID(c.want)
		}
		if got != want {
			t.Errorf("%s: got %v, want #%s", c.name, got, c.want)
		}
	}
}

func TestQueryAll_SkipsNonRenderedElements(t *testing.T) {
	tree := parse(t, `<html><head><title>T</title><style>p{}</style></head><body><script></script><template><i></i></template><p id="e"></p></body></html>`)
	for _, body := range []string{`""`, `/^$/`} {
		all, err := New(true).QueryAll(tree.Root(), body)
		if err != nil {
			t.Fatalf("%s: %v", body, err)
		}
		for _, n := range all {
			switch n.Data {
			case "head", "title", "script", "style", "template", "i":
				t.Errorf("%s: got <%s>", body, n.Data)
			}
		}
		if len(all) != 1 || all[0] != tree.ElementByID("e") {
			t.Errorf("%s: got %d nodes, want only #e", body, len(all))
		}
	}
}

func TestQueryAll_DeepestOnly(t *testing.T) {
	tree := parse(t, `<section><div id="a"><span id="b">buy now</span></div><div id="c">buy later</div></section>`)
	all, err := New(true).QueryAll(tree.Root(), "buy")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0] != tree.ElementByID("b") || all[1] != tree.ElementByID("c") {
		t.Fatalf("got %d nodes, want #b and #c", len(all))
	}
	first, _ := New(true).Query(tree.Root(), "buy")
	if first != all[0] {
		t.Fatal("Query should return the first QueryAll node")
	}
}

func TestQuery_Shadow(t *testing.T) {
	tree := parse(t, `<div id="h"><template shadowrootmode="open"><span id="sp">Hello from root</span></template>light</div>`)
	sp := tree.ElementByID("sp")

	got, err := New(true).Query(tree.Root(), "from root")
	if err != nil {
		t.Fatal(err)
	}
	if got != sp {
		t.Fatalf("piercing: got %v, want shadow span", got)
	}

	got, err = New(false).Query(tree.Root(), "from root")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("light engine should not see shadow text")
	}
}

func TestQuery_SkipsScriptAndUsesButtonValue(t *testing.T) {
	tree := parse(t, `<div><script>var secret = 1</script></div><form><input id="go" type="submit" value="Send it"></form>`)
	e := New(true)
	if got, _ := e.Query(tree.Root(), "secret"); got != nil {
		t.Errorf("script text matched: %v", got)
	}
	if got, _ := e.Query(tree.Root(), `"Send it"`); got != tree.ElementByID("go") {
		t.Errorf("submit value: got %v, want #go", got)
	}
}

func TestCreate(t *testing.T) {
	tree := parse(t, `<div>yo</div><div id="q"> "yo </div><div id="w">unique</div><div id="x">two <i>parts</i></div>`)
	e := New(true)

	cases := []struct {
		id   string
		want string
	}{
		{"q", `"\"yo"`},
		{"w", "unique"},
		{"x", "two"},
	}
	for _, c := range cases {
		target := tree.ElementByID(c.id)
		got, ok := e.Create(tree.Root(), target, engine.ModeDefault)
		if !ok || got != c.want {
			t.Errorf("#%s: got %q (%v), want %q", c.id, got, ok, c.want)
			continue
		}
		back, err := e.Query(tree.Root(), got)
		if err != nil || back != target {
			t.Errorf("#%s: %q does not round-trip", c.id, got)
		}
	}

	if _, ok := e.Create(tree.Root(), tree.ElementByID("w"), engine.ModeNoText); ok {
		t.Error("notext mode should not produce a text selector")
	}
}

func TestQuery_BadRegexp(t *testing.T) {
	tree := parse(t, `<p>x</p>`)
	_, err := New(true).Query(tree.Root(), "/(/")
	var mse *engine.MalformedSelectorError
	if !errors.As(err, &mse) {
		t.Fatalf("got %v, want MalformedSelectorError", err)
	}
	if _, err := New(true).Query(tree.Root(), " "); !errors.Is(err, engine.ErrEmptySelector) {
		t.Fatalf("got %v, want ErrEmptySelector", err)
	}
}
