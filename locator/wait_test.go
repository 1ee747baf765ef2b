package locator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/domlocator/dom"
	"github.com/hazyhaar/domlocator/engine"
	"github.com/hazyhaar/domlocator/poll"
)

// flipSource serves before until n evaluations have happened, then after.
func flipSource(t *testing.T, n int64, before, after string) (RootSource, *atomic.Int64) {
	t.Helper()
	b, err := dom.ParseString(before)
	if err != nil {
		t.Fatal(err)
	}
	a, err := dom.ParseString(after)
	if err != nil {
		t.Fatal(err)
	}
	var calls atomic.Int64
	return func(context.Context) (dom.Root, error) {
		if calls.Add(1) > n {
			return a.Root(), nil
		}
		return b.Root(), nil
	}, &calls
}

func TestWait_Attached(t *testing.T) {
	reg, _ := setup(t)
	src, calls := flipSource(t, 2, `<p>loading</p>`, `<p>loading</p><button id="go">Go</button>`)

	p := reg.Wait(context.Background(), src, "id=go", StateAttached, time.Millisecond)
	n, err := p.Result(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n == nil || dom.AttrOr(n, "id", "") != "go" {
		t.Fatalf("got %v, want button#go", n)
	}
	if calls.Load() != 3 {
		t.Errorf("evaluations: got %d, want 3", calls.Load())
	}
	logs := p.TakeLogs()
	if len(logs) != 1 || logs[0] != `waiting for selector "id=go"` {
		t.Errorf("got %q", logs)
	}
}

func TestWait_CancelReachesSource(t *testing.T) {
	reg, _ := setup(t)
	entered := make(chan struct{})
	var once atomic.Bool
	src := func(ctx context.Context) (dom.Root, error) {
		if once.CompareAndSwap(false, true) {
			close(entered)
		}
		<-ctx.Done()
		return dom.Root{}, ctx.Err()
	}

	p := reg.Wait(context.Background(), src, "id=go", StateAttached, time.Millisecond)
	<-entered
	p.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := p.Result(ctx); !errors.Is(err, poll.ErrCanceled) {
		t.Fatalf("got %v, want poll.ErrCanceled", err)
	}
}

func TestWait_States(t *testing.T) {
	reg, _ := setup(t)
	tests := []struct {
		name   string
		state  WaitState
		before string
		after  string
		found  bool
		log    string
	}{
		{"visible", StateVisible, `<div id="x" hidden>x</div>`, `<div id="x">x</div>`, true, `selector resolved to hidden <div id="x" hidden="">`},
		{"hidden", StateHidden, `<div id="x">x</div>`, `<div id="x" style="display:none">x</div>`, true, `selector resolved to visible <div id="x">`},
		{"hidden when gone", StateHidden, `<div id="x">x</div>`, `<p>gone</p>`, false, `selector resolved to visible <div id="x">`},
		{"detached", StateDetached, `<div id="x">x</div>`, `<p>gone</p>`, false, `selector resolved to visible <div id="x">`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, _ := flipSource(t, 1, tt.before, tt.after)
			p := reg.Wait(context.Background(), src, "#x", tt.state, time.Millisecond)
			n, err := p.Result(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if (n != nil) != tt.found {
				t.Fatalf("got %v, want found=%v", n, tt.found)
			}
			logs := p.TakeLogs()
			if len(logs) != 1 || logs[0] != tt.log {
				t.Errorf("got %q, want [%s]", logs, tt.log)
			}
		})
	}
}

func TestWait_Errors(t *testing.T) {
	reg, tree := setup(t)

	p := reg.Wait(context.Background(), StaticRoot(tree.Root()), "foo=bar", StateAttached, time.Millisecond)
	var unknown *engine.UnknownEngineError
	if _, err := p.Result(context.Background()); !errors.As(err, &unknown) {
		t.Errorf("got %v, want UnknownEngineError", err)
	}

	boom := errors.New("boom")
	failing := func(context.Context) (dom.Root, error) { return dom.Root{}, boom }
	p = reg.Wait(context.Background(), failing, "css=div", StateAttached, time.Millisecond)
	if _, err := p.Result(context.Background()); !errors.Is(err, boom) {
		t.Errorf("got %v, want %v", err, boom)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	p = reg.Wait(ctx, StaticRoot(tree.Root()), "#nope", StateAttached, 0)
	if _, err := p.Result(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want DeadlineExceeded", err)
	}
}

func TestParseWaitState(t *testing.T) {
	if st, err := ParseWaitState(""); err != nil || st != StateAttached {
		t.Errorf("got %v, %v", st, err)
	}
	if st, err := ParseWaitState("Visible"); err != nil || st != StateVisible {
		t.Errorf("got %v, %v", st, err)
	}
	if _, err := ParseWaitState("gone"); !errors.Is(err, ErrUnknownWaitState) || !strings.Contains(err.Error(), "gone") {
		t.Errorf("got %v", err)
	}
}
