package locator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domlocator/dom"
	"github.com/hazyhaar/domlocator/poll"
)

// ErrUnknownWaitState is returned for a state name ParseWaitState rejects.
var ErrUnknownWaitState = errors.New("locator: unknown wait state")

// WaitState is the condition Wait polls for.
type WaitState string

const (
	// StateAttached waits for a match.
	StateAttached WaitState = "attached"
	// StateDetached waits until nothing matches.
	StateDetached WaitState = "detached"
	// StateVisible waits for a rendered match with a visible box.
	StateVisible WaitState = "visible"
	// StateHidden waits until nothing matches or the match is not visible.
	StateHidden WaitState = "hidden"
)

// ParseWaitState maps a name to a state; empty is attached.
func ParseWaitState(s string) (WaitState, error) {
	switch st := WaitState(strings.ToLower(s)); st {
	case "":
		return StateAttached, nil
	case StateAttached, StateDetached, StateVisible, StateHidden:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownWaitState, s)
}

// RootSource yields the root to query on every evaluation.
type RootSource func(ctx context.Context) (dom.Root, error)

// StaticRoot always yields root.
func StaticRoot(root dom.Root) RootSource {
	return func(context.Context) (dom.Root, error) { return root, nil }
}

// PageSource loads url afresh through loader on every evaluation.
func PageSource(loader PageLoader, url string) RootSource {
	return func(ctx context.Context) (dom.Root, error) {
		tree, err := loader.Load(ctx, url)
		if err != nil {
			return dom.Root{}, err
		}
		return tree.Root(), nil
	}
}

// Wait polls selector against src until state holds. interval zero polls
// once per frame. The poll's value is the matched node, nil for the
// detached and hidden states when nothing matches. A malformed selector or a
// failing source ends the poll with that error.
func (r *Registry) Wait(ctx context.Context, src RootSource, selector string, state WaitState, interval time.Duration, opts ...poll.Option) *poll.Poll[*html.Node] {
	sel, parseErr := r.Parse(selector)
	pred := func(pr *poll.Progress) (*html.Node, bool, error) {
		if parseErr != nil {
			return nil, false, parseErr
		}
		root, err := src(pr.Context())
		if err != nil {
			return nil, false, err
		}
		n, err := r.querySelector(sel, selector, root)
		if err != nil {
			return nil, false, err
		}

		if n == nil {
			if state == StateDetached || state == StateHidden {
				return nil, true, nil
			}
			pr.LogRepeating(fmt.Sprintf("waiting for selector %q", selector))
			return nil, false, nil
		}
		visible := isVisible(root.Tree, n)
		switch state {
		case StateAttached:
			return n, true, nil
		case StateVisible:
			if visible {
				return n, true, nil
			}
		case StateHidden:
			if !visible {
				return n, true, nil
			}
		}
		word := "hidden"
		if visible {
			word = "visible"
		}
		pr.LogRepeating(fmt.Sprintf("selector resolved to %s %s", word, preview(n)))
		return nil, false, nil
	}

	if interval <= 0 {
		return poll.Raf(ctx, pred, opts...)
	}
	return poll.Interval(ctx, interval, pred, opts...)
}

func isVisible(t *dom.Tree, n *html.Node) bool {
	l := t.Layout(n)
	return l.Rendered && l.Visible()
}

// preview renders the opening tag of n, shortened.
func preview(n *html.Node) string {
	var b strings.Builder
	b.WriteString("<" + n.Data)
	for _, a := range n.Attr {
		fmt.Fprintf(&b, " %s=%q", a.Key, a.Val)
	}
	b.WriteString(">")
	return dom.Truncate(b.String(), 60)
}
