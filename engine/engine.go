// Package engine defines the contract every selector strategy implements,
// the error taxonomy shared by the strategies and the dispatcher, and the
// text quoting helpers used to build selector bodies.
package engine

import (
	"github.com/hazyhaar/domlocator/dom"
	"golang.org/x/net/html"
)

// Mode tunes selector synthesis.
type Mode int

const (
	// ModeDefault lets an engine use every cue it knows.
	ModeDefault Mode = iota
	// ModeNoText forbids cues taken from the target's own subtree text.
	ModeNoText
)

func (m Mode) String() string {
	if m == ModeNoText {
		return "notext"
	}
	return "default"
}

// ParseMode maps "notext" to ModeNoText; anything else is ModeDefault.
func ParseMode(s string) Mode {
	if s == "notext" {
		return ModeNoText
	}
	return ModeDefault
}

// Engine is one named strategy.
//
// Create synthesizes a body that resolves back to target from root, or
// reports false. Query returns one match or nil. QueryAll returns every match
// without duplicates; a node returned by Query is always among them.
type Engine interface {
	Create(root dom.Root, target *html.Node, mode Mode) (string, bool)
	Query(root dom.Root, body string) (*html.Node, error)
	QueryAll(root dom.Root, body string) ([]*html.Node, error)
}
