package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotQueryableRoot is returned when the query root is a text-like node.
	ErrNotQueryableRoot = errors.New("engine: root is not queryable")
	// ErrEmptySelector is returned for a selector with no tokens.
	ErrEmptySelector = errors.New("engine: empty selector")
	// ErrMalformedSelector is the sentinel every MalformedSelectorError unwraps to.
	ErrMalformedSelector = errors.New("engine: malformed selector")
)

// UnknownEngineError names an engine that is not registered.
type UnknownEngineError struct {
	Name     string
	Selector string
}

func (e *UnknownEngineError) Error() string {
	if e.Selector == "" {
		return fmt.Sprintf("engine: unknown engine %q", e.Name)
	}
	return fmt.Sprintf("engine: unknown engine %q while parsing selector %s", e.Name, e.Selector)
}

// MalformedSelectorError reports a selector body an engine cannot parse.
// Offset is the byte offset of the failure, or -1 when it has none.
type MalformedSelectorError struct {
	Engine   string
	Selector string
	Offset   int
	Cause    error
}

func (e *MalformedSelectorError) Error() string {
	msg := fmt.Sprintf("engine: %s: malformed selector %q", e.Engine, e.Selector)
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" at offset %d", e.Offset)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the cause to errors.Is/As.
func (e *MalformedSelectorError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrMalformedSelector}
	}
	return []error{ErrMalformedSelector, e.Cause}
}

// Malformed builds a MalformedSelectorError.
func Malformed(engine, selector string, offset int, cause error) error {
	return &MalformedSelectorError{Engine: engine, Selector: selector, Offset: offset, Cause: cause}
}
