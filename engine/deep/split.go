package deep

import (
	"errors"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/hazyhaar/domlocator/engine"
)

var (
	errDanglingCombinator = errors.New("combinator without operand")
	errUnterminated       = errors.New("unterminated string or group")
	errEmptyCompound      = errors.New("empty compound selector")
)

// step is one compound selector and the combinator that links it to the
// compound on its left (0 for the leftmost one).
type step struct {
	comb byte
	sel  cascadia.Selector
}

// chain is one complex selector of a group, left to right.
type chain []step

// parse splits a selector group into chains of compound selectors. Quotes,
// escapes, brackets and parentheses are honoured, so combinator characters
// inside attribute values or :nth-child arguments stay in their compound.
func parse(selector string) ([]chain, error) {
	var (
		groups  []chain
		current chain
		buf     strings.Builder
		pending byte
		quote   byte
		depth   int
	)

	flush := func(pos int) error {
		compound := strings.TrimSpace(buf.String())
		buf.Reset()
		if compound == "" {
			return nil
		}
		sel, err := cascadia.Compile(compound)
		if err != nil {
			return engine.Malformed(Name, selector, -1, err)
		}
		comb := pending
		if len(current) == 0 {
			if pending != 0 && pending != ' ' {
				return engine.Malformed(Name, selector, pos, errDanglingCombinator)
			}
			comb = 0
		} else if comb == 0 {
			comb = ' '
		}
		current = append(current, step{comb: comb, sel: sel})
		pending = 0
		return nil
	}

	endChain := func(pos int) error {
		if err := flush(pos); err != nil {
			return err
		}
		if len(current) == 0 {
			return engine.Malformed(Name, selector, pos, errEmptyCompound)
		}
		if pending != 0 && pending != ' ' {
			return engine.Malformed(Name, selector, pos, errDanglingCombinator)
		}
		groups = append(groups, current)
		current = nil
		pending = 0
		return nil
	}

	for i := 0; i < len(selector); i++ {
		c := selector[i]
		switch {
		case c == '\\' && i+1 < len(selector):
			buf.WriteByte(c)
			i++
			buf.WriteByte(selector[i])
			continue
		case quote != 0:
			if c == quote {
				quote = 0
			}
			buf.WriteByte(c)
			continue
		case c == '"' || c == '\'':
			quote = c
		case c == '[' || c == '(':
			depth++
		case c == ']' || c == ')':
			depth--
		}
		if depth > 0 || quote != 0 || c == ']' || c == ')' {
			buf.WriteByte(c)
			continue
		}
		switch c {
		case ' ', '\t', '\n', '\r', '\f':
			if buf.Len() > 0 {
				if err := flush(i); err != nil {
					return nil, err
				}
				if pending == 0 {
					pending = ' '
				}
			}
		case '>', '+', '~':
			if err := flush(i); err != nil {
				return nil, err
			}
			if len(current) == 0 || (pending != 0 && pending != ' ') {
				return nil, engine.Malformed(Name, selector, i, errDanglingCombinator)
			}
			pending = c
		case ',':
			if err := endChain(i); err != nil {
				return nil, err
			}
		default:
			buf.WriteByte(c)
		}
	}
	if quote != 0 || depth != 0 {
		return nil, engine.Malformed(Name, selector, len(selector), errUnterminated)
	}
	if err := endChain(len(selector)); err != nil {
		return nil, err
	}
	return groups, nil
}
