package zs

import (
	"errors"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/hazyhaar/domlocator/engine"
)

var errSyntax = errors.New("unexpected character")

type tokenKind uint8

const (
	kindNone tokenKind = iota // '^' tokens carry no payload
	kindText
	kindCSS
)

// token is one step of a heuristic selector.
//
// comb is 0 (search the subtree), '>' (direct children), '~' (climb to the
// nearest container holding a match) or '^' (go to the parent).
type token struct {
	comb     byte
	kind     tokenKind
	value    string // quoted text key or raw css
	index    int
	hasIndex bool
	sel      cascadia.Selector
}

const (
	textQuotes = "`\"'"
	stopChars  = " >~^#"
)

// tokenize parses a heuristic selector. Text literals may be quoted with
// backticks, double or single quotes; everything else up to a space or a
// combinator is a CSS fragment. A trailing #N picks the N-th match.
func tokenize(selector string) ([]token, error) {
	var tokens []token
	pos := 0
	fail := func(at int) ([]token, error) {
		return nil, engine.Malformed(Name, selector, at, errSyntax)
	}
	skipSpace := func() {
		for pos < len(selector) && selector[pos] == ' ' {
			pos++
		}
	}

	for pos < len(selector) {
		skipSpace()
		if pos == len(selector) {
			break
		}
		if len(tokens) == 0 && strings.IndexByte("^>~", selector[pos]) >= 0 {
			return fail(pos)
		}

		var tok token
		switch selector[pos] {
		case '^':
			tok.comb = '^'
			tokens = append(tokens, tok)
			pos++
			continue
		case '>', '~':
			tok.comb = selector[pos]
			pos++
			skipSpace()
			if pos == len(selector) {
				return fail(pos)
			}
		}

		var buf strings.Builder
		end := pos
		var quote byte
		isText := strings.IndexByte(textQuotes, selector[pos]) >= 0
		for end < len(selector) {
			c := selector[end]
			if quote != 0 {
				if c == '\\' && end+1 < len(selector) {
					if !isText {
						buf.WriteByte(c)
					}
					buf.WriteByte(selector[end+1])
					end += 2
					continue
				}
				buf.WriteByte(c)
				end++
				if c == quote {
					quote = 0
					if isText {
						break
					}
				}
				continue
			}
			if strings.IndexByte(stopChars, c) >= 0 {
				break
			}
			if strings.IndexByte(textQuotes, c) >= 0 {
				quote = c
			}
			buf.WriteByte(c)
			end++
		}
		if quote != 0 {
			return fail(end)
		}
		raw := buf.String()
		if raw == "" {
			return fail(pos)
		}
		if isText {
			tok.kind = kindText
			tok.value = engine.Quote(raw[1 : len(raw)-1])
		} else {
			tok.kind = kindCSS
			tok.value = raw
		}
		pos = end

		if pos < len(selector) && selector[pos] == '#' {
			pos++
			digits := pos
			for digits < len(selector) && selector[digits] >= '0' && selector[digits] <= '9' {
				digits++
			}
			if digits == pos {
				return fail(pos)
			}
			n, err := strconv.Atoi(selector[pos:digits])
			if err != nil {
				return fail(pos)
			}
			tok.index, tok.hasIndex = n, true
			pos = digits
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// serialize renders tokens back to selector text. The first token always
// searches the root subtree, so its leading space is dropped.
func serialize(tokens []token) string {
	var b strings.Builder
	for _, t := range tokens {
		if t.comb == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteByte(t.comb)
		}
		b.WriteString(t.value)
		if t.hasIndex {
			b.WriteByte('#')
			b.WriteString(strconv.Itoa(t.index))
		}
	}
	return strings.TrimPrefix(b.String(), " ")
}
