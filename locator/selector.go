package locator

import (
	"errors"
	"regexp"
	"strings"

	"github.com/hazyhaar/domlocator/engine"
)

// selectorEngine names the compound parser in MalformedSelectorError.
const selectorEngine = "selector"

var (
	partName   = regexp.MustCompile(`^[a-zA-Z_0-9+:*-]+$`)
	xpathStart = regexp.MustCompile(`^\(*//`)

	errTwoCaptures = errors.New("only one part may capture with *")
)

// Part is one engine step of a compound selector.
type Part struct {
	Name string
	Body string
}

// Selector is a parsed compound selector. Capture is the index of the part
// whose match is reported, or -1 for the last part.
type Selector struct {
	Parts   []Part
	Capture int
}

// NewSelector builds a selector without a capture part.
func NewSelector(parts ...Part) Selector {
	return Selector{Parts: parts, Capture: -1}
}

// captureIndex resolves -1 to the last part.
func (s Selector) captureIndex() int {
	if s.Capture < 0 || s.Capture >= len(s.Parts) {
		return len(s.Parts) - 1
	}
	return s.Capture
}

// String renders s back to selector text.
func (s Selector) String() string {
	parts := make([]string, len(s.Parts))
	for i, p := range s.Parts {
		name := p.Name
		if i == s.Capture {
			name = "*" + name
		}
		parts[i] = name + "=" + p.Body
	}
	return strings.Join(parts, " >> ")
}

// ParseSelector splits text on ">>" outside quotes. A part "name=body" names
// its engine; otherwise a quoted part is text, a part starting with "//",
// "(//" or ".." is xpath, and anything else is css. A "*" before the name
// marks the capture part. Engine names are not checked here.
func ParseSelector(text string) (Selector, error) {
	if strings.TrimSpace(text) == "" {
		return Selector{}, engine.ErrEmptySelector
	}
	sel := Selector{Capture: -1}

	appendPart := func(start, end int) error {
		raw := text[start:end]
		part := strings.TrimSpace(raw)
		var name, body string
		if eq := strings.IndexByte(part, '='); eq >= 0 && partName.MatchString(strings.TrimSpace(part[:eq])) {
			name = strings.TrimSpace(part[:eq])
			body = part[eq+1:]
		} else if len(part) > 1 && (part[0] == '"' || part[0] == '\'') && part[len(part)-1] == part[0] {
			name, body = "text", part
		} else if xpathStart.MatchString(part) || strings.HasPrefix(part, "..") {
			name, body = "xpath", part
		} else {
			name, body = "css", part
		}
		name = strings.ToLower(name)

		capture := strings.HasPrefix(name, "*")
		if capture {
			name = name[1:]
		}
		sel.Parts = append(sel.Parts, Part{Name: name, Body: body})
		if capture {
			if sel.Capture >= 0 {
				offset := start + len(raw) - len(strings.TrimLeft(raw, " \t\n\r"))
				return engine.Malformed(selectorEngine, text, offset, errTwoCaptures)
			}
			sel.Capture = len(sel.Parts) - 1
		}
		return nil
	}

	var quote byte
	start := 0
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '\\' && i+1 < len(text):
			i += 2
		case quote != 0 && c == quote:
			quote = 0
			i++
		case quote == 0 && (c == '"' || c == '\'' || c == '`'):
			quote = c
			i++
		case quote == 0 && c == '>' && i+1 < len(text) && text[i+1] == '>':
			if err := appendPart(start, i); err != nil {
				return Selector{}, err
			}
			i += 2
			start = i
		default:
			i++
		}
	}
	if err := appendPart(start, len(text)); err != nil {
		return Selector{}, err
	}
	return sel, nil
}
