package text

import (
	"regexp"
	"strings"

	"github.com/hazyhaar/domlocator/dom"
	"github.com/hazyhaar/domlocator/engine"
)

// matcher tests normalized element text.
type matcher func(string) bool

func compileMatcher(body string) (matcher, error) {
	if strings.TrimSpace(body) == "" {
		return nil, engine.ErrEmptySelector
	}

	if exact, ok := engine.Unquote(body); ok {
		want := dom.NormalizeSpace(exact)
		return func(s string) bool { return s == want }, nil
	}

	if re, ok, err := compileRegexp(body); ok {
		if err != nil {
			return nil, engine.Malformed(Name, body, -1, err)
		}
		return re.MatchString, nil
	}

	needle := strings.ToLower(dom.NormalizeSpace(body))
	return func(s string) bool {
		return strings.Contains(strings.ToLower(s), needle)
	}, nil
}

// compileRegexp handles /pattern/flags bodies. Flags i, m and s carry over;
// g, y and u have no meaning for a single test and are ignored.
func compileRegexp(body string) (*regexp.Regexp, bool, error) {
	if len(body) < 2 || body[0] != '/' {
		return nil, false, nil
	}
	end := strings.LastIndexByte(body, '/')
	if end <= 0 {
		return nil, false, nil
	}
	pattern, flags := body[1:end], body[end+1:]
	var prefix strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			if !strings.ContainsRune(prefix.String(), f) {
				prefix.WriteRune(f)
			}
		case 'g', 'y', 'u':
		default:
			return nil, false, nil
		}
	}
	if prefix.Len() > 0 {
		pattern = "(?" + prefix.String() + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	return re, true, err
}
