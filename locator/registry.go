// Package locator resolves compound selectors across the registered engines
// and synthesizes selectors for a given node. It also carries the service
// facade exposed over MCP and HTTP.
package locator

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/hazyhaar/domlocator/dom"
	"github.com/hazyhaar/domlocator/engine"
	"github.com/hazyhaar/domlocator/engine/attr"
	"github.com/hazyhaar/domlocator/engine/css"
	"github.com/hazyhaar/domlocator/engine/deep"
	"github.com/hazyhaar/domlocator/engine/text"
	"github.com/hazyhaar/domlocator/engine/xpath"
	"github.com/hazyhaar/domlocator/engine/zs"
	"golang.org/x/net/html"
)

var (
	// ErrDuplicateEngine is returned when a name is registered twice.
	ErrDuplicateEngine = errors.New("locator: engine already registered")
	// ErrInvalidEngineName is returned for names outside [a-zA-Z0-9_:+-].
	ErrInvalidEngineName = errors.New("locator: invalid engine name")
)

var engineName = regexp.MustCompile(`^[a-zA-Z0-9_:+-]+$`)

// DefaultAttributes are the attributes served by attribute engines.
var DefaultAttributes = []string{"id", "data-testid", "data-test-id", "data-test"}

// Registry maps engine names to engines and resolves compound selectors.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]engine.Engine
	names   []string
	logger  *slog.Logger
}

type named struct {
	name string
	e    engine.Engine
}

type options struct {
	logger     *slog.Logger
	attributes []string
	heuristic  zs.Options
	extra      []named
}

// Option configures New.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithAttributes replaces the attributes served by attribute engines.
func WithAttributes(attrs ...string) Option {
	return func(o *options) { o.attributes = attrs }
}

// WithHeuristic tunes the zs engine.
func WithHeuristic(opts zs.Options) Option {
	return func(o *options) { o.heuristic = opts }
}

// WithEngine registers an additional engine after the built-in ones.
func WithEngine(name string, e engine.Engine) Option {
	return func(o *options) { o.extra = append(o.extra, named{name, e}) }
}

// WithConfig applies the attribute and heuristic sections of cfg.
func WithConfig(cfg *Config) Option {
	return func(o *options) {
		if len(cfg.Attributes) > 0 {
			o.attributes = cfg.Attributes
		}
		o.heuristic = cfg.Heuristic
	}
}

// New builds the built-in engine table: css, deep, xpath, text, text:light,
// zs, and for every attribute both "<attr>" (piercing) and "<attr>:light".
func New(opts ...Option) (*Registry, error) {
	o := options{attributes: DefaultAttributes, heuristic: zs.DefaultOptions()}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	r := &Registry{engines: make(map[string]engine.Engine), logger: o.logger}
	builtin := []named{
		{css.Name, css.New()},
		{deep.Name, deep.New()},
		{xpath.Name, xpath.New()},
		{text.Name, text.New(true)},
		{text.LightName, text.New(false)},
		{zs.Name, zs.New(o.heuristic)},
	}
	for _, a := range o.attributes {
		builtin = append(builtin,
			named{a, attr.New(a, true)},
			named{a + ":light", attr.New(a, false)},
		)
	}
	// css and xpath never cross shadow roots; the light names are aliases.
	builtin = append(builtin,
		named{css.Name + ":light", builtin[0].e},
		named{xpath.Name + ":light", builtin[2].e},
	)
	for _, n := range append(builtin, o.extra...) {
		if err := r.Register(n.name, n.e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an engine under name, lower-cased.
func (r *Registry) Register(name string, e engine.Engine) error {
	if !engineName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidEngineName, name)
	}
	name = strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.engines[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateEngine, name)
	}
	r.engines[name] = e
	r.names = append(r.names, name)
	return nil
}

// Engine returns the engine registered under name.
func (r *Registry) Engine(name string) (engine.Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[strings.ToLower(name)]
	return e, ok
}

// Names lists the registered engines in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// Parse parses text and checks that every engine it names is registered.
func (r *Registry) Parse(text string) (Selector, error) {
	sel, err := ParseSelector(text)
	if err != nil {
		return Selector{}, err
	}
	if _, err := r.bind(sel, text); err != nil {
		return Selector{}, err
	}
	return sel, nil
}

// bind looks up the engine of every part.
func (r *Registry) bind(sel Selector, text string) ([]engine.Engine, error) {
	if len(sel.Parts) == 0 {
		return nil, engine.ErrEmptySelector
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]engine.Engine, len(sel.Parts))
	for i, p := range sel.Parts {
		e, ok := r.engines[p.Name]
		if !ok {
			if text == "" {
				text = sel.String()
			}
			return nil, &engine.UnknownEngineError{Name: p.Name, Selector: text}
		}
		out[i] = e
	}
	return out, nil
}

// Query parses text and returns its first match under root.
func (r *Registry) Query(root dom.Root, text string) (*html.Node, error) {
	sel, err := ParseSelector(text)
	if err != nil {
		return nil, err
	}
	return r.querySelector(sel, text, root)
}

// QueryAll parses text and returns all its matches under root.
func (r *Registry) QueryAll(root dom.Root, text string) ([]*html.Node, error) {
	sel, err := ParseSelector(text)
	if err != nil {
		return nil, err
	}
	return r.querySelectorAll(sel, text, root)
}

// QuerySelector returns the first match of sel under root. When a part
// captures, the node it matched on the way to the first full match is
// returned instead of the last part's.
func (r *Registry) QuerySelector(sel Selector, root dom.Root) (*html.Node, error) {
	return r.querySelector(sel, "", root)
}

// QuerySelectorAll returns every node matched by the capture part (the last
// one by default) that has a full match of the remaining parts beneath it.
func (r *Registry) QuerySelectorAll(sel Selector, root dom.Root) ([]*html.Node, error) {
	return r.querySelectorAll(sel, "", root)
}

func (r *Registry) querySelector(sel Selector, text string, root dom.Root) (*html.Node, error) {
	engines, err := r.bind(sel, text)
	if err != nil {
		return nil, err
	}
	if !root.Queryable() {
		return nil, engine.ErrNotQueryableRoot
	}
	n, err := resolveOne(root, sel, engines, 0)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("locator: query", "selector", sel.String(), "found", n != nil)
	return n, nil
}

func (r *Registry) querySelectorAll(sel Selector, text string, root dom.Root) ([]*html.Node, error) {
	engines, err := r.bind(sel, text)
	if err != nil {
		return nil, err
	}
	if !root.Queryable() {
		return nil, engine.ErrNotQueryableRoot
	}

	capture := sel.captureIndex()
	scopes := []*html.Node{root.Node}
	for i := 0; i <= capture; i++ {
		var next dom.NodeSet
		for _, scope := range scopes {
			found, err := engines[i].QueryAll(root.At(scope), sel.Parts[i].Body)
			if err != nil {
				return nil, err
			}
			for _, n := range found {
				next.Add(n)
			}
		}
		scopes = next.Nodes()
	}

	rest := Selector{Parts: sel.Parts[capture+1:], Capture: -1}
	out := scopes
	if len(rest.Parts) > 0 {
		out = nil
		for _, n := range scopes {
			m, err := resolveOne(root.At(n), rest, engines[capture+1:], 0)
			if err != nil {
				return nil, err
			}
			if m != nil {
				out = append(out, n)
			}
		}
	}
	r.logger.Debug("locator: query all", "selector", sel.String(), "count", len(out))
	return out, nil
}

func resolveOne(root dom.Root, sel Selector, engines []engine.Engine, i int) (*html.Node, error) {
	part := sel.Parts[i]
	if i == len(sel.Parts)-1 {
		return engines[i].Query(root, part.Body)
	}
	candidates, err := engines[i].QueryAll(root, part.Body)
	if err != nil {
		return nil, err
	}
	for _, next := range candidates {
		m, err := resolveOne(root.At(next), sel, engines, i+1)
		if err != nil {
			return nil, err
		}
		if m != nil {
			if sel.Capture == i {
				return next, nil
			}
			return m, nil
		}
	}
	return nil, nil
}

// CreateSelector asks the named engine for a selector resolving to target
// from root and returns it as "name=body". ok is false when the engine
// cannot produce one.
func (r *Registry) CreateSelector(name string, root dom.Root, target *html.Node, mode engine.Mode) (string, bool, error) {
	name = strings.ToLower(name)
	e, ok := r.Engine(name)
	if !ok {
		return "", false, &engine.UnknownEngineError{Name: name}
	}
	if !root.Queryable() {
		return "", false, engine.ErrNotQueryableRoot
	}
	body, ok := e.Create(root, target, mode)
	r.logger.Debug("locator: create", "engine", name, "mode", mode.String(), "ok", ok)
	if !ok {
		return "", false, nil
	}
	return name + "=" + body, true, nil
}
