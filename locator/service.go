package locator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domlocator/dom"
	"github.com/hazyhaar/domlocator/engine"
	"github.com/hazyhaar/domlocator/engine/zs"
	"github.com/hazyhaar/domlocator/idgen"
	"github.com/hazyhaar/domlocator/kit"
	"github.com/hazyhaar/domlocator/poll"
)

var (
	// ErrNoPageLoader is returned for a URL request on a service without a
	// page loader.
	ErrNoPageLoader = errors.New("locator: no page loader configured")
	// ErrNoSource is returned when a request carries neither html nor url.
	ErrNoSource = errors.New("locator: html or url required")
	// ErrTargetNotFound is returned when a create target matches nothing.
	ErrTargetNotFound = errors.New("locator: target not found")
)

// AllEngines as CreateRequest.Engine asks every registered engine.
const AllEngines = "*"

const previewLen = 200

// PageLoader loads a live page. *snapshot.Capturer implements it.
type PageLoader interface {
	Load(ctx context.Context, url string) (*dom.Tree, error)
}

// Source is the document a request runs against: inline markup, or a URL
// fetched through the page loader.
type Source struct {
	HTML string `json:"html,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Match describes a matched element.
type Match struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
	HTML string `json:"html"`
}

type QueryRequest struct {
	Source
	Selector string `json:"selector"`
	All      bool   `json:"all,omitempty"`
}

type QueryResponse struct {
	Count   int     `json:"count"`
	Matches []Match `json:"matches"`
}

type CreateRequest struct {
	Source
	// Target is a compound selector locating the element to describe.
	Target string `json:"target"`
	// Engine defaults to zs; AllEngines asks every engine.
	Engine string `json:"engine,omitempty"`
	// Mode is "default" or "notext".
	Mode string `json:"mode,omitempty"`
}

// Created is one synthesized selector.
type Created struct {
	Engine   string `json:"engine"`
	Selector string `json:"selector"`
}

type CreateResponse struct {
	Target    Match     `json:"target"`
	Selectors []Created `json:"selectors"`
}

type WaitRequest struct {
	Source
	Selector string `json:"selector"`
	// State is attached (default), detached, visible or hidden.
	State string `json:"state,omitempty"`
}

type WaitResponse struct {
	Match *Match   `json:"match,omitempty"`
	Logs  []string `json:"logs,omitempty"`
}

type EnginesResponse struct {
	Engines []string `json:"engines"`
}

// Service is the locator facade shared by the MCP and HTTP surfaces.
type Service struct {
	reg    *Registry
	loader PageLoader
	cfg    *Config
	logger *slog.Logger

	query   kit.Endpoint
	create  kit.Endpoint
	wait    kit.Endpoint
	engines kit.Endpoint
}

// NewService builds a service. loader may be nil, in which case only inline
// markup is accepted.
func NewService(reg *Registry, cfg *Config, loader PageLoader, logger *slog.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{reg: reg, loader: loader, cfg: cfg, logger: logger}

	wrap := func(op string, ep kit.Endpoint, timeout bool) kit.Endpoint {
		mws := []kit.Middleware{
			kit.RequestID(idgen.Prefixed("req_", idgen.Default)),
			kit.Logging(logger, op),
			kit.Recovery(logger),
		}
		if timeout {
			mws = append(mws, kit.Timeout(cfg.Browser.Timeout+cfg.Poll.Timeout))
		}
		return kit.Chain(mws...)(ep)
	}
	s.query = wrap("locator_query", func(ctx context.Context, req any) (any, error) {
		return s.Query(ctx, req.(*QueryRequest))
	}, true)
	s.create = wrap("locator_create", func(ctx context.Context, req any) (any, error) {
		return s.Create(ctx, req.(*CreateRequest))
	}, true)
	s.wait = wrap("locator_wait", func(ctx context.Context, req any) (any, error) {
		return s.Wait(ctx, req.(*WaitRequest))
	}, true)
	s.engines = wrap("locator_engines", func(ctx context.Context, _ any) (any, error) {
		return s.Engines(ctx)
	}, false)
	return s
}

// Registry returns the engine registry.
func (s *Service) Registry() *Registry { return s.reg }

func (s *Service) load(ctx context.Context, src Source) (*dom.Tree, error) {
	switch {
	case src.HTML != "":
		return dom.ParseString(src.HTML)
	case src.URL != "":
		if s.loader == nil {
			return nil, ErrNoPageLoader
		}
		return s.loader.Load(ctx, src.URL)
	}
	return nil, ErrNoSource
}

func (s *Service) match(t *dom.Tree, n *html.Node) Match {
	return Match{
		Tag:  dom.NodeName(n),
		Text: dom.Truncate(dom.NormalizeSpace(t.Text(n, true)), previewLen),
		HTML: dom.Truncate(dom.OuterHTML(n), previewLen),
	}
}

// Query resolves a compound selector.
func (s *Service) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	tree, err := s.load(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	var nodes []*html.Node
	if req.All {
		nodes, err = s.reg.QueryAll(tree.Root(), req.Selector)
	} else {
		var n *html.Node
		n, err = s.reg.Query(tree.Root(), req.Selector)
		if n != nil {
			nodes = []*html.Node{n}
		}
	}
	if err != nil {
		return nil, err
	}
	resp := &QueryResponse{Count: len(nodes), Matches: make([]Match, 0, len(nodes))}
	for _, n := range nodes {
		resp.Matches = append(resp.Matches, s.match(tree, n))
	}
	return resp, nil
}

// Create locates the target and synthesizes selectors for it. Engines that
// cannot describe the target are left out of the response.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*CreateResponse, error) {
	tree, err := s.load(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	root := tree.Root()
	target, err := s.reg.Query(root, req.Target)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, req.Target)
	}

	names := []string{req.Engine}
	switch req.Engine {
	case "":
		names[0] = zs.Name
	case AllEngines:
		names = s.reg.Names()
	}
	mode := engine.ParseMode(req.Mode)

	resp := &CreateResponse{Target: s.match(tree, target), Selectors: []Created{}}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sel, ok, err := s.reg.CreateSelector(name, root, target, mode)
		if err != nil {
			return nil, err
		}
		if ok {
			resp.Selectors = append(resp.Selectors, Created{Engine: name, Selector: sel})
		}
	}
	return resp, nil
}

// Wait polls until the selector reaches the requested state. URL sources are
// reloaded on every evaluation.
func (s *Service) Wait(ctx context.Context, req *WaitRequest) (*WaitResponse, error) {
	state, err := ParseWaitState(req.State)
	if err != nil {
		return nil, err
	}
	var src RootSource
	var static *dom.Tree
	interval := s.cfg.Poll.Interval
	switch {
	case req.HTML != "":
		if static, err = dom.ParseString(req.HTML); err != nil {
			return nil, err
		}
		src = StaticRoot(static.Root())
	case req.URL != "":
		if s.loader == nil {
			return nil, ErrNoPageLoader
		}
		src = s.latest(PageSource(s.loader, req.URL), &static)
		if interval <= 0 {
			interval = s.cfg.Poll.PageInterval
		}
	default:
		return nil, ErrNoSource
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Poll.Timeout)
	defer cancel()
	p := s.reg.Wait(ctx, src, req.Selector, state, interval,
		poll.WithLogBuffer(s.cfg.Poll.LogBuffer), poll.WithLogger(s.logger))
	defer p.Cancel()

	n, err := p.Result(ctx)
	if err != nil {
		return nil, fmt.Errorf("locator: wait for %q: %w", req.Selector, err)
	}
	resp := &WaitResponse{Logs: p.TakeLogs()}
	if n != nil {
		m := s.match(static, n)
		resp.Match = &m
	}
	return resp, nil
}

// latest records the last tree src produced in *dst.
func (s *Service) latest(src RootSource, dst **dom.Tree) RootSource {
	return func(ctx context.Context) (dom.Root, error) {
		root, err := src(ctx)
		if err == nil {
			*dst = root.Tree
		}
		return root, err
	}
}

// Engines lists the registered engine names.
func (s *Service) Engines(context.Context) (*EnginesResponse, error) {
	return &EnginesResponse{Engines: s.reg.Names()}, nil
}
