// Package snapshot loads pages in Chrome through go-rod and turns a
// DOMSnapshot capture into a live dom.Tree whose layout is the browser's.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/domlocator/dom"
	"github.com/hazyhaar/domlocator/safeurl"
)

// ErrClosed is returned once Close has been called.
var ErrClosed = errors.New("snapshot: capturer is closed")

// computedStyles is the order of the per-node style indices in a capture.
var computedStyles = []string{"display", "visibility", "font-size", "font-weight"}

// Capturer owns one browser connection and captures pages through it.
type Capturer struct {
	cfg     Config
	guard   safeurl.Checker
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewCapturer returns a Capturer. The browser starts on Start or on the
// first Load.
func NewCapturer(cfg Config) *Capturer {
	cfg.defaults()
	return &Capturer{cfg: cfg, guard: safeurl.Checker{AllowPrivate: cfg.AllowPrivate}}
}

// Start launches Chrome, or connects to the remote one.
func (c *Capturer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.startLocked(ctx)
	return err
}

func (c *Capturer) startLocked(ctx context.Context) (*rod.Browser, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.browser != nil {
		return c.browser, nil
	}
	log := c.cfg.Logger

	wsURL := c.cfg.Remote
	if wsURL != "" {
		log.Info("snapshot: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().
			Headless(c.cfg.Stealth != StealthHeadful).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("snapshot: launch: %w", err)
		}
		wsURL = u
		c.lnch = l
		log.Info("snapshot: launched local chrome", "url", wsURL, "stealth", c.cfg.Stealth)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		c.cleanupLocked()
		return nil, fmt.Errorf("snapshot: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("snapshot: ignore cert errors failed", "error", err)
	}
	c.browser = b
	return b, nil
}

// Load opens url in a fresh tab, waits for it to load, captures it and
// closes the tab. URLs refused by safeurl are never opened.
func (c *Capturer) Load(ctx context.Context, url string) (*dom.Tree, error) {
	if err := c.guard.Check(ctx, url); err != nil {
		return nil, err
	}
	c.mu.Lock()
	b, err := c.startLocked(ctx)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	log := c.cfg.Logger

	var page *rod.Page
	if c.cfg.Stealth == StealthOff {
		page, err = b.Page(proto.TargetCreateTarget{})
	} else {
		page, err = stealth.Page(b)
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: create tab: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Debug("snapshot: close tab", "error", err)
		}
	}()

	if len(c.cfg.ResourceBlocking) > 0 {
		router, err := blockResources(page, c.cfg.ResourceBlocking)
		if err != nil {
			log.Warn("snapshot: resource blocking failed", "error", err)
		} else {
			defer func() { _ = router.Stop() }()
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	p := page.Context(ctx)

	if err := p.Navigate(url); err != nil {
		return nil, fmt.Errorf("snapshot: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		log.Warn("snapshot: wait load", "url", url, "error", err)
	}

	res, err := proto.DOMSnapshotCaptureSnapshot{ComputedStyles: computedStyles}.Call(p)
	if err != nil {
		return nil, fmt.Errorf("snapshot: capture %s: %w", url, err)
	}
	tree, err := Build(res)
	if err != nil {
		return nil, err
	}
	log.Debug("snapshot: captured", "url", url, "strings", len(res.Strings))
	return tree, nil
}

// Close shuts a launched browser down. A remote browser is left running.
func (c *Capturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.cleanupLocked()
}

func (c *Capturer) cleanupLocked() error {
	var err error
	if c.browser != nil && c.lnch != nil {
		err = c.browser.Close()
	}
	c.browser = nil
	if c.lnch != nil {
		c.lnch.Cleanup()
		c.lnch = nil
	}
	return err
}
