// Package safeurl refuses URLs that a browser should not be pointed at on a
// caller's behalf: non-HTTP schemes and hosts that resolve to loopback,
// link-local or private addresses.
package safeurl

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// ErrUnsafe is the sentinel every rejection wraps.
var ErrUnsafe = errors.New("safeurl: unsafe URL")

// Resolver resolves host names. *net.Resolver implements it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Checker validates URLs. The zero value uses net.DefaultResolver and
// rejects private addresses.
type Checker struct {
	Resolver     Resolver
	AllowPrivate bool
}

// Check validates raw with the zero Checker.
func Check(ctx context.Context, raw string) error {
	return Checker{}.Check(ctx, raw)
}

// Check returns nil when raw is an http(s) URL whose host does not resolve
// to a private address. An unresolvable host passes; navigation fails later.
func (c Checker) Check(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsafe, err)
	}
	if s := strings.ToLower(u.Scheme); s != "http" && s != "https" {
		return fmt.Errorf("%w: scheme %q", ErrUnsafe, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: no host", ErrUnsafe)
	}
	if c.AllowPrivate {
		return nil
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if private(addr) {
			return fmt.Errorf("%w: %s is a private address", ErrUnsafe, host)
		}
		return nil
	}

	r := c.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	addrs, err := r.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if private(a) {
			return fmt.Errorf("%w: %s resolves to %s", ErrUnsafe, host, a)
		}
	}
	return nil
}

func private(a netip.Addr) bool {
	a = a.Unmap()
	return a.IsLoopback() || a.IsPrivate() || a.IsUnspecified() ||
		a.IsLinkLocalUnicast() || a.IsLinkLocalMulticast()
}
