// Package shield provides the HTTP middleware stack of the locator daemon:
// security headers, request body limits, request ids and per-client rate
// limiting.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack(cfg) {
//	    r.Use(mw)
//	}
package shield

import (
	"net/http"

	"github.com/hazyhaar/domlocator/idgen"
)

// Config tunes DefaultStack.
type Config struct {
	// MaxBody caps request bodies in bytes. Posted documents can be large.
	MaxBody int64 `yaml:"max_body"`
	// RatePerSecond and Burst bound requests per client IP. Zero disables
	// rate limiting.
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

// DefaultConfig returns a 8 MiB body limit and no rate limit.
func DefaultConfig() Config {
	return Config{MaxBody: 8 << 20}
}

// DefaultStack returns the standard middleware stack.
// Order: HeadToGet → SecurityHeaders → MaxBody → RequestID → RateLimiter.
func DefaultStack(cfg Config) []func(http.Handler) http.Handler {
	stack := []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(cfg.MaxBody),
		RequestID(idgen.Prefixed("req_", idgen.Default)),
	}
	if cfg.RatePerSecond > 0 {
		stack = append(stack, NewRateLimiter(cfg.RatePerSecond, cfg.Burst).Middleware)
	}
	return stack
}
