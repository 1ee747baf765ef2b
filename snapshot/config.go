package snapshot

import (
	"log/slog"
	"time"
)

// Stealth modes.
const (
	StealthOff      = "off"
	StealthHeadless = "headless"
	StealthHeadful  = "headful"
)

// Config configures a Capturer.
type Config struct {
	// Remote is the DevTools WebSocket URL of an external Chrome.
	// Empty launches a local Chrome.
	Remote string `yaml:"remote"`

	// Stealth is off | headless | headful. Headful needs a display.
	Stealth string `yaml:"stealth"`

	// Timeout bounds navigation plus capture of one page.
	Timeout time.Duration `yaml:"timeout"`

	// ResourceBlocking lists resource types not fetched while loading
	// (images, fonts, media, stylesheets).
	ResourceBlocking []string `yaml:"resource_blocking"`

	// AllowPrivate lets Load open loopback and private-network URLs.
	AllowPrivate bool `yaml:"allow_private"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.Stealth == "" {
		c.Stealth = StealthHeadless
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
