package locator

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/domlocator/engine/zs"
	"github.com/hazyhaar/domlocator/shield"
	"github.com/hazyhaar/domlocator/snapshot"
)

// Config is the locator daemon configuration.
type Config struct {
	// Attributes served by attribute engines. Empty means DefaultAttributes.
	Attributes []string        `yaml:"attributes"`
	Heuristic  zs.Options      `yaml:"heuristic"`
	Poll       PollConfig      `yaml:"poll"`
	Browser    snapshot.Config `yaml:"browser"`
	Server     ServerConfig    `yaml:"server"`
}

// ServerConfig configures the daemon's HTTP listener.
type ServerConfig struct {
	Addr          string `yaml:"addr"`
	shield.Config `yaml:",inline"`
}

// PollConfig tunes Wait.
type PollConfig struct {
	// Interval between evaluations; zero polls once per frame.
	Interval time.Duration `yaml:"interval"`
	// PageInterval paces waits on a URL, where every evaluation loads the
	// page again. It applies when Interval is zero.
	PageInterval time.Duration `yaml:"page_interval"`
	LogBuffer    int           `yaml:"log_buffer"`
	Timeout      time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	c := &Config{Heuristic: zs.DefaultOptions()}
	c.applyDefaults()
	return c
}

// LoadConfigFile reads a YAML configuration file. Keys missing from the file
// keep their default values.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("locator: read config: %w", err)
	}
	cfg := &Config{Heuristic: zs.DefaultOptions()}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("locator: parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.Attributes) == 0 {
		c.Attributes = append([]string(nil), DefaultAttributes...)
	}
	if c.Heuristic.GenericTagScore <= 0 {
		c.Heuristic.GenericTagScore = zs.DefaultOptions().GenericTagScore
	}
	if c.Poll.Interval < 0 {
		c.Poll.Interval = 0
	}
	if c.Poll.PageInterval <= 0 {
		c.Poll.PageInterval = 500 * time.Millisecond
	}
	if c.Poll.LogBuffer <= 0 {
		c.Poll.LogBuffer = 64
	}
	if c.Poll.Timeout <= 0 {
		c.Poll.Timeout = 30 * time.Second
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8090"
	}
	if c.Server.MaxBody <= 0 {
		c.Server.MaxBody = shield.DefaultConfig().MaxBody
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = snapshot.StealthHeadless
	}
	if c.Browser.Timeout <= 0 {
		c.Browser.Timeout = 30 * time.Second
	}
}
