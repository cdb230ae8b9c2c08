package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ippclub/pipstat/pkg/retry"
)

type Config struct {
	Index     Index        `yaml:"index"`
	RateLimit RateLimit    `yaml:"rate_limit"`
	Retry     retry.Config `yaml:"retry"`
	Display   Display      `yaml:"display"`
	Log       Log          `yaml:"log"`
}

type Index struct {
	URL       string        `yaml:"url"`
	Protocol  string        `yaml:"protocol"` // json, xmlrpc
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type Display struct {
	Width         int    `yaml:"width"` // 0 probes the terminal
	Tick          string `yaml:"tick"`
	Margin        int    `yaml:"margin"`
	MaxLabelWidth int    `yaml:"max_label_width"`
	DateFormat    string `yaml:"date_format"` // Go time layout
	Color         string `yaml:"color"`       // auto, always, never
	Output        string `yaml:"output"`      // text, json
}

type Log struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Filename   string `yaml:"filename"`    // log file path, empty logs to stderr only
	MaxSize    int    `yaml:"max_size"`    // megabytes
	MaxBackups int    `yaml:"max_backups"` // number of backups
	MaxAge     int    `yaml:"max_age"`     // days
	Compress   bool   `yaml:"compress"`    // compress rotated files
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Index: Index{
			URL:       "https://pypi.org/pypi",
			Protocol:  "json",
			Timeout:   30 * time.Second,
			UserAgent: "pipstat",
		},
		RateLimit: RateLimit{
			RPS:   5,
			Burst: 1,
		},
		Retry: retry.DefaultConfig(),
		Display: Display{
			Tick:          "*",
			Margin:        5,
			MaxLabelWidth: 20,
			DateFormat:    "06/01/02",
			Color:         "auto",
			Output:        "text",
		},
		Log: Log{
			Level:      "warn",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		},
	}
}

// LoadFromFile loads the configuration from the specified file on top of
// the defaults. An empty path returns the defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be fixed up silently.
func (c *Config) Validate() error {
	switch c.Index.Protocol {
	case "json", "xmlrpc":
	default:
		return fmt.Errorf("invalid index protocol %q: must be json or xmlrpc", c.Index.Protocol)
	}
	switch c.Display.Output {
	case "text", "json":
	default:
		return fmt.Errorf("invalid output %q: must be text or json", c.Display.Output)
	}
	switch c.Display.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("invalid color mode %q: must be auto, always or never", c.Display.Color)
	}
	if c.Display.Width < 0 {
		return fmt.Errorf("invalid display width %d", c.Display.Width)
	}
	if c.Display.Tick == "" {
		return fmt.Errorf("display tick must not be empty")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1")
	}
	return nil
}
