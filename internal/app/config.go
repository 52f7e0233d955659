package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vk/jsonshape/internal/format"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ViewsPath string // directory of .hcl templates

	Format           string
	Indent           int
	IncludeRoot      bool
	IncludeChildRoot bool

	CacheSize       int // compiled templates
	RenderCacheSize int // rendered results of `cache` templates

	LogFormat string
	LogLevel  string
	Watch     bool
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ViewsPath == "" {
		return nil, errors.New("ViewsPath is a required configuration field and cannot be empty")
	}

	if cfg.Format == "" {
		cfg.Format = "json"
	}
	cfg.Format = strings.ToLower(cfg.Format)
	if _, err := format.Lookup(cfg.Format, cfg.Indent); err != nil {
		return nil, err
	}

	if cfg.CacheSize < 0 {
		return nil, fmt.Errorf("CacheSize must not be negative, got %d", cfg.CacheSize)
	}
	if cfg.RenderCacheSize < 0 {
		return nil, fmt.Errorf("RenderCacheSize must not be negative, got %d", cfg.RenderCacheSize)
	}

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	switch cfg.LogFormat {
	case "":
		cfg.LogFormat = "text"
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid LogFormat %q: must be 'text' or 'json'", cfg.LogFormat)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "":
		cfg.LogLevel = "info"
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid LogLevel %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}

	return &cfg, nil
}
