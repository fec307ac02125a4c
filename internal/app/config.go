package app

import (
	"errors"
	"fmt"
	"slices"
)

// Config holds everything an App needs to run, after CLI parsing.
type Config struct {
	ItemsPath string
	// ConfigPaths are .hcl/.json load files or directories of .hcl files.
	ConfigPaths []string
	// StacCfgPath is an optional YAML collection configuration.
	StacCfgPath string
	// OutDir receives TIFF previews; empty disables them.
	OutDir      string
	PreviewSize int

	// Command line overrides; zero values defer to the config files.
	Executor   string
	Workers    int
	Bands      []string
	CRS        string
	Resolution float64
	GroupBy    string

	MetadataOnly bool
	Progress     bool

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

// DefaultPreviewSize bounds the longer edge of preview images.
const DefaultPreviewSize = 1024

// NewConfig validates cfg and fills defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ItemsPath == "" {
		return nil, errors.New("ItemsPath is a required configuration field and cannot be empty")
	}
	if cfg.Executor != "" && !slices.Contains([]string{"local", "graph"}, cfg.Executor) {
		return nil, fmt.Errorf("invalid executor %q: must be 'local' or 'graph'", cfg.Executor)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("invalid workers %d: must not be negative", cfg.Workers)
	}
	if cfg.Resolution < 0 {
		return nil, fmt.Errorf("invalid resolution %g: must be positive", cfg.Resolution)
	}
	if cfg.PreviewSize < 0 {
		return nil, fmt.Errorf("invalid preview size %d: must not be negative", cfg.PreviewSize)
	}
	if cfg.PreviewSize == 0 {
		cfg.PreviewSize = DefaultPreviewSize
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort)
	}
	return &cfg, nil
}
