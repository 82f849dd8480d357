// Package config loads and validates the redmd YAML configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/redmd/redmd/internal/document"
	"github.com/redmd/redmd/internal/journal"
)

// Include selects which issue sub-resources are fetched on every sync.
type Include struct {
	Journals    bool `yaml:"journals"`
	Relations   bool `yaml:"relations"`
	Attachments bool `yaml:"attachments"`
}

// Anchors configures the comment block marker lines.
type Anchors struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Config is the full redmd configuration.
type Config struct {
	BaseURL         string  `yaml:"base_url"`
	APIKey          string  `yaml:"api_key"`
	OutputDir       string  `yaml:"output_dir"`
	Include         Include `yaml:"include"`
	Anchors         Anchors `yaml:"anchors"`
	TrackCommentsBy string  `yaml:"track_comments_by"`
	Concurrency     int     `yaml:"concurrency"`
	PageSize        int     `yaml:"page_size"`
	MaxRetries      int     `yaml:"max_retries"`
	LogLevel        string  `yaml:"log_level"`
	LogFile         string  `yaml:"log_file"`
}

// Default returns the configuration used before any file or flag is applied.
func Default() Config {
	anchors := document.DefaultAnchors()
	return Config{
		OutputDir: "issues",
		Include:   Include{Journals: true, Relations: true, Attachments: true},
		Anchors: Anchors{
			Start: anchors.Start,
			End:   anchors.End,
		},
		TrackCommentsBy: string(journal.TrackByID),
		Concurrency:     4,
		PageSize:        100,
		MaxRetries:      3,
		LogLevel:        "info",
	}
}

// Load reads the YAML config at path on top of the defaults and validates the
// result. Validation failures abort before any sync work begins.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the sync engine cannot work
// with.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("config: base_url is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("config: api_key is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("config: output_dir is required")
	}
	if c.Anchors.Start == "" || c.Anchors.End == "" {
		return fmt.Errorf("config: both comment anchors must be set")
	}
	if c.Anchors.Start == c.Anchors.End {
		return fmt.Errorf("config: comment anchors must differ")
	}
	switch journal.TrackBy(c.TrackCommentsBy) {
	case journal.TrackByID, journal.TrackByCreatedOn:
	default:
		return fmt.Errorf("config: track_comments_by must be %q or %q, got %q",
			journal.TrackByID, journal.TrackByCreatedOn, c.TrackCommentsBy)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("config: concurrency must be at least 1")
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("config: page_size must be between 1 and 100")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("config: max_retries must be at least 1")
	}
	return nil
}

// DocumentAnchors converts the configured anchors to the codec's type.
func (c Config) DocumentAnchors() document.Anchors {
	return document.Anchors{Start: c.Anchors.Start, End: c.Anchors.End}
}
