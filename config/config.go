package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Skryldev/imageprep/core"
)

// Backend selects the codec backend.
type Backend string

const (
	BackendNative Backend = "native"
	BackendVips   Backend = "vips"
)

// Config is the top-level configuration struct.  Start from Default() and
// override only what you need.
type Config struct {
	// Defaults applied when callers pass no per-call policy or options.
	Validation core.ValidationPolicy  `yaml:"validation"`
	Processing core.ProcessingOptions `yaml:"processing"`

	Batch   BatchConfig   `yaml:"batch"`
	Preview PreviewConfig `yaml:"preview"`

	Backend Backend `yaml:"backend"`

	// Reading sources from readers.
	MaxImageBytes int64 `yaml:"max_image_bytes"` // 0 = no limit
	ChunkSize     int   `yaml:"chunk_size"`      // default 32 KiB

	LogLevel string `yaml:"log_level"` // "debug", "info", "warn", "error"
}

// BatchConfig controls the batch orchestrator.
type BatchConfig struct {
	Concurrency    int           `yaml:"concurrency"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
}

// PreviewConfig controls preview handles and the bounded registry.
type PreviewConfig struct {
	Capacity    int           `yaml:"capacity"`
	AutoRevoke  bool          `yaml:"auto_revoke"`
	RevokeDelay time.Duration `yaml:"revoke_delay"`
	BaseURL     string        `yaml:"base_url"`
}

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		Validation: core.DefaultValidationPolicy(),
		Processing: core.DefaultProcessingOptions(),
		Batch: BatchConfig{
			Concurrency:    3,
			MaxRetries:     3,
			RetryBaseDelay: time.Second,
		},
		Preview: PreviewConfig{
			Capacity:    50,
			AutoRevoke:  true,
			RevokeDelay: 5 * time.Minute,
			BaseURL:     "blob:imageprep/",
		},
		Backend:   BackendNative,
		ChunkSize: 32 * 1024,
		LogLevel:  "info",
	}
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if q := c.Processing.Quality; q < 0 || q > 1 {
		return errors.New("config: processing.quality must be between 0 and 1")
	}
	if c.Processing.MaxWidth <= 0 || c.Processing.MaxHeight <= 0 {
		return errors.New("config: processing.max_width and max_height must be positive")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: chunk_size must be positive")
	}
	if c.Batch.Concurrency <= 0 {
		return errors.New("config: batch.concurrency must be positive")
	}
	if c.Batch.MaxRetries < 1 {
		return errors.New("config: batch.max_retries must be at least 1")
	}
	if c.Preview.Capacity <= 0 {
		return errors.New("config: preview.capacity must be positive")
	}
	if c.Preview.AutoRevoke && c.Preview.RevokeDelay <= 0 {
		return errors.New("config: preview.revoke_delay must be positive when auto_revoke is on")
	}
	if c.Validation.MinSize > 0 && c.Validation.MaxSize > 0 && c.Validation.MinSize > c.Validation.MaxSize {
		return errors.New("config: validation.min_size exceeds max_size")
	}
	for _, r := range c.Validation.AspectRatioRanges {
		if r.Min > r.Max {
			return fmt.Errorf("config: aspect ratio range [%g, %g] is inverted", r.Min, r.Max)
		}
	}
	switch c.Backend {
	case BackendNative, BackendVips:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	return nil
}

// Load reads a YAML file over the defaults.  Keys absent from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, Validate(cfg)
}

// ApplyEnv overrides fields from IMAGEPREP_* environment variables.
func ApplyEnv(c *Config) error {
	if v := os.Getenv("IMAGEPREP_LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("IMAGEPREP_BACKEND"); v != "" {
		c.Backend = Backend(strings.ToLower(v))
	}
	if v := os.Getenv("IMAGEPREP_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: IMAGEPREP_CONCURRENCY: %w", err)
		}
		c.Batch.Concurrency = n
	}
	if v := os.Getenv("IMAGEPREP_PREVIEW_BASE_URL"); v != "" {
		c.Preview.BaseURL = v
	}
	return nil
}
