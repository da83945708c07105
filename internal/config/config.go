// Package config loads the runtime configuration from an optional YAML file,
// a .env file and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/prt-busca/prt-busca/internal/tools/internetsearch"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigPathEnvVar points at the YAML config file
	ConfigPathEnvVar = "PRT_BUSCA_CONFIG"

	// DataDirEnvVar overrides data_dir
	DataDirEnvVar = "PRT_BUSCA_DATA_DIR"

	// ScreenshotBrowserEnvVar is a DevTools URL of an already running browser
	ScreenshotBrowserEnvVar = "PRT_BUSCA_BROWSER_URL"
)

// Navigation configures the deep navigation stage
type Navigation struct {
	Enabled     bool `yaml:"enabled"`
	MaxPages    int  `yaml:"max_pages"`
	DepthLevels int  `yaml:"depth_levels"`
	Concurrency int  `yaml:"concurrency"`
	// UseReader falls back to the Jina reader for pages that cannot be fetched
	UseReader bool `yaml:"use_reader"`
}

// Social configures the social extraction stage
type Social struct {
	Enabled     bool   `yaml:"enabled"`
	MaxPages    int    `yaml:"max_pages"`
	Screenshots bool   `yaml:"screenshots"`
	BrowserURL  string `yaml:"browser_url"`
}

// Config is the complete runtime configuration
type Config struct {
	DataDir    string                    `yaml:"data_dir"`
	Locale     internetsearch.LocaleHint `yaml:"locale"`
	RateLimit  float64                   `yaml:"rate_limit"`
	Navigation Navigation                `yaml:"navigation"`
	Social     Social                    `yaml:"social"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		DataDir:   filepath.Join(home, ".prt-busca"),
		Locale:    internetsearch.DefaultLocale,
		RateLimit: internetsearch.DefaultInternetSearchRateLimit,
		Navigation: Navigation{
			Enabled:     true,
			MaxPages:    25,
			DepthLevels: 2,
			Concurrency: 4,
		},
		Social: Social{
			Enabled:     true,
			MaxPages:    10,
			Screenshots: false,
		},
	}
}

// Validate checks value ranges
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DataDir, validation.Required),
		validation.Field(&c.RateLimit, validation.Min(0.0)),
		validation.Field(&c.Locale, validation.By(func(any) error {
			return validation.ValidateStruct(&c.Locale,
				validation.Field(&c.Locale.Country, validation.Length(0, 2)),
				validation.Field(&c.Locale.Language, validation.Length(0, 5)),
			)
		})),
		validation.Field(&c.Navigation, validation.By(func(any) error {
			return validation.ValidateStruct(&c.Navigation,
				validation.Field(&c.Navigation.MaxPages, validation.Min(1), validation.Max(500)),
				validation.Field(&c.Navigation.DepthLevels, validation.Min(1), validation.Max(5)),
				validation.Field(&c.Navigation.Concurrency, validation.Min(1), validation.Max(32)),
			)
		})),
		validation.Field(&c.Social, validation.By(func(any) error {
			return validation.ValidateStruct(&c.Social,
				validation.Field(&c.Social.MaxPages, validation.Min(1), validation.Max(100)),
			)
		})),
	)
}

// LookupFunc reads an environment variable
type LookupFunc func(string) (string, bool)

// Load reads .env (if present), then the YAML file at path (or the path in
// PRT_BUSCA_CONFIG), then environment overrides, and validates the result.
// A missing .env is ignored; a missing explicit config file is an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	return LoadWith(path, os.LookupEnv)
}

// LoadWith is Load without the .env step and with an injectable lookup
func LoadWith(path string, lookup LookupFunc) (*Config, error) {
	cfg := Default()

	if path == "" {
		path, _ = lookup(ConfigPathEnvVar)
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	cfg.DataDir = expandHome(cfg.DataDir)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup LookupFunc) error {
	if v, ok := lookup(DataDirEnvVar); ok && strings.TrimSpace(v) != "" {
		c.DataDir = strings.TrimSpace(v)
	}
	if v, ok := lookup(internetsearch.InternetSearchRateLimitEnvVar); ok && strings.TrimSpace(v) != "" {
		rate, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", internetsearch.InternetSearchRateLimitEnvVar, err)
		}
		c.RateLimit = rate
	}
	if v, ok := lookup(ScreenshotBrowserEnvVar); ok && strings.TrimSpace(v) != "" {
		c.Social.BrowserURL = strings.TrimSpace(v)
	}
	return nil
}

// LogDir returns the directory for log files
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// LeadsDBPath returns the lead database path
func (c *Config) LeadsDBPath() string {
	return filepath.Join(c.DataDir, "leads.db")
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
