// Package config resolves bongo's configuration from its TOML file,
// environment variables, and CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the full configuration. Durations use TOML strings like "30s".
type Config struct {
	// BaseURL is the API origin, no trailing slash.
	BaseURL string `toml:"base_url"`

	// DataDir holds the refresh token file and the transfer journal.
	DataDir string `toml:"data_dir"`

	// CacheTTL bounds how long a cached folder listing is trusted.
	CacheTTL duration `toml:"cache_ttl"`

	// WatchDebounce is how long a watched file must stay quiet before it
	// is uploaded.
	WatchDebounce duration `toml:"watch_debounce"`

	// JournalRetention bounds how long finished transfer records are kept.
	JournalRetention duration `toml:"journal_retention"`
}

// duration lets TOML express durations as strings like "1m30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}

	d.Duration = parsed

	return nil
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "https://api.bongo-cloud.ga",
		DataDir:          defaultDataDir(),
		CacheTTL:         duration{30 * time.Second},
		WatchDebounce:    duration{2 * time.Second},
		JournalRetention: duration{30 * 24 * time.Hour},
	}
}

// DefaultConfigPath returns the standard config file location, honoring
// XDG conventions through os.UserConfigDir.
func DefaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "bongo", "config.toml")
	}

	return filepath.Join(base, "bongo", "config.toml")
}

func defaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "bongo")
	}

	return filepath.Join(base, "bongo")
}

// TokenPath is where the refresh token lives inside the data directory.
func (c *Config) TokenPath() string {
	return filepath.Join(c.DataDir, "tokens.json")
}

// JournalPath is where the transfer journal database lives.
func (c *Config) JournalPath() string {
	return filepath.Join(c.DataDir, "journal.db")
}

// Validate rejects configurations that cannot work.
func Validate(cfg *Config) error {
	if cfg.BaseURL == "" {
		return fmt.Errorf("base_url must not be empty")
	}

	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return fmt.Errorf("base_url must start with http:// or https://, got %q", cfg.BaseURL)
	}

	if strings.HasSuffix(cfg.BaseURL, "/") {
		return fmt.Errorf("base_url must not end with a slash, got %q", cfg.BaseURL)
	}

	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}

	if cfg.CacheTTL.Duration <= 0 {
		return fmt.Errorf("cache_ttl must be positive, got %s", cfg.CacheTTL.Duration)
	}

	if cfg.WatchDebounce.Duration <= 0 {
		return fmt.Errorf("watch_debounce must be positive, got %s", cfg.WatchDebounce.Duration)
	}

	return nil
}
