// Package config loads the softdev configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/softdev/internal/index"
	"github.com/HendryAvila/softdev/internal/scanner"
	"github.com/HendryAvila/softdev/internal/softdev"
)

// FileName is the configuration file looked up in the data directory.
const FileName = "config.yaml"

// Config is the complete softdev configuration.
type Config struct {
	// DataDir holds one directory per project. A leading ~ is expanded.
	DataDir  string      `yaml:"data_dir"`
	LogLevel string      `yaml:"log_level"`
	Scan     ScanConfig  `yaml:"scan"`
	Watch    WatchConfig `yaml:"watch"`
}

// ScanConfig holds analysis defaults applied to every project.
type ScanConfig struct {
	// ExcludeDirs and ExcludePatterns extend the built-in exclusions.
	ExcludeDirs      []string `yaml:"exclude_dirs"`
	ExcludePatterns  []string `yaml:"exclude_patterns"`
	RespectGitignore bool     `yaml:"respect_gitignore"`
	MaxFileSize      int64    `yaml:"max_file_size"`
	// Depth is one of structure, signatures, relationships or full.
	Depth string `yaml:"depth"`
}

// WatchConfig configures live re-indexing.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// DefaultConfig returns a Config with the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:  "~/.softdev",
		LogLevel: "info",
		Scan: ScanConfig{
			MaxFileSize: scanner.DefaultMaxFileSize,
			Depth:       "full",
		},
		Watch: WatchConfig{
			Debounce: scanner.DefaultDebounce,
		},
	}
}

// DefaultPath returns the configuration file inside the default data
// directory.
func DefaultPath() string {
	return filepath.Join(ExpandHome(DefaultConfig().DataDir), FileName)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := softdev.ParseDepth(c.Scan.Depth); err != nil {
		return fmt.Errorf("scan.depth: %w", err)
	}
	if c.Scan.MaxFileSize < 0 {
		return fmt.Errorf("scan.max_file_size must not be negative")
	}
	for _, p := range c.Scan.ExcludePatterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("scan.exclude_patterns: invalid pattern %q", p)
		}
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file. Keys missing from the
// file keep their default values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Load reads path, or the default location when path is empty. A missing
// file yields the defaults. The result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg, err := LoadFromFile(ExpandHome(path))
	if errors.Is(err, fs.ErrNotExist) {
		cfg = DefaultConfig()
	} else if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

// ServiceConfig converts the file settings into a softdev.Config.
func (c *Config) ServiceConfig(logger *slog.Logger) (softdev.Config, error) {
	depth, err := softdev.ParseDepth(c.Scan.Depth)
	if err != nil {
		return softdev.Config{}, err
	}
	idx := index.DefaultConfig()
	idx.DataDir = ExpandHome(c.DataDir)
	return softdev.Config{
		Index: idx,
		Scan: softdev.ScanDefaults{
			ExcludeDirs:      c.Scan.ExcludeDirs,
			ExcludePatterns:  c.Scan.ExcludePatterns,
			RespectGitignore: c.Scan.RespectGitignore,
			MaxFileSize:      c.Scan.MaxFileSize,
			Depth:            depth,
		},
		WatchDebounce: c.Watch.Debounce,
		Logger:        logger,
	}, nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log_level %q: want debug, info, warn or error", s)
}
