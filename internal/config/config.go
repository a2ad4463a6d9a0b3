// Package config loads docexport configuration files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-docexport/internal/fileutil"
	"github.com/alnah/go-docexport/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// AppDir is the directory under the user config dir searched for configs.
const AppDir = "go-docexport"

// Field length limits.
const (
	MaxPathLength     = 4096
	MaxBinaryLength   = 255
	MaxDurationLength = 20
	MaxParallelLimit  = 256
)

// Config holds all configuration for exports.
type Config struct {
	Tools     ToolsConfig     `yaml:"tools"`
	Templates TemplatesConfig `yaml:"templates"`
	Assets    AssetsConfig    `yaml:"assets"`
	Build     BuildConfig     `yaml:"build"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ToolsConfig names the renderer binaries (looked up in PATH when bare).
type ToolsConfig struct {
	Pandoc   string `yaml:"pandoc"`
	Latexmk  string `yaml:"latexmk"`
	Inkscape string `yaml:"inkscape"`
	Magick   string `yaml:"magick"`
}

// TemplatesConfig defines where custom templates live.
type TemplatesConfig struct {
	Path string `yaml:"path"` // Empty = built-in templates only
}

// AssetsConfig defines how document images are written.
type AssetsConfig struct {
	Dir    string `yaml:"dir"`    // Folder inside the build folder (default: "files")
	Simple bool   `yaml:"simple"` // Always use content-addressed names
}

// BuildConfig defines scheduling and scratch space.
type BuildConfig struct {
	TempDir     string `yaml:"tempDir"`     // Empty = system temp dir
	MaxParallel int    `yaml:"maxParallel"` // 0 = unbounded
	KeepTemp    bool   `yaml:"keepTemp"`    // Keep intermediates of every target
}

// FetchConfig defines remote asset fetching.
type FetchConfig struct {
	Timeout string `yaml:"timeout"` // Go duration, e.g. "30s" (empty = default)
}

// MetricsConfig defines metrics output.
type MetricsConfig struct {
	File string `yaml:"file"` // Prometheus textfile written after each run
}

// FetchTimeout returns the parsed fetch timeout, zero when unset.
func (c *Config) FetchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Fetch.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// Validate checks field lengths and values.
// Called automatically by LoadConfig, but available for consumers
// who construct Config manually.
func (c *Config) Validate() error {
	for _, f := range []struct {
		name, value string
		max         int
	}{
		{"tools.pandoc", c.Tools.Pandoc, MaxBinaryLength},
		{"tools.latexmk", c.Tools.Latexmk, MaxBinaryLength},
		{"tools.inkscape", c.Tools.Inkscape, MaxBinaryLength},
		{"tools.magick", c.Tools.Magick, MaxBinaryLength},
		{"templates.path", c.Templates.Path, MaxPathLength},
		{"assets.dir", c.Assets.Dir, MaxPathLength},
		{"build.tempDir", c.Build.TempDir, MaxPathLength},
		{"fetch.timeout", c.Fetch.Timeout, MaxDurationLength},
		{"metrics.file", c.Metrics.File, MaxPathLength},
	} {
		if err := validateFieldLength(f.name, f.value, f.max); err != nil {
			return err
		}
	}

	if c.Assets.Dir != "" {
		if filepath.IsAbs(c.Assets.Dir) || strings.Contains(filepath.ToSlash(c.Assets.Dir), "..") {
			return fmt.Errorf("%w: assets.dir: must be relative to the build folder, got %q", ErrInvalidValue, c.Assets.Dir)
		}
	}

	if c.Build.MaxParallel < 0 || c.Build.MaxParallel > MaxParallelLimit {
		return fmt.Errorf("%w: build.maxParallel: must be between 0 and %d, got %d", ErrInvalidValue, MaxParallelLimit, c.Build.MaxParallel)
	}

	if c.Fetch.Timeout != "" {
		d, err := time.ParseDuration(c.Fetch.Timeout)
		if err != nil {
			return fmt.Errorf("%w: fetch.timeout: %v", ErrInvalidValue, err)
		}
		if d <= 0 {
			return fmt.Errorf("%w: fetch.timeout: must be positive, got %s", ErrInvalidValue, d)
		}
	}

	return nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Tools: ToolsConfig{
			Pandoc:   "pandoc",
			Latexmk:  "latexmk",
			Inkscape: "inkscape",
			Magick:   "magick",
		},
		Assets: AssetsConfig{Dir: "files"},
	}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Unset fields keep their DefaultConfig values.
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if fileutil.IsFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yamlutil.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, ~/.config/go-docexport/
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	triedPaths := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		localPath := name + ext
		if fileutil.FileExists(localPath) {
			return localPath, nil
		}
		triedPaths = append(triedPaths, localPath)
	}

	userConfigDir, err := os.UserConfigDir()
	if err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(userConfigDir, AppDir, name+ext)
			if fileutil.FileExists(userPath) {
				return userPath, nil
			}
			triedPaths = append(triedPaths, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(triedPaths, ", "))
}
