package config

// Notes:
// - Name resolution tests chdir into a temp dir, so they do not run in
//   parallel. User config dir lookup is covered via XDG_CONFIG_HOME.

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Tools.Pandoc != "pandoc" {
		t.Errorf("Tools.Pandoc = %q, want pandoc", cfg.Tools.Pandoc)
	}
	if cfg.Tools.Latexmk != "latexmk" {
		t.Errorf("Tools.Latexmk = %q, want latexmk", cfg.Tools.Latexmk)
	}
	if cfg.Assets.Dir != "files" {
		t.Errorf("Assets.Dir = %q, want files", cfg.Assets.Dir)
	}
	if cfg.Build.MaxParallel != 0 {
		t.Errorf("Build.MaxParallel = %d, want 0", cfg.Build.MaxParallel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestValidateFieldLength(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		maxLength int
		wantErr   bool
	}{
		{"empty value is valid", "", 10, false},
		{"value at limit is valid", "1234567890", 10, false},
		{"value over limit returns error", "12345678901", 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFieldLength("test.field", tt.value, tt.maxLength)
			if !tt.wantErr {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrFieldTooLong) {
				t.Fatalf("error = %v, want ErrFieldTooLong", err)
			}
			if !strings.Contains(err.Error(), "test.field") {
				t.Errorf("error should name the field, got %q", err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestConfig_Validate - Value checks
// ---------------------------------------------------------------------------

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"defaults", func(c *Config) {}, nil},
		{"nested assets dir", func(c *Config) { c.Assets.Dir = "static/images" }, nil},
		{"absolute assets dir", func(c *Config) { c.Assets.Dir = "/tmp/images" }, ErrInvalidValue},
		{"escaping assets dir", func(c *Config) { c.Assets.Dir = "../images" }, ErrInvalidValue},
		{"max parallel at limit", func(c *Config) { c.Build.MaxParallel = MaxParallelLimit }, nil},
		{"negative max parallel", func(c *Config) { c.Build.MaxParallel = -1 }, ErrInvalidValue},
		{"max parallel over limit", func(c *Config) { c.Build.MaxParallel = MaxParallelLimit + 1 }, ErrInvalidValue},
		{"valid timeout", func(c *Config) { c.Fetch.Timeout = "90s" }, nil},
		{"unparsable timeout", func(c *Config) { c.Fetch.Timeout = "soon" }, ErrInvalidValue},
		{"zero timeout", func(c *Config) { c.Fetch.Timeout = "0s" }, ErrInvalidValue},
		{"long binary", func(c *Config) { c.Tools.Pandoc = strings.Repeat("p", MaxBinaryLength+1) }, ErrFieldTooLong},
		{"long templates path", func(c *Config) { c.Templates.Path = strings.Repeat("t", MaxPathLength+1) }, ErrFieldTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_FetchTimeout(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if got := cfg.FetchTimeout(); got != 0 {
		t.Errorf("FetchTimeout() unset = %v, want 0", got)
	}
	cfg.Fetch.Timeout = "2m"
	if got := cfg.FetchTimeout(); got != 2*time.Minute {
		t.Errorf("FetchTimeout() = %v, want 2m", got)
	}
}

// ---------------------------------------------------------------------------
// TestLoadConfig - File loading
// ---------------------------------------------------------------------------

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return p
}

func TestLoadConfig(t *testing.T) {
	t.Run("empty name returns ErrEmptyConfigName", func(t *testing.T) {
		_, err := LoadConfig("")
		if !errors.Is(err, ErrEmptyConfigName) {
			t.Errorf("error = %v, want ErrEmptyConfigName", err)
		}
	})

	t.Run("file path loads and keeps defaults", func(t *testing.T) {
		p := writeConfig(t, t.TempDir(), "export.yaml", `tools:
  latexmk: /opt/tex/bin/latexmk
build:
  maxParallel: 4
  keepTemp: true
fetch:
  timeout: 45s
`)
		cfg, err := LoadConfig(p)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Tools.Latexmk != "/opt/tex/bin/latexmk" {
			t.Errorf("Tools.Latexmk = %q", cfg.Tools.Latexmk)
		}
		if cfg.Tools.Pandoc != "pandoc" {
			t.Errorf("Tools.Pandoc = %q, want default pandoc", cfg.Tools.Pandoc)
		}
		if cfg.Build.MaxParallel != 4 || !cfg.Build.KeepTemp {
			t.Errorf("Build = %+v", cfg.Build)
		}
		if cfg.FetchTimeout() != 45*time.Second {
			t.Errorf("FetchTimeout() = %v", cfg.FetchTimeout())
		}
	})

	t.Run("unknown field returns ErrConfigParse", func(t *testing.T) {
		p := writeConfig(t, t.TempDir(), "bad.yaml", "style: default\n")
		_, err := LoadConfig(p)
		if !errors.Is(err, ErrConfigParse) {
			t.Errorf("error = %v, want ErrConfigParse", err)
		}
	})

	t.Run("invalid value fails validation", func(t *testing.T) {
		p := writeConfig(t, t.TempDir(), "bad.yaml", "build:\n  maxParallel: -3\n")
		_, err := LoadConfig(p)
		if !errors.Is(err, ErrInvalidValue) {
			t.Errorf("error = %v, want ErrInvalidValue", err)
		}
	})

	t.Run("nonexistent file path returns ErrConfigNotFound", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("error = %v, want ErrConfigNotFound", err)
		}
	})
}

func TestLoadConfig_ByName(t *testing.T) {
	chdir := func(t *testing.T, dir string) {
		t.Helper()
		originalWd, err := os.Getwd()
		if err != nil {
			t.Fatalf("failed to get working directory: %v", err)
		}
		if err := os.Chdir(dir); err != nil {
			t.Fatalf("chdir: %v", err)
		}
		t.Cleanup(func() { _ = os.Chdir(originalWd) })
	}

	t.Run("resolves yaml in current directory", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "paper.yaml", "assets:\n  dir: figures\n")
		chdir(t, dir)

		cfg, err := LoadConfig("paper")
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Assets.Dir != "figures" {
			t.Errorf("Assets.Dir = %q, want figures", cfg.Assets.Dir)
		}
	})

	t.Run("resolves yml when yaml not found", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "paper.yml", "assets:\n  simple: true\n")
		chdir(t, dir)

		cfg, err := LoadConfig("paper")
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if !cfg.Assets.Simple {
			t.Error("Assets.Simple = false, want true")
		}
	})

	t.Run("resolves user config dir", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", home)
		t.Setenv("HOME", home)
		userDir, err := os.UserConfigDir()
		if err != nil {
			t.Skipf("no user config dir: %v", err)
		}
		if err := os.MkdirAll(filepath.Join(userDir, AppDir), 0o755); err != nil {
			t.Fatal(err)
		}
		writeConfig(t, filepath.Join(userDir, AppDir), "global.yaml", "templates:\n  path: /srv/templates\n")
		chdir(t, t.TempDir())

		cfg, err := LoadConfig("global")
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Templates.Path != "/srv/templates" {
			t.Errorf("Templates.Path = %q", cfg.Templates.Path)
		}
	})

	t.Run("lists tried paths when missing", func(t *testing.T) {
		chdir(t, t.TempDir())

		_, err := LoadConfig("nowhere")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("error = %v, want ErrConfigNotFound", err)
		}
		if !strings.Contains(err.Error(), "nowhere.yaml") {
			t.Errorf("error should list tried paths, got %q", err)
		}
	})
}
