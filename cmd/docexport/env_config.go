package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alnah/go-docexport/internal/config"
)

// envPrefix marks the environment variables read by the CLI.
const envPrefix = "DOCEXPORT_"

// envConfig holds configuration from environment variables.
// Provides CI/CD-friendly overrides without requiring YAML files.
type envConfig struct {
	ConfigPath string // DOCEXPORT_CONFIG: config file name or path
	Templates  string // DOCEXPORT_TEMPLATES: custom template directory
	TempDir    string // DOCEXPORT_TEMP_DIR: scratch space parent
	Pandoc     string // DOCEXPORT_PANDOC: pandoc binary
	Latexmk    string // DOCEXPORT_LATEXMK: latexmk binary
	Workers    int    // DOCEXPORT_WORKERS: targets run at once
}

// knownEnvVars lists valid DOCEXPORT_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"DOCEXPORT_CONFIG":    true,
	"DOCEXPORT_TEMPLATES": true,
	"DOCEXPORT_TEMP_DIR":  true,
	"DOCEXPORT_PANDOC":    true,
	"DOCEXPORT_LATEXMK":   true,
	"DOCEXPORT_WORKERS":   true,
}

// loadEnvConfig reads configuration from environment variables.
func loadEnvConfig(getenv func(string) string) *envConfig {
	cfg := &envConfig{
		ConfigPath: getenv("DOCEXPORT_CONFIG"),
		Templates:  getenv("DOCEXPORT_TEMPLATES"),
		TempDir:    getenv("DOCEXPORT_TEMP_DIR"),
		Pandoc:     getenv("DOCEXPORT_PANDOC"),
		Latexmk:    getenv("DOCEXPORT_LATEXMK"),
	}
	if workers := getenv("DOCEXPORT_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil && w > 0 {
			cfg.Workers = w
		}
	}
	return cfg
}

// warnUnknownEnvVars logs warnings for unrecognized DOCEXPORT_* variables.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, envPrefix) {
			name := strings.SplitN(env, "=", 2)[0]
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig applies environment variable values to config.
// Only sets values if the env var is set AND the config value is still the
// default. This ensures: CLI flags > env vars > config file > defaults
// (CLI flags are applied later via mergeFlags).
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	def := config.DefaultConfig()
	if env.Templates != "" && cfg.Templates.Path == "" {
		cfg.Templates.Path = env.Templates
	}
	if env.TempDir != "" && cfg.Build.TempDir == "" {
		cfg.Build.TempDir = env.TempDir
	}
	if env.Pandoc != "" && cfg.Tools.Pandoc == def.Tools.Pandoc {
		cfg.Tools.Pandoc = env.Pandoc
	}
	if env.Latexmk != "" && cfg.Tools.Latexmk == def.Tools.Latexmk {
		cfg.Tools.Latexmk = env.Latexmk
	}
	if env.Workers > 0 && cfg.Build.MaxParallel == 0 {
		cfg.Build.MaxParallel = env.Workers
	}
}
