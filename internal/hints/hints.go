// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"os"
	"strings"

	"github.com/alnah/go-docexport/internal/config"
	"github.com/alnah/go-docexport/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// installHints suggests how to get each renderer.
var installHints = map[string]string{
	"pandoc":  "install pandoc from https://pandoc.org/installing.html",
	"latexmk": "install a TeX distribution with latexmk (TeX Live, MacTeX or MiKTeX)",
}

// ForMissingTool returns hints for a renderer binary that could not be run.
func ForMissingTool(tool string) string {
	var hints []string
	if h, ok := installHints[tool]; ok {
		hints = append(hints, h)
	}
	if tool == "latexmk" && IsInContainer() {
		hints = append(hints, "in Docker, install texlive-latex-extra and latexmk")
	}
	hints = append(hints, "or point --"+tool+" at the binary")
	return formatHints(hints)
}

// ForTeXFailure suggests keeping intermediates to read the TeX log.
// Nothing is suggested when the user already kept them.
func ForTeXFailure(kept bool) string {
	if kept {
		return format("see the .log file next to the retained .tex")
	}
	return format("rerun with --keep to inspect the generated TeX and its log")
}

// ForConfigNotFound returns hints for config file not found errors.
// Suggests --config flag and creating a config in ~/.config/go-docexport/.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	for _, p := range searchedPaths {
		if strings.Contains(p, ".config/"+config.AppDir) {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// ForOutputDirectory returns hints for output directory creation errors.
func ForOutputDirectory() string {
	return format("check parent directory exists and is writable")
}

// ForTemplateNotFound lists the templates that do exist.
func ForTemplateNotFound(available []string) string {
	if len(available) == 0 {
		return format("use --template with a path, or --disable-template")
	}
	return format("available: " + strings.Join(available, ", "))
}

// ForRemoteSource returns hints for sources that could not be downloaded.
func ForRemoteSource() string {
	if os.Getenv("HTTPS_PROXY") == "" && os.Getenv("https_proxy") == "" {
		return format("check the URL is reachable; set HTTPS_PROXY behind a proxy")
	}
	return format("check the URL is reachable through the configured proxy")
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
