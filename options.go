package docexport

import (
	"github.com/charmbracelet/log"

	"github.com/alnah/go-docexport/internal/metrics"
	"github.com/alnah/go-docexport/internal/templates"
)

// Option configures an Exporter.
type Option func(*Exporter)

// exporterConfig holds internal configuration for Exporter.
type exporterConfig struct {
	tempRoot     string
	templatesDir string
	imagesDir    string
	maxParallel  int
	simpleNames  bool
	keepTemp     bool
}

// defaultImagesDir is the asset folder inside each build folder.
const defaultImagesDir = "files"

// WithRunner sets the command runner for renderer binaries.
func WithRunner(r CommandRunner) Option {
	return func(e *Exporter) {
		e.runner = r
	}
}

// WithFetcher sets how assets and remote sources are fetched.
func WithFetcher(f Fetcher) Option {
	return func(e *Exporter) {
		e.fetcher = f
	}
}

// WithLoader sets the document loader.
func WithLoader(l DocumentLoader) Option {
	return func(e *Exporter) {
		e.loader = l
	}
}

// WithTemplates sets the template loader, replacing the catalog built from
// WithTemplatesDir.
func WithTemplates(l templates.Loader) Option {
	return func(e *Exporter) {
		e.templates = l
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *log.Logger) Option {
	return func(e *Exporter) {
		e.logger = l
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(e *Exporter) {
		e.recorder = r
	}
}

// WithTools sets the renderer binary names.
func WithTools(t Tools) Option {
	return func(e *Exporter) {
		if t.Pandoc != "" {
			e.tools.Pandoc = t.Pandoc
		}
		if t.Latexmk != "" {
			e.tools.Latexmk = t.Latexmk
		}
		if t.Inkscape != "" {
			e.tools.Inkscape = t.Inkscape
		}
		if t.Magick != "" {
			e.tools.Magick = t.Magick
		}
	}
}

// WithTempRoot sets where scratch directories are created.
func WithTempRoot(dir string) Option {
	return func(e *Exporter) {
		e.cfg.tempRoot = dir
	}
}

// WithTemplatesDir adds a directory of custom templates, consulted before
// the built-in ones.
func WithTemplatesDir(dir string) Option {
	return func(e *Exporter) {
		e.cfg.templatesDir = dir
	}
}

// WithImagesDir sets the asset folder inside each build folder.
func WithImagesDir(dir string) Option {
	return func(e *Exporter) {
		e.cfg.imagesDir = dir
	}
}

// WithMaxParallel caps how many targets run at once.
// Panics if n < 0 (programmer error).
func WithMaxParallel(n int) Option {
	if n < 0 {
		panic("docexport: WithMaxParallel must not be negative")
	}
	return func(e *Exporter) {
		e.cfg.maxParallel = n
	}
}

// WithSimpleAssetNames names every asset by content id only.
func WithSimpleAssetNames(simple bool) Option {
	return func(e *Exporter) {
		e.cfg.simpleNames = simple
	}
}

// WithKeepIntermediate keeps the work directories of every target.
func WithKeepIntermediate(keep bool) Option {
	return func(e *Exporter) {
		e.cfg.keepTemp = keep
	}
}
