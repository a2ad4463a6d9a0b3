package docexport

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/alnah/go-docexport/internal/document"
	"github.com/alnah/go-docexport/internal/templates"
)

// Artifact kinds flowing between stages.
const (
	KindSource   = "source"
	KindMarkdown = "markdown"
	KindTeX      = "tex"
	KindPDF      = "pdf"
	KindDocx     = "docx"
	KindJATS     = "jats"
	KindTypst    = "typst"
	KindNotebook = "notebook"
	KindMECA     = "meca"
	KindBook     = "book"
)

// Artifact is the file a stage hands to the next one.
type Artifact struct {
	Path string // main file (or directory for books)
	Dir  string // build folder: where side files and assets live
	Kind string
}

// Stage is one step of a conversion pipeline. Stages keep no state between
// runs; everything per-target lives in the StageContext.
type Stage interface {
	Name() string
	Input() string
	Output() string
	Run(ctx context.Context, sc *StageContext, in Artifact) (Artifact, error)
}

// DocumentLoader reads a source document.
type DocumentLoader interface {
	Load(ctx context.Context, path string) (*document.Document, error)
}

// Tools names the renderer binaries.
type Tools struct {
	Pandoc   string
	Latexmk  string
	Inkscape string
	Magick   string // ImageMagick 7
}

// DefaultTools returns the binaries looked up in PATH.
func DefaultTools() Tools {
	return Tools{Pandoc: "pandoc", Latexmk: "latexmk", Inkscape: "inkscape", Magick: "magick"}
}

// StageContext carries everything one target execution needs. It replaces
// ambient session state: stages receive it explicitly and never share it
// across targets.
type StageContext struct {
	Target    ExportTarget
	Runner    CommandRunner
	Fetcher   Fetcher
	Loader    DocumentLoader
	Templates templates.Loader
	Assets    *AssetMaterializer
	Temp      *TempManager
	Tools     Tools
	Logger    *log.Logger

	// SimpleAssetNames forces content-addressed asset names.
	SimpleAssetNames bool

	// Document is set by the load stage.
	Document *document.Document
	// Materialized is set by the asset stage.
	Materialized *MaterializeResult

	mu        sync.Mutex
	dirs      []string
	artifacts []string
}

// WorkDir acquires a fresh scratch directory owned by this execution.
// It is released when the execution ends.
func (sc *StageContext) WorkDir() (string, error) {
	dir, err := sc.Temp.Acquire()
	if err != nil {
		return "", err
	}
	sc.mu.Lock()
	sc.dirs = append(sc.dirs, dir)
	sc.mu.Unlock()
	return dir, nil
}

// addArtifact records a deliverable file of this execution. Files inside
// scratch space are never deliverables and are ignored.
func (sc *StageContext) addArtifact(path string) {
	if sc.Temp != nil && isWithin(sc.Temp.Root(), path) {
		return
	}
	sc.mu.Lock()
	sc.artifacts = append(sc.artifacts, path)
	sc.mu.Unlock()
}

// Artifacts returns the deliverables recorded so far.
func (sc *StageContext) Artifacts() []string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return append([]string(nil), sc.artifacts...)
}

// release disposes of every directory acquired through WorkDir, keeping
// them when the target asks for intermediates.
func (sc *StageContext) release() error {
	sc.mu.Lock()
	dirs := sc.dirs
	sc.dirs = nil
	sc.mu.Unlock()

	var errs []error
	for _, dir := range dirs {
		if sc.Target.KeepIntermediate {
			sc.logger().Info("kept intermediate directory", "target", sc.Target.String(), "path", dir)
		}
		if err := sc.Temp.Release(dir, sc.Target.KeepIntermediate); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (sc *StageContext) logger() *log.Logger {
	if sc.Logger == nil {
		return discardLogger()
	}
	return sc.Logger
}

// isWithin reports whether path lies under dir.
func isWithin(dir, path string) bool {
	if dir == "" {
		return false
	}
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
