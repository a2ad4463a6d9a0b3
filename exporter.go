package docexport

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/alnah/go-docexport/internal/document"
	"github.com/alnah/go-docexport/internal/fileutil"
	"github.com/alnah/go-docexport/internal/metrics"
	"github.com/alnah/go-docexport/internal/templates"
)

// Compile-time interface implementation checks.
var (
	_ DocumentLoader = (*document.MarkdownLoader)(nil)
	_ Stage          = loadStage{}
	_ Stage          = assetStage{}
	_ Stage          = renderStage{}
	_ Stage          = compileStage{}
	_ Stage          = publishStage{}
	_ Stage          = mecaStage{}
	_ Stage          = bookStage{}
)

// Exporter resolves export requests and runs their targets.
// Create with NewExporter, call Export, and Close when done.
type Exporter struct {
	cfg       exporterConfig
	runner    CommandRunner
	fetcher   Fetcher
	loader    DocumentLoader
	templates templates.Loader
	tools     Tools
	logger    *log.Logger
	recorder  metrics.Recorder

	temp     *TempManager
	assets   *AssetMaterializer
	resolver *Resolver
	strategy *pipelineStrategy
	batch    *BatchExecutor
}

// NewExporter creates an Exporter with default collaborators: os/exec for
// renderers, HTTP for remote assets, the markdown loader and the built-in
// templates. Returns an error if the custom template directory is invalid.
func NewExporter(opts ...Option) (*Exporter, error) {
	e := &Exporter{
		cfg:   exporterConfig{imagesDir: defaultImagesDir},
		tools: DefaultTools(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.runner == nil {
		e.runner = &ExecRunner{}
	}
	if e.fetcher == nil {
		e.fetcher = NewHTTPFetcher(0)
	}
	if e.loader == nil {
		e.loader = document.NewMarkdownLoader()
	}
	if e.logger == nil {
		e.logger = discardLogger()
	}
	if e.recorder == nil {
		e.recorder = metrics.NoopRecorder{}
	}
	if e.templates == nil {
		catalog, err := templates.NewCatalog(e.cfg.templatesDir)
		if err != nil {
			return nil, &ConfigurationError{Field: "templates", Err: err}
		}
		e.templates = catalog
	}

	e.temp = NewTempManager(e.cfg.tempRoot)
	e.assets = NewAssetMaterializer(e.fetcher, e.cfg.imagesDir).WithRecorder(e.recorder)
	e.resolver = NewResolver(e.templates)
	e.strategy = &pipelineStrategy{
		deps: stageDeps{
			Runner:           e.runner,
			Fetcher:          e.fetcher,
			Loader:           e.loader,
			Templates:        e.templates,
			Assets:           e.assets,
			Temp:             e.temp,
			Tools:            e.tools,
			SimpleAssetNames: e.cfg.simpleNames,
		},
		recorder: e.recorder,
	}
	e.batch = NewBatchExecutor(e.cfg.maxParallel, e.recorder, e.logger)
	return e, nil
}

// Resolve expands req into targets. When req carries no export entries
// and the source is a local document, its frontmatter exports are used.
func (e *Exporter) Resolve(ctx context.Context, req Request) ([]ExportTarget, error) {
	if req.Exports == nil && !isRemote(req.Source) && fileutil.FileExists(req.Source) {
		doc, err := e.loader.Load(ctx, req.Source)
		if err != nil {
			return nil, &ConfigurationError{Field: "source", Err: err}
		}
		req.Exports = EntriesFromDocument(doc.Front.Exports)
	}
	if e.cfg.keepTemp {
		req.Keep = true
	}
	return e.resolver.Resolve(ctx, req)
}

// Export resolves req and runs every target. A ConfigurationError aborts
// before any target runs; any other failure is reported in the target's
// BuildResult.
func (e *Exporter) Export(ctx context.Context, req Request) ([]BuildResult, error) {
	ctx = ContextWithLogger(ctx, e.logger)
	targets, err := e.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.ExportTargets(ctx, targets), nil
}

// ExportTargets runs already resolved targets concurrently. Results are in
// the order of targets.
func (e *Exporter) ExportTargets(ctx context.Context, targets []ExportTarget) []BuildResult {
	ctx = ContextWithLogger(ctx, e.logger)
	execs := make([]Execution, len(targets))
	for i, t := range targets {
		execs[i] = Execution{
			Target: t,
			Run: func(ctx context.Context) BuildResult {
				return e.strategy.Run(ctx, t)
			},
		}
	}
	return e.batch.Execute(ctx, execs)
}

// BuildPDF compiles an existing TeX file into output without rendering
// anything first. The TeX folder is copied to scratch space so the
// compiler's side files do not land next to the source.
func (e *Exporter) BuildPDF(ctx context.Context, texPath, output string) BuildResult {
	ctx = ContextWithLogger(ctx, e.logger)
	start := time.Now()
	target := ExportTarget{Format: FormatPDF, SourcePath: texPath, OutputPath: output}
	if output == "" {
		base := filepath.Base(texPath)
		target.OutputPath = filepath.Join(filepath.Dir(texPath), base[:len(base)-len(filepath.Ext(base))]+FormatPDF.Extension())
	}

	sc := &StageContext{
		Target:  target,
		Runner:  e.runner,
		Temp:    e.temp,
		Tools:   e.tools,
		Logger:  e.logger,
		Fetcher: e.fetcher,
	}
	result := BuildResult{Target: target}

	run := func() error {
		if !fileutil.FileExists(texPath) {
			return configErrorf("source", ErrSourceNotFound, "%s", texPath)
		}
		dir, err := sc.WorkDir()
		if err != nil {
			return err
		}
		if err := copyTree(filepath.Dir(texPath), dir); err != nil {
			return fmt.Errorf("copying %s: %w", filepath.Dir(texPath), err)
		}
		src := Artifact{Path: filepath.Join(dir, filepath.Base(texPath)), Dir: dir, Kind: KindTeX}
		_, err = NewPipeline(compileStage{}, publishStage{kind: KindPDF}).WithRecorder(e.recorder).Run(ctx, sc, src)
		return err
	}
	result.Err = run()
	if rerr := sc.release(); rerr != nil {
		e.logger.Warn("releasing work directories", "target", target.String(), "err", rerr)
	}
	result.Duration = time.Since(start)
	if result.Err == nil {
		result.Artifacts = sc.Artifacts()
	}
	e.batch.record(result)
	return result
}

// Close removes scratch space that is still live.
func (e *Exporter) Close() error {
	if err := e.temp.Close(); err != nil {
		return fmt.Errorf("closing temp manager: %w", err)
	}
	return nil
}

// IsConfigurationError reports whether err aborted an export before any
// target ran.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
