package docexport

import (
	"context"
	"fmt"
	"time"

	"github.com/alnah/go-docexport/internal/metrics"
	"github.com/alnah/go-docexport/internal/templates"
)

// Strategy turns one export target into a build result. There is one
// strategy per format; all of them are stage pipelines.
type Strategy interface {
	Run(ctx context.Context, target ExportTarget) BuildResult
}

// stagesFor returns the stage sequence producing format f.
func stagesFor(f Format) ([]Stage, error) {
	switch f {
	case FormatTeX:
		return []Stage{
			loadStage{},
			assetStage{place: placeOutput},
			renderStage{writer: "latex", kind: KindTeX, ext: ".tex"},
			publishStage{kind: KindTeX},
		}, nil
	case FormatPDF:
		return []Stage{
			loadStage{},
			assetStage{place: placeWork},
			renderStage{writer: "latex", kind: KindTeX, ext: ".tex", intoBuildDir: true},
			compileStage{},
			publishStage{kind: KindPDF},
		}, nil
	case FormatPDFTeX:
		return []Stage{
			loadStage{},
			assetStage{place: placeRetainedTeX},
			renderStage{writer: "latex", kind: KindTeX, ext: ".tex", intoBuildDir: true},
			compileStage{},
			publishStage{kind: KindPDF},
		}, nil
	case FormatDocx:
		return []Stage{
			loadStage{},
			assetStage{place: placeWork},
			renderStage{writer: "docx", kind: KindDocx, ext: ".docx"},
			publishStage{kind: KindDocx},
		}, nil
	case FormatJATS:
		return []Stage{
			loadStage{},
			assetStage{place: placeOutput},
			renderStage{writer: "jats", kind: KindJATS, ext: ".xml"},
			publishStage{kind: KindJATS},
		}, nil
	case FormatMECA:
		return []Stage{
			loadStage{},
			assetStage{place: placeWork},
			renderStage{writer: "jats", kind: KindJATS, ext: ".xml", intoBuildDir: true},
			mecaStage{},
			publishStage{kind: KindMECA},
		}, nil
	case FormatTypst:
		return []Stage{
			loadStage{},
			assetStage{place: placeOutput},
			renderStage{writer: "typst", kind: KindTypst, ext: ".typ"},
			publishStage{kind: KindTypst},
		}, nil
	case FormatNotebook:
		return []Stage{
			loadStage{},
			assetStage{place: placeWork},
			renderStage{writer: "ipynb", kind: KindNotebook, ext: ".ipynb"},
			publishStage{kind: KindNotebook},
		}, nil
	case FormatJupyterBook:
		return []Stage{
			bookStage{},
			publishStage{kind: KindBook},
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// stageFormat returns the format whose stages build target. A PDF that
// keeps its intermediates is built like pdftex so the TeX lands in the
// retained folder next to the PDF.
func stageFormat(target ExportTarget) Format {
	if target.Format == FormatPDF && target.KeepIntermediate {
		return FormatPDFTeX
	}
	return target.Format
}

// stageDeps are the collaborators shared by every target of an exporter.
type stageDeps struct {
	Runner           CommandRunner
	Fetcher          Fetcher
	Loader           DocumentLoader
	Templates        templates.Loader
	Assets           *AssetMaterializer
	Temp             *TempManager
	Tools            Tools
	SimpleAssetNames bool
}

// pipelineStrategy runs a fresh pipeline per target. Per-target state lives
// in a new StageContext.
type pipelineStrategy struct {
	deps     stageDeps
	recorder metrics.Recorder
}

// Compile-time interface check.
var _ Strategy = (*pipelineStrategy)(nil)

func (s *pipelineStrategy) Run(ctx context.Context, target ExportTarget) BuildResult {
	start := time.Now()
	result := BuildResult{Target: target}

	stages, err := stagesFor(stageFormat(target))
	if err != nil {
		result.Err = &ConfigurationError{Field: "format", Err: err}
		result.Duration = time.Since(start)
		return result
	}

	sc := &StageContext{
		Target:           target,
		Runner:           s.deps.Runner,
		Fetcher:          s.deps.Fetcher,
		Loader:           s.deps.Loader,
		Templates:        s.deps.Templates,
		Assets:           s.deps.Assets,
		Temp:             s.deps.Temp,
		Tools:            s.deps.Tools,
		Logger:           LoggerFrom(ctx),
		SimpleAssetNames: s.deps.SimpleAssetNames,
	}

	_, err = NewPipeline(stages...).WithRecorder(s.recorder).Run(ctx, sc, Artifact{Path: target.SourcePath, Kind: KindSource})
	// A leftover scratch dir does not fail the target.
	if rerr := sc.release(); rerr != nil {
		sc.logger().Warn("releasing work directories", "target", target.String(), "err", rerr)
	}

	result.Duration = time.Since(start)
	if err != nil {
		result.Err = err
		return result
	}
	result.Artifacts = sc.Artifacts()
	return result
}
