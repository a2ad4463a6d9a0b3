package docexport

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Format identifies an export target kind.
type Format string

// Supported export formats.
const (
	FormatTeX         Format = "tex"
	FormatPDFTeX      Format = "pdftex"
	FormatPDF         Format = "pdf"
	FormatDocx        Format = "docx"
	FormatJATS        Format = "jats"
	FormatMECA        Format = "meca"
	FormatTypst       Format = "typst"
	FormatNotebook    Format = "notebook"
	FormatJupyterBook Format = "jupyterBook"
)

// formatExtensions holds the output file extension of each format.
// jupyterBook writes a directory and has none.
var formatExtensions = map[Format]string{
	FormatTeX:         ".tex",
	FormatPDFTeX:      ".pdf",
	FormatPDF:         ".pdf",
	FormatDocx:        ".docx",
	FormatJATS:        ".xml",
	FormatMECA:        ".zip",
	FormatTypst:       ".typ",
	FormatNotebook:    ".ipynb",
	FormatJupyterBook: "",
}

// formatAliases maps accepted spellings to formats.
var formatAliases = map[string]Format{
	"tex":          FormatTeX,
	"latex":        FormatTeX,
	"pdftex":       FormatPDFTeX,
	"pdf+tex":      FormatPDFTeX,
	"pdf":          FormatPDF,
	"docx":         FormatDocx,
	"word":         FormatDocx,
	"jats":         FormatJATS,
	"meca":         FormatMECA,
	"typst":        FormatTypst,
	"typ":          FormatTypst,
	"notebook":     FormatNotebook,
	"ipynb":        FormatNotebook,
	"nb":           FormatNotebook,
	"jupyterbook":  FormatJupyterBook,
	"jupyter-book": FormatJupyterBook,
	"jb":           FormatJupyterBook,
}

// Formats lists every export format in a stable order.
func Formats() []Format {
	return []Format{
		FormatTeX, FormatPDFTeX, FormatPDF, FormatDocx, FormatJATS,
		FormatMECA, FormatTypst, FormatNotebook, FormatJupyterBook,
	}
}

// ParseFormat returns the format for a name or alias (case-insensitive).
func ParseFormat(s string) (Format, error) {
	f, ok := formatAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
	return f, nil
}

// Extension returns the default output extension, including the dot.
func (f Format) Extension() string {
	return formatExtensions[f]
}

// Valid reports whether f is one of the supported formats.
func (f Format) Valid() bool {
	_, ok := formatExtensions[f]
	return ok
}

// IsDirectory reports whether the format produces a directory.
func (f Format) IsDirectory() bool {
	return f == FormatJupyterBook
}

// usesLaTeX reports whether f is built through LaTeX, whose image
// inclusion needs raster files.
func (f Format) usesLaTeX() bool {
	return f == FormatTeX || f == FormatPDF || f == FormatPDFTeX
}

// Zippable reports whether f can also be bundled with its assets.
func (f Format) Zippable() bool {
	return f == FormatTeX || f == FormatTypst
}

func (f Format) String() string { return string(f) }

// ExportTarget is one concrete unit of conversion work.
// It is built by the Resolver and only read afterwards.
type ExportTarget struct {
	Format           Format
	SourcePath       string
	OutputPath       string
	TemplateID       string         // empty = converter default
	TemplateOptions  map[string]any // passed to the template as metadata
	KeepIntermediate bool
	CleanBeforeWrite bool
	// Converter rasterizes SVG assets. Only TeX-based formats set it.
	Converter Converter
	// Zip also bundles the output and its assets into ZipPath.
	Zip bool
}

func (t ExportTarget) String() string {
	return fmt.Sprintf("%s:%s", t.Format, t.OutputPath)
}

// outputBase returns the output file name without its extension.
func (t ExportTarget) outputBase() string {
	base := filepath.Base(t.OutputPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// RetainedTeXPath returns where the TeX intermediate of a PDF target is kept:
// <dir>/<base>_pdf_tex/<base>.tex.
func (t ExportTarget) RetainedTeXPath() string {
	base := t.outputBase()
	return filepath.Join(filepath.Dir(t.OutputPath), base+"_pdf_tex", base+".tex")
}

// ZipPath returns where a zipped target is bundled: <dir>/<base>.zip.
func (t ExportTarget) ZipPath() string {
	return filepath.Join(filepath.Dir(t.OutputPath), t.outputBase()+".zip")
}

// Converter names the tool that turns SVG images into PNG for LaTeX,
// which cannot include SVG directly.
type Converter string

const (
	ConverterInkscape    Converter = "inkscape"
	ConverterImageMagick Converter = "imagemagick"
)

// Valid reports whether c names a known converter.
func (c Converter) Valid() bool {
	return c == ConverterInkscape || c == ConverterImageMagick
}

// ContentID identifies an asset version independently of user-supplied names.
type ContentID struct {
	Project string
	Block   string
	Version int
}

// Name renders the content-addressed file name stem: project-block-vN.
func (c ContentID) Name() string {
	return fmt.Sprintf("%s-%s-v%d", c.Project, c.Block, c.Version)
}

// AssetReference describes one binary asset referenced by a document.
type AssetReference struct {
	Key         string // stable id within the document
	SourceURL   string
	ContentType string // may be empty; the fetched content type is used then
	// CandidateNames is ordered: explicit name, source file name, then the
	// content-addressed fallback. Empty entries are skipped.
	CandidateNames []string
	// SimpleMode discards the first two candidates.
	SimpleMode bool
}

// CandidateNames builds the ordered candidate list for an asset.
func CandidateNames(name, fileName string, id ContentID) []string {
	return []string{name, fileName, id.Name()}
}

// candidates returns the names eligible for selection.
func (r AssetReference) candidates() []string {
	names := r.CandidateNames
	if r.SimpleMode {
		names = names[min(2, len(names)):]
	}
	return names
}

// identity returns the content-addressed name, the last candidate.
func (r AssetReference) identity() string {
	if len(r.CandidateNames) == 0 {
		return ""
	}
	return r.CandidateNames[len(r.CandidateNames)-1]
}

// MaterializedAsset records an asset written during one build.
type MaterializedAsset struct {
	Key          string
	RelativePath string // slash-separated, relative to the build folder
	BytesWritten int64
	// Deduplicated is set when the path was already written for the same
	// content identity and no bytes were written again.
	Deduplicated bool
}

// relativeAssetPath joins the asset base path and file name using slashes,
// since the result is used as a reference inside documents.
func relativeAssetPath(basePath, name string) string {
	return path.Join(filepath.ToSlash(basePath), name)
}

// BuildResult is the terminal record of one target's execution.
// A nil Err means success and Artifacts lists the files produced.
type BuildResult struct {
	Target    ExportTarget
	Artifacts []string
	Err       error
	Duration  time.Duration
}

// OK reports whether the target succeeded.
func (r BuildResult) OK() bool { return r.Err == nil }
