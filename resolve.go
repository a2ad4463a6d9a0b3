package docexport

import (
	"context"
	"errors"
	"maps"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/alnah/go-docexport/internal/document"
	"github.com/alnah/go-docexport/internal/fileutil"
	"github.com/alnah/go-docexport/internal/templates"
)

// defaultExportDir is created next to the source when no output is given.
const defaultExportDir = "exports"

// ExportEntry is one declared export, usually from document frontmatter.
type ExportEntry struct {
	Format   Format
	Template string
	Output   string // relative to the source directory unless absolute
	Options  map[string]any
}

// Request is a declarative export request.
type Request struct {
	Source string // local path or http(s) URL
	// Format selects the entries to export. Empty exports every entry.
	Format          Format
	Output          string
	Template        string
	DisableTemplate bool
	TemplateOptions map[string]any
	Clean           bool
	Keep            bool
	// Converter rasterizes SVG images for TeX-based formats. Empty
	// selects inkscape.
	Converter Converter
	// Zip bundles tex and typst outputs with their assets.
	Zip     bool
	Exports []ExportEntry
}

// Resolver expands requests into export targets.
type Resolver struct {
	templates templates.Loader
}

// NewResolver creates a resolver that checks named templates against
// loader. A nil loader skips template checks.
func NewResolver(loader templates.Loader) *Resolver {
	return &Resolver{templates: loader}
}

// Resolve returns the targets of req. Every error is a *ConfigurationError.
// Apart from existence checks it does not touch the filesystem.
func (r *Resolver) Resolve(ctx context.Context, req Request) ([]ExportTarget, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	if req.Format != "" && !req.Format.Valid() {
		return nil, configErrorf("format", ErrUnknownFormat, "%q", req.Format)
	}
	if req.Converter != "" && !req.Converter.Valid() {
		return nil, configErrorf("converter", ErrUnknownConverter, "%q (want inkscape or imagemagick)", req.Converter)
	}
	if req.Zip && req.Format != "" && !req.Format.Zippable() {
		return nil, configErrorf("zip", ErrZipUnsupported, "%s (only tex and typst)", req.Format)
	}
	if err := checkSource(req); err != nil {
		return nil, err
	}

	entries := matchingEntries(req)
	if req.Format == "" && len(entries) == 0 {
		return nil, configErrorf("format", ErrUnknownFormat, "no format given and %s declares no exports", req.Source)
	}

	var targets []ExportTarget
	switch {
	case req.Output != "":
		entry := ExportEntry{Format: req.Format}
		if len(entries) > 0 {
			entry = entries[0]
			if req.Format != "" {
				entry.Format = req.Format
			}
		}
		entry.Output = req.Output
		t, err := r.target(req, entry, false)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	case len(entries) > 0:
		for _, e := range entries {
			t, err := r.target(req, e, true)
			if err != nil {
				return nil, err
			}
			targets = append(targets, t)
		}
	default:
		t, err := r.target(req, ExportEntry{Format: req.Format}, true)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}

	if err := checkDuplicates(targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// checkSource verifies the source exists and has the right kind.
func checkSource(req Request) error {
	if req.Source == "" {
		return configErrorf("source", ErrSourceNotFound, "empty source")
	}
	if isRemote(req.Source) {
		if req.Format == FormatJupyterBook {
			return configErrorf("source", ErrSourceNotDirectory, "%s", req.Source)
		}
		return nil
	}
	info, err := os.Stat(req.Source)
	if err != nil {
		return configErrorf("source", ErrSourceNotFound, "%s", req.Source)
	}
	switch {
	case req.Format == FormatJupyterBook && !info.IsDir():
		return configErrorf("source", ErrSourceNotDirectory, "%s", req.Source)
	case req.Format != FormatJupyterBook && req.Format != "" && info.IsDir():
		return configErrorf("source", ErrSourceIsDirectory, "%s", req.Source)
	}
	return nil
}

// matchingEntries returns the entries exported by req. A pdf request
// matches pdf and pdftex entries.
func matchingEntries(req Request) []ExportEntry {
	var out []ExportEntry
	for _, e := range req.Exports {
		switch {
		case req.Format == "":
		case e.Format == req.Format:
		case req.Format == FormatPDF && e.Format == FormatPDFTeX:
		default:
			continue
		}
		out = append(out, e)
	}
	return out
}

// target builds one target from an entry. relativeToSource resolves a
// relative entry output against the source directory.
func (r *Resolver) target(req Request, e ExportEntry, relativeToSource bool) (ExportTarget, error) {
	format := e.Format
	if !format.Valid() {
		return ExportTarget{}, configErrorf("exports", ErrUnknownFormat, "%q", format)
	}
	if req.Keep && format == FormatPDF {
		format = FormatPDFTeX
	}
	if req.Format == "" {
		if err := checkSource(Request{Source: req.Source, Format: format}); err != nil {
			return ExportTarget{}, err
		}
	}

	out, err := outputPath(req.Source, format, e.Output, relativeToSource)
	if err != nil {
		return ExportTarget{}, err
	}

	tpl := e.Template
	if req.Template != "" {
		tpl = req.Template
	}
	if req.DisableTemplate {
		tpl = ""
	}
	if err := r.checkTemplate(format, tpl); err != nil {
		return ExportTarget{}, err
	}

	var opts map[string]any
	if len(e.Options) > 0 || len(req.TemplateOptions) > 0 {
		opts = make(map[string]any, len(e.Options)+len(req.TemplateOptions))
		maps.Copy(opts, e.Options)
		maps.Copy(opts, req.TemplateOptions)
	}

	var conv Converter
	if format.usesLaTeX() {
		conv = req.Converter
		if conv == "" {
			conv = ConverterInkscape
		}
	}

	return ExportTarget{
		Format:           format,
		SourcePath:       req.Source,
		OutputPath:       out,
		TemplateID:       tpl,
		TemplateOptions:  opts,
		KeepIntermediate: req.Keep,
		CleanBeforeWrite: req.Clean,
		Converter:        conv,
		// Entries from frontmatter only zip where the format allows it.
		Zip: req.Zip && format.Zippable(),
	}, nil
}

func (r *Resolver) checkTemplate(f Format, tpl string) error {
	if tpl == "" {
		return nil
	}
	kind := templateKind(f)
	if kind == "" {
		return configErrorf("template", ErrTemplateUnsupported, "%s (template %q)", f, tpl)
	}
	if r.templates == nil {
		return nil
	}
	if _, err := r.templates.Load(kind, tpl); err != nil {
		if errors.Is(err, templates.ErrTemplateNotFound) {
			return configErrorf("template", ErrTemplateNotFound, "%s template %q", kind, tpl)
		}
		return &ConfigurationError{Field: "template", Err: err}
	}
	return nil
}

// outputPath derives the output of a target. Without an explicit output it
// is <sourceDir>/exports/<base><ext>. Outputs without an extension get the
// format's; a different extension is rejected.
func outputPath(source string, f Format, output string, relativeToSource bool) (string, error) {
	base, dir, err := sourceBase(source, f)
	if err != nil {
		return "", err
	}
	ext := f.Extension()

	if output == "" {
		return filepath.Join(dir, defaultExportDir, base+ext), nil
	}
	dirHint := strings.HasSuffix(output, "/") || strings.HasSuffix(output, string(filepath.Separator))
	if relativeToSource && !filepath.IsAbs(output) {
		output = filepath.Join(dir, output)
	}
	if f.IsDirectory() {
		return filepath.Clean(output), nil
	}
	if dirHint || fileutil.DirExists(output) {
		return filepath.Join(output, base+ext), nil
	}

	got := filepath.Ext(output)
	switch {
	case got == "":
		return output + ext, nil
	case !strings.EqualFold(got, ext):
		return "", configErrorf("output", ErrOutputPath, "%s: %s output must end in %s", output, f, ext)
	}
	return filepath.Clean(output), nil
}

// sourceBase returns the output base name and the directory relative
// outputs live in. Remote sources use their last path segment and the
// working directory.
func sourceBase(source string, f Format) (base, dir string, err error) {
	if isRemote(source) {
		u, perr := url.Parse(source)
		if perr != nil {
			return "", "", configErrorf("source", ErrOutputPath, "%s: %v", source, perr)
		}
		seg := path.Base(u.Path)
		base = strings.TrimSuffix(seg, path.Ext(seg))
		if base == "" || base == "." || base == "/" {
			return "", "", configErrorf("output", ErrOutputPath, "cannot derive a file name from %s", source)
		}
		return base, ".", nil
	}

	if f.IsDirectory() {
		abs, aerr := filepath.Abs(source)
		if aerr != nil {
			return "", "", &ConfigurationError{Field: "source", Err: aerr}
		}
		return filepath.Base(abs), abs, nil
	}
	name := filepath.Base(source)
	return strings.TrimSuffix(name, filepath.Ext(name)), filepath.Dir(source), nil
}

// checkDuplicates rejects two targets writing the same output.
func checkDuplicates(targets []ExportTarget) error {
	seen := make(map[string]Format, len(targets))
	for _, t := range targets {
		key := t.OutputPath
		if abs, err := filepath.Abs(key); err == nil {
			key = abs
		}
		if prev, ok := seen[key]; ok {
			return configErrorf("output", ErrDuplicateOutput, "%s written by %s and %s", t.OutputPath, prev, t.Format)
		}
		seen[key] = t.Format
	}
	return nil
}

// EntriesFromDocument converts frontmatter exports into entries. Unknown
// formats are kept so Resolve can report them.
func EntriesFromDocument(exports []document.Export) []ExportEntry {
	out := make([]ExportEntry, 0, len(exports))
	for _, e := range exports {
		f, err := ParseFormat(e.Format)
		if err != nil {
			f = Format(e.Format)
		}
		out = append(out, ExportEntry{Format: f, Template: e.Template, Output: e.Output, Options: e.Options})
	}
	return out
}
