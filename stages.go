package docexport

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alnah/go-docexport/internal/dateutil"
	"github.com/alnah/go-docexport/internal/document"
	"github.com/alnah/go-docexport/internal/fileutil"
	"github.com/alnah/go-docexport/internal/templates"
	"github.com/alnah/go-docexport/internal/yamlutil"
)

// ---------------------------------------------------------------------------
// load: source -> markdown
// ---------------------------------------------------------------------------

// remoteSourceName is the file a downloaded source is saved as.
const remoteSourceName = "output.md"

// loadStage reads the source document. Remote sources are downloaded into
// a work directory first.
type loadStage struct{}

func (loadStage) Name() string   { return "load" }
func (loadStage) Input() string  { return KindSource }
func (loadStage) Output() string { return KindMarkdown }

func (s loadStage) Run(ctx context.Context, sc *StageContext, in Artifact) (Artifact, error) {
	path := in.Path
	if isRemote(path) {
		dir, err := sc.WorkDir()
		if err != nil {
			return Artifact{}, err
		}
		fetched, err := sc.Fetcher.Fetch(ctx, path)
		if err != nil {
			return Artifact{}, fmt.Errorf("downloading %s: %w", path, err)
		}
		local := filepath.Join(dir, remoteSourceName)
		if err := os.WriteFile(local, fetched.Data, fileutil.FilePerm); err != nil { // #nosec G306
			return Artifact{}, fmt.Errorf("saving %s: %w", path, err)
		}
		sc.logger().Debug("downloaded source", "url", path, "path", local)
		path = local
	}

	doc, err := sc.Loader.Load(ctx, path)
	if err != nil {
		return Artifact{}, err
	}
	sc.Document = doc
	return Artifact{Path: path, Dir: filepath.Dir(path), Kind: KindMarkdown}, nil
}

// isRemote reports whether src must be downloaded.
func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// ---------------------------------------------------------------------------
// assets: markdown -> markdown with local image references
// ---------------------------------------------------------------------------

// placement decides where a target's assets are written.
type placement int

const (
	// placeWork writes assets into a disposable work directory.
	placeWork placement = iota
	// placeOutput writes assets next to the output file, since the output
	// references them by relative path.
	placeOutput
	// placeRetainedTeX writes assets into <base>_pdf_tex next to the output.
	placeRetainedTeX
)

// assetStage materializes every image of the document into the build
// folder, rewrites the references and copies bibliography files.
type assetStage struct {
	place placement
}

func (assetStage) Name() string   { return "assets" }
func (assetStage) Input() string  { return KindMarkdown }
func (assetStage) Output() string { return KindMarkdown }

func (s assetStage) Run(ctx context.Context, sc *StageContext, in Artifact) (Artifact, error) {
	doc := sc.Document
	if doc == nil {
		return Artifact{}, fmt.Errorf("%w: no document loaded", ErrMissingArtifact)
	}

	buildDir, err := s.buildDir(sc)
	if err != nil {
		return Artifact{}, err
	}
	workDir := buildDir
	if s.place != placeWork {
		if workDir, err = sc.WorkDir(); err != nil {
			return Artifact{}, err
		}
	}

	refs := documentReferences(doc, projectName(doc), "", sc.SimpleAssetNames)
	res := sc.Assets.Materialize(ctx, refs, buildDir)
	sc.Materialized = res
	if err := res.Err(); err != nil {
		return Artifact{}, err
	}
	if err := rasterizeSVGs(ctx, sc, buildDir, res); err != nil {
		return Artifact{}, err
	}

	body := document.RewriteImages(doc.Body, rewriteMap(doc, "", "", res))

	if err := copyBibliography(doc, buildDir); err != nil {
		return Artifact{}, err
	}

	md := filepath.Join(workDir, sc.Target.outputBase()+".md")
	if err := os.WriteFile(md, body, fileutil.FilePerm); err != nil { // #nosec G306
		return Artifact{}, fmt.Errorf("writing markdown: %w", err)
	}
	return Artifact{Path: md, Dir: buildDir, Kind: KindMarkdown}, nil
}

func (s assetStage) buildDir(sc *StageContext) (string, error) {
	switch s.place {
	case placeOutput:
		dir := filepath.Dir(sc.Target.OutputPath)
		if err := os.MkdirAll(dir, fileutil.DirPerm); err != nil {
			return "", fmt.Errorf("creating output directory: %w", err)
		}
		return dir, nil
	case placeRetainedTeX:
		dir := filepath.Dir(sc.Target.RetainedTeXPath())
		if sc.Target.CleanBeforeWrite {
			if err := fileutil.CleanDir(dir); err != nil {
				return "", fmt.Errorf("cleaning %s: %w", dir, err)
			}
		}
		if err := os.MkdirAll(dir, fileutil.DirPerm); err != nil {
			return "", fmt.Errorf("creating %s: %w", dir, err)
		}
		return dir, nil
	default:
		return sc.WorkDir()
	}
}

// rasterizeSVGs converts every materialized SVG into a PNG next to it and
// points the asset at the PNG. Deduplicated assets share one conversion.
func rasterizeSVGs(ctx context.Context, sc *StageContext, buildDir string, res *MaterializeResult) error {
	if sc.Target.Converter == "" {
		return nil
	}
	taken := make(map[string]bool, len(res.Assets))
	for _, a := range res.Assets {
		taken[a.RelativePath] = true
	}

	converted := make(map[string]string)
	for _, key := range slices.Sorted(maps.Keys(res.Assets)) {
		a := res.Assets[key]
		if !strings.EqualFold(path.Ext(a.RelativePath), ".svg") {
			continue
		}
		png, ok := converted[a.RelativePath]
		if !ok {
			png = strings.TrimSuffix(a.RelativePath, path.Ext(a.RelativePath)) + ".png"
			if taken[png] {
				png = a.RelativePath + ".png"
			}
			in := filepath.Join(buildDir, filepath.FromSlash(a.RelativePath))
			out := filepath.Join(buildDir, filepath.FromSlash(png))
			cmd := converterCommand(sc.Tools, sc.Target.Converter, in, out)
			cmd.Dir = buildDir
			if err := runTool(ctx, sc.Runner, "rasterize", cmd); err != nil {
				return err
			}
			if !fileutil.FileExists(out) {
				return &StageExecutionError{Stage: "rasterize", Tool: cmd.Name, Err: fmt.Errorf("%w: %s", ErrMissingArtifact, out)}
			}
			sc.logger().Debug("svg rasterized", "asset", key, "converter", string(sc.Target.Converter), "path", png)
			converted[a.RelativePath] = png
		}
		a.RelativePath = png
		res.Assets[key] = a
	}
	return nil
}

// converterCommand returns the invocation turning svg into png.
func converterCommand(tools Tools, c Converter, svg, png string) Command {
	if c == ConverterImageMagick {
		return Command{Name: tools.Magick, Args: []string{"-density", "300", svg, png}}
	}
	return Command{Name: tools.Inkscape, Args: []string{svg, "--export-type=png", "--export-filename=" + png}}
}

// projectName is the project part of content-addressed asset names.
func projectName(doc *document.Document) string {
	if p := fileutil.Slug(doc.Front.Project); p != "" {
		return p
	}
	base := filepath.Base(doc.Path)
	if p := fileutil.Slug(strings.TrimSuffix(base, filepath.Ext(base))); p != "" {
		return p
	}
	return "doc"
}

// documentReferences turns document images into asset references. The
// block id is derived from the image URL, so repeated references to one
// image share a content identity. keyPrefix scopes keys when several
// documents share one build.
func documentReferences(doc *document.Document, project, keyPrefix string, simple bool) map[string]AssetReference {
	refs := make(map[string]AssetReference, len(doc.Images))
	for _, img := range doc.Images {
		block := strings.SplitN(uuid.NewSHA1(uuid.NameSpaceURL, []byte(img.URL)).String(), "-", 2)[0]
		id := ContentID{Project: project, Block: block, Version: 1}
		key := keyPrefix + img.Key
		refs[key] = AssetReference{
			Key:            key,
			SourceURL:      img.URL,
			CandidateNames: CandidateNames(img.Name, img.FileName, id),
			SimpleMode:     simple,
		}
	}
	return refs
}

// rewriteMap maps image sources to their materialized paths, prefixed by
// relPrefix (e.g. "../" for pages below the build folder).
func rewriteMap(doc *document.Document, keyPrefix, relPrefix string, res *MaterializeResult) map[string]string {
	m := make(map[string]string, len(doc.Images))
	for _, img := range doc.Images {
		if a, ok := res.Assets[keyPrefix+img.Key]; ok {
			m[img.Src] = relPrefix + a.RelativePath
		}
	}
	return m
}

// copyBibliography copies the bibliography files next to the build output.
func copyBibliography(doc *document.Document, dir string) error {
	for _, bib := range doc.Front.Bibliography {
		src := bib
		if !filepath.IsAbs(src) {
			src = filepath.Join(filepath.Dir(doc.Path), bib)
		}
		if err := fileutil.CopyFile(src, filepath.Join(dir, filepath.Base(bib))); err != nil {
			return fmt.Errorf("copying bibliography %s: %w", bib, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// render: markdown -> tex | docx | jats | typst | notebook (pandoc)
// ---------------------------------------------------------------------------

// renderStage converts markdown with pandoc.
type renderStage struct {
	writer string // pandoc --to value
	kind   string // output artifact kind
	ext    string
	// intoBuildDir writes the output into the build folder, where a
	// following compile stage finds the assets.
	intoBuildDir bool
}

func (s renderStage) Name() string   { return "render-" + s.kind }
func (renderStage) Input() string    { return KindMarkdown }
func (s renderStage) Output() string { return s.kind }

func (s renderStage) Run(ctx context.Context, sc *StageContext, in Artifact) (Artifact, error) {
	outDir := in.Dir
	if !s.intoBuildDir {
		dir, err := sc.WorkDir()
		if err != nil {
			return Artifact{}, err
		}
		outDir = dir
	}
	out := filepath.Join(outDir, sc.Target.outputBase()+s.ext)

	args := []string{
		in.Path,
		"--from", "markdown",
		"--to", s.writer,
		"--standalone",
		"--output", out,
		"--resource-path", in.Dir,
	}

	metaArgs, err := s.metadataArgs(sc, filepath.Dir(in.Path))
	if err != nil {
		return Artifact{}, err
	}
	args = append(args, metaArgs...)

	tplArgs, err := s.templateArgs(sc, outDir)
	if err != nil {
		return Artifact{}, err
	}
	args = append(args, tplArgs...)

	if bibs := sc.Document.Front.Bibliography; len(bibs) > 0 {
		if s.kind == KindTeX {
			args = append(args, "--natbib")
		} else {
			args = append(args, "--citeproc")
			for _, b := range bibs {
				args = append(args, "--bibliography", filepath.Join(in.Dir, filepath.Base(b)))
			}
		}
	}

	cmd := Command{Name: sc.Tools.Pandoc, Args: args, Dir: filepath.Dir(in.Path)}
	if err := runTool(ctx, sc.Runner, s.Name(), cmd); err != nil {
		return Artifact{}, err
	}
	if !fileutil.FileExists(out) {
		return Artifact{}, &StageExecutionError{Stage: s.Name(), Tool: cmd.Name, Err: fmt.Errorf("%w: %s", ErrMissingArtifact, out)}
	}
	if s.intoBuildDir && sc.Target.KeepIntermediate {
		sc.addArtifact(out)
	}
	return Artifact{Path: out, Dir: in.Dir, Kind: s.kind}, nil
}

// metadataArgs writes frontmatter merged with template options to a
// metadata file. Bibliography entries are rewritten to their copied names.
func (s renderStage) metadataArgs(sc *StageContext, dir string) ([]string, error) {
	meta := make(map[string]any, len(sc.Document.Front.Raw)+len(sc.Target.TemplateOptions))
	for k, v := range sc.Document.Front.Raw {
		if k == "exports" {
			continue
		}
		meta[k] = v
	}
	if bibs := sc.Document.Front.Bibliography; len(bibs) > 0 {
		names := make([]string, len(bibs))
		for i, b := range bibs {
			names[i] = filepath.Base(b)
		}
		meta["bibliography"] = names
	}
	if _, ok := meta["title"]; !ok && sc.Document.Title != "" {
		meta["title"] = sc.Document.Title
	}
	for k, v := range sc.Target.TemplateOptions {
		meta[k] = v
	}
	if d, ok := meta["date"].(string); ok {
		expanded, err := dateutil.Expand(d, time.Now())
		if err != nil {
			return nil, fmt.Errorf("frontmatter date: %w", err)
		}
		meta["date"] = expanded
	}
	if len(meta) == 0 {
		return nil, nil
	}

	data, err := yamlutil.Marshal(meta)
	if err != nil {
		return nil, err
	}
	p := filepath.Join(dir, "metadata.yaml")
	if err := os.WriteFile(p, data, fileutil.FilePerm); err != nil { // #nosec G306
		return nil, fmt.Errorf("writing metadata: %w", err)
	}
	return []string{"--metadata-file", p}, nil
}

// templateArgs installs the target's template into dir.
func (s renderStage) templateArgs(sc *StageContext, dir string) ([]string, error) {
	if sc.Target.TemplateID == "" {
		return nil, nil
	}
	kind := templateKind(sc.Target.Format)
	if kind == "" {
		return nil, nil
	}
	tpl, err := sc.Templates.Load(kind, sc.Target.TemplateID)
	if err != nil {
		return nil, err
	}
	main, err := tpl.Install(dir)
	if err != nil {
		return nil, err
	}
	if kind == templates.KindDocx {
		return []string{"--reference-doc", main}, nil
	}
	return []string{"--template", main}, nil
}

// ---------------------------------------------------------------------------
// compile: tex -> pdf (latexmk)
// ---------------------------------------------------------------------------

// compileStage runs latexmk against the TeX file in its own directory.
type compileStage struct{}

func (compileStage) Name() string   { return "compile" }
func (compileStage) Input() string  { return KindTeX }
func (compileStage) Output() string { return KindPDF }

func (s compileStage) Run(ctx context.Context, sc *StageContext, in Artifact) (Artifact, error) {
	dir := filepath.Dir(in.Path)
	texName := filepath.Base(in.Path)
	base := strings.TrimSuffix(texName, filepath.Ext(texName))

	cmd := Command{
		Name: sc.Tools.Latexmk,
		Args: []string{"-pdf", "-interaction=nonstopmode", "-halt-on-error", "-file-line-error", texName},
		Dir:  dir,
	}
	stdout, stderr, err := sc.Runner.Run(ctx, cmd)
	if err != nil {
		output := texDiagnostics(filepath.Join(dir, base+".log"))
		if output == "" {
			output = stderr
			if strings.TrimSpace(output) == "" {
				output = stdout
			}
			output = tail(output, maxDiagnosticLines)
		}
		return Artifact{}, &StageExecutionError{Stage: s.Name(), Tool: cmd.Name, Output: output, Err: err}
	}

	pdf := filepath.Join(dir, base+".pdf")
	if !fileutil.FileExists(pdf) {
		return Artifact{}, &StageExecutionError{Stage: s.Name(), Tool: cmd.Name, Err: fmt.Errorf("%w: %s", ErrMissingArtifact, pdf)}
	}
	return Artifact{Path: pdf, Dir: in.Dir, Kind: KindPDF}, nil
}

// texDiagnostics extracts the first error block of a TeX log: the first
// line starting with "!" or in file:line:error form, and what follows.
func texDiagnostics(logPath string) string {
	data, err := os.ReadFile(logPath) // #nosec G304 -- produced by latexmk
	if err != nil {
		return ""
	}
	lines := strings.Split(string(bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))), "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "!") || strings.Contains(line, ".tex:") {
			end := min(i+maxDiagnosticLines/2, len(lines))
			return strings.TrimSpace(strings.Join(lines[i:end], "\n"))
		}
	}
	return tail(string(data), maxDiagnosticLines)
}

// ---------------------------------------------------------------------------
// publish: move the final file onto the output path
// ---------------------------------------------------------------------------

// publishStage copies the final artifact onto OutputPath atomically. It is
// always the last stage, so nothing is written there before every upstream
// stage succeeded.
type publishStage struct {
	kind string
}

func (publishStage) Name() string     { return "publish" }
func (s publishStage) Input() string  { return s.kind }
func (s publishStage) Output() string { return s.kind }

func (s publishStage) Run(ctx context.Context, sc *StageContext, in Artifact) (Artifact, error) {
	out := sc.Target.OutputPath
	if in.Kind == KindBook {
		if err := publishDir(in.Path, out, sc.Target.CleanBeforeWrite); err != nil {
			return Artifact{}, err
		}
	} else if err := fileutil.PublishFile(in.Path, out); err != nil {
		return Artifact{}, fmt.Errorf("writing %s: %w", out, err)
	}
	sc.addArtifact(out)
	if sc.Target.Zip {
		bundle, err := zipOutput(ctx, sc, out)
		if err != nil {
			return Artifact{}, err
		}
		sc.addArtifact(bundle)
	}
	return Artifact{Path: out, Dir: in.Dir, Kind: in.Kind}, nil
}

// zipOutput bundles the published output and the assets it references,
// which sit next to it, into the target's zip path.
func zipOutput(ctx context.Context, sc *StageContext, out string) (string, error) {
	dir, err := sc.WorkDir()
	if err != nil {
		return "", err
	}
	outDir := filepath.Dir(out)
	entries := map[string]string{filepath.Base(out): out}
	if sc.Materialized != nil {
		for _, a := range sc.Materialized.Assets {
			entries[a.RelativePath] = filepath.Join(outDir, filepath.FromSlash(a.RelativePath))
		}
	}
	if sc.Document != nil {
		for _, bib := range sc.Document.Front.Bibliography {
			name := filepath.Base(bib)
			entries[name] = filepath.Join(outDir, name)
		}
	}
	names := slices.Sorted(maps.Keys(entries))

	scratch := filepath.Join(dir, sc.Target.outputBase()+".zip")
	if err := writeZip(ctx, scratch, nil, names, entries); err != nil {
		return "", fmt.Errorf("writing zip: %w", err)
	}
	bundle := sc.Target.ZipPath()
	if err := fileutil.PublishFile(scratch, bundle); err != nil {
		return "", fmt.Errorf("writing %s: %w", bundle, err)
	}
	sc.logger().Debug("output zipped", "target", sc.Target.String(), "zip", bundle, "entries", len(names))
	return bundle, nil
}

// publishDir copies the tree under src into dst, emptying dst first when
// clean is set.
func publishDir(src, dst string, clean bool) error {
	if clean {
		if err := fileutil.CleanDir(dst); err != nil {
			return fmt.Errorf("cleaning %s: %w", dst, err)
		}
	}
	return copyTree(src, dst)
}

// copyTree copies every regular file under src to the same relative path
// under dst.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, fileutil.DirPerm)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return fileutil.CopyFile(p, target)
	})
}

// templateKind maps a format to the template kind it accepts, or "".
func templateKind(f Format) string {
	switch f {
	case FormatTeX, FormatPDF, FormatPDFTeX:
		return templates.KindTeX
	case FormatTypst:
		return templates.KindTypst
	case FormatJATS, FormatMECA:
		return templates.KindJATS
	case FormatDocx:
		return templates.KindDocx
	default:
		return ""
	}
}
