package docexport

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alnah/go-docexport/internal/document"
	"github.com/alnah/go-docexport/internal/fileutil"
	"github.com/alnah/go-docexport/internal/project"
	"github.com/alnah/go-docexport/internal/yamlutil"
)

// ---------------------------------------------------------------------------
// meca: jats -> zip bundle
// ---------------------------------------------------------------------------

// MECA manifest layout.
const (
	mecaArticle    = "article.xml"
	mecaManifest   = "manifest.xml"
	mecaNamespace  = "https://manuscriptexchange.org/schema/manifest"
	xlinkNamespace = "http://www.w3.org/1999/xlink"
	mecaDoctype    = `<!DOCTYPE manifest PUBLIC "-//MECA//DTD Manifest v1.0//en" "https://meca.zip/manifest-1.0.dtd">`
)

type mecaManifestXML struct {
	XMLName xml.Name   `xml:"manifest"`
	Version string     `xml:"manifest-version,attr"`
	XMLNS   string     `xml:"xmlns,attr"`
	XLink   string     `xml:"xmlns:xlink,attr"`
	Items   []mecaItem `xml:"item"`
}

type mecaItem struct {
	Type     string       `xml:"item-type,attr"`
	Instance mecaInstance `xml:"instance"`
}

type mecaInstance struct {
	MediaType string `xml:"media-type,attr"`
	Href      string `xml:"xlink:href,attr"`
}

// mecaStage zips the JATS article, its assets and a manifest.
type mecaStage struct{}

func (mecaStage) Name() string   { return "meca" }
func (mecaStage) Input() string  { return KindJATS }
func (mecaStage) Output() string { return KindMECA }

func (s mecaStage) Run(ctx context.Context, sc *StageContext, in Artifact) (Artifact, error) {
	dir, err := sc.WorkDir()
	if err != nil {
		return Artifact{}, err
	}
	bundle := filepath.Join(dir, sc.Target.outputBase()+".zip")

	entries := map[string]string{mecaArticle: in.Path}
	if sc.Materialized != nil {
		for _, a := range sc.Materialized.Assets {
			entries[a.RelativePath] = filepath.Join(in.Dir, filepath.FromSlash(a.RelativePath))
		}
	}
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	manifest, err := buildManifest(names)
	if err != nil {
		return Artifact{}, err
	}
	if err := writeZip(ctx, bundle, manifest, names, entries); err != nil {
		return Artifact{}, fmt.Errorf("writing bundle: %w", err)
	}
	return Artifact{Path: bundle, Dir: in.Dir, Kind: KindMECA}, nil
}

// buildManifest lists every bundled file; article.xml is the metadata item.
func buildManifest(names []string) ([]byte, error) {
	m := mecaManifestXML{Version: "1", XMLNS: mecaNamespace, XLink: xlinkNamespace}
	for _, name := range names {
		itemType := "figure"
		if name == mecaArticle {
			itemType = "article-metadata"
		}
		mediaType := mime.TypeByExtension(path.Ext(name))
		if ct := contentTypeForExtension(path.Ext(name)); ct != "" {
			mediaType = ct
		}
		if name == mecaArticle {
			mediaType = "application/xml"
		}
		if mediaType == "" {
			mediaType = "application/octet-stream"
		}
		m.Items = append(m.Items, mecaItem{Type: itemType, Instance: mecaInstance{MediaType: mediaType, Href: name}})
	}
	body, err := xml.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(mecaDoctype + "\n")
	b.Write(body)
	b.WriteString("\n")
	return []byte(b.String()), nil
}

// writeZip writes names, read from files, into a zip at dst. A non-nil
// manifest is stored first as manifest.xml.
func writeZip(ctx context.Context, dst string, manifest []byte, names []string, files map[string]string) (err error) {
	f, err := os.Create(dst) // #nosec G304 -- inside a work dir
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	zw := zip.NewWriter(f)
	if manifest != nil {
		w, err := zw.Create(mecaManifest)
		if err != nil {
			return err
		}
		if _, err := w.Write(manifest); err != nil {
			return err
		}
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addZipFile(zw, name, files[name]); err != nil {
			return fmt.Errorf("adding %s: %w", name, err)
		}
	}
	return zw.Close()
}

func addZipFile(zw *zip.Writer, name, src string) error {
	in, err := os.Open(src) // #nosec G304 -- produced by an earlier stage
	if err != nil {
		return err
	}
	defer in.Close()
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}

// ---------------------------------------------------------------------------
// book: project directory -> jupyter book tree
// ---------------------------------------------------------------------------

// bookStage lays out a project folder as a Jupyter Book. Markdown pages
// have their images materialized into one shared folder at the book root;
// notebooks are copied unchanged.
type bookStage struct{}

func (bookStage) Name() string   { return "book" }
func (bookStage) Input() string  { return KindSource }
func (bookStage) Output() string { return KindBook }

func (s bookStage) Run(ctx context.Context, sc *StageContext, in Artifact) (Artifact, error) {
	proj, err := project.FromPath(in.Path, "")
	if err != nil {
		return Artifact{}, err
	}
	dir, err := sc.WorkDir()
	if err != nil {
		return Artifact{}, err
	}

	pages := make(map[string]*document.Document)
	refs := make(map[string]AssetReference)
	files := proj.Files()
	for _, rel := range files {
		if !strings.EqualFold(path.Ext(rel), ".md") {
			continue
		}
		doc, err := sc.Loader.Load(ctx, filepath.Join(proj.Root, filepath.FromSlash(rel)))
		if err != nil {
			return Artifact{}, err
		}
		pages[rel] = doc
		for k, ref := range documentReferences(doc, projectName(doc), rel+"#", sc.SimpleAssetNames) {
			refs[k] = ref
		}
	}

	res := sc.Assets.Materialize(ctx, refs, dir)
	sc.Materialized = res
	if err := res.Err(); err != nil {
		return Artifact{}, err
	}

	var title, author string
	for _, rel := range files {
		dst := filepath.Join(dir, filepath.FromSlash(rel))
		doc, ok := pages[rel]
		if !ok {
			if err := fileutil.CopyFile(filepath.Join(proj.Root, filepath.FromSlash(rel)), dst); err != nil {
				return Artifact{}, fmt.Errorf("copying %s: %w", rel, err)
			}
			continue
		}
		if rel == proj.Index.File {
			title = doc.Title
			if len(doc.Front.Authors) > 0 {
				author = strings.Join(doc.Front.Authors, ", ")
			}
		}
		prefix := strings.Repeat("../", strings.Count(rel, "/"))
		body := document.RewriteImages(doc.Body, rewriteMap(doc, rel+"#", prefix, res))
		if err := writePage(dst, doc, body); err != nil {
			return Artifact{}, err
		}
	}

	toc, err := proj.RenderTOC()
	if err != nil {
		return Artifact{}, err
	}
	cfg, err := project.RenderConfig(title, author)
	if err != nil {
		return Artifact{}, err
	}
	for name, data := range map[string][]byte{"_toc.yml": toc, "_config.yml": cfg} {
		if err := os.WriteFile(filepath.Join(dir, name), data, fileutil.FilePerm); err != nil { // #nosec G306
			return Artifact{}, fmt.Errorf("writing %s: %w", name, err)
		}
	}
	sc.logger().Debug("book laid out", "target", sc.Target.String(), "pages", len(files), "assets", len(res.Assets))
	return Artifact{Path: dir, Dir: dir, Kind: KindBook}, nil
}

// writePage writes a page body, keeping its frontmatter minus exports.
func writePage(dst string, doc *document.Document, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(dst), fileutil.DirPerm); err != nil {
		return err
	}
	front, err := pageFrontmatter(doc)
	if err != nil {
		return fmt.Errorf("page frontmatter %s: %w", dst, err)
	}
	out := body
	if len(front) > 0 {
		out = append(append([]byte("---\n"), front...), append([]byte("---\n"), body...)...)
	}
	if err := os.WriteFile(dst, out, fileutil.FilePerm); err != nil { // #nosec G306
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return nil
}

// pageFrontmatter re-encodes the page frontmatter without export entries,
// which only drive this tool. It returns nil when nothing is left.
func pageFrontmatter(doc *document.Document) ([]byte, error) {
	if len(doc.Front.Raw) == 0 {
		return nil, nil
	}
	front := make(map[string]any, len(doc.Front.Raw))
	for k, v := range doc.Front.Raw {
		if k != "exports" {
			front[k] = v
		}
	}
	if len(front) == 0 {
		return nil, nil
	}
	return yamlutil.Marshal(front)
}
