package document

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/alnah/go-docexport/internal/fileutil"
	"github.com/alnah/go-docexport/internal/yamlutil"
)

// MaxSourceSize caps a source document (32MB).
const MaxSourceSize = 32 << 20

// MarkdownLoader reads Markdown sources with goldmark.
type MarkdownLoader struct {
	md goldmark.Markdown
}

// NewMarkdownLoader creates a loader that understands GFM and footnotes.
func NewMarkdownLoader() *MarkdownLoader {
	return &MarkdownLoader{md: goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
		),
	)}
}

// Load reads and scans the document at path.
func (l *MarkdownLoader) Load(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt", "":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxSourceSize {
		return nil, fmt.Errorf("source %s exceeds %d bytes", path, MaxSourceSize)
	}
	content, err := os.ReadFile(path) // #nosec G304 -- user-provided source
	if err != nil {
		return nil, err
	}
	return l.Parse(content, path)
}

// Parse scans content as if read from path. Relative images resolve
// against the directory of path.
func (l *MarkdownLoader) Parse(content []byte, path string) (*Document, error) {
	front, body, err := yamlutil.SplitFrontmatter(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	doc := &Document{Path: path, Body: body}
	if len(bytes.TrimSpace(front)) > 0 {
		if err := yamlutil.Unmarshal(front, &doc.Front); err != nil {
			return nil, fmt.Errorf("%s: frontmatter: %w", path, err)
		}
		if err := yamlutil.Unmarshal(front, &doc.Front.Raw); err != nil {
			return nil, fmt.Errorf("%s: frontmatter: %w", path, err)
		}
	}

	sc := &scanner{source: body, dir: filepath.Dir(path)}
	root := l.md.Parser().Parse(text.NewReader(body))
	if err := ast.Walk(root, sc.visit); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	doc.Images = sc.images
	doc.Title = doc.Front.Title
	if doc.Title == "" {
		doc.Title = sc.heading
	}
	return doc, nil
}

// scanner collects images and the first level-1 heading.
type scanner struct {
	source  []byte
	dir     string
	images  []Image
	heading string
}

func (s *scanner) visit(n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	switch node := n.(type) {
	case *ast.Heading:
		if node.Level == 1 && s.heading == "" {
			s.heading = strings.TrimSpace(nodeText(node, s.source))
		}
	case *ast.Image:
		s.add(string(node.Destination), fileutil.Slug(string(node.Title)), false)
	case *ast.HTMLBlock:
		var buf bytes.Buffer
		lines := node.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(s.source))
		}
		if node.HasClosure() {
			buf.Write(node.ClosureLine.Value(s.source))
		}
		s.scanHTML(buf.String())
	case *ast.RawHTML:
		var buf bytes.Buffer
		for i := 0; i < node.Segments.Len(); i++ {
			seg := node.Segments.At(i)
			buf.Write(seg.Value(s.source))
		}
		s.scanHTML(buf.String())
	}
	return ast.WalkContinue, nil
}

// scanHTML records <img src> tags of a raw HTML fragment.
func (s *scanner) scanHTML(fragment string) {
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.DataAtom != atom.Img {
				continue
			}
			var src, title string
			for _, a := range tok.Attr {
				switch a.Key {
				case "src":
					src = a.Val
				case "title":
					title = a.Val
				}
			}
			s.add(src, fileutil.Slug(title), true)
		}
	}
}

// add records an image unless its source cannot be fetched.
func (s *scanner) add(src, name string, fromHTML bool) {
	u := ResolveImageURL(src, s.dir)
	if u == "" {
		return
	}
	s.images = append(s.images, Image{
		Key:      fmt.Sprintf("image-%d", len(s.images)+1),
		Src:      src,
		URL:      u,
		Name:     name,
		FileName: fileutil.Slug(fileStem(src)),
		HTML:     fromHTML,
	})
}

// nodeText concatenates the text segments below n.
func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// RewriteImages replaces image sources in body. paths maps an image source
// as written to its new location. Markdown destinations and HTML src
// attributes are rewritten.
func RewriteImages(body []byte, paths map[string]string) []byte {
	if len(paths) == 0 {
		return body
	}
	pairs := make([]string, 0, len(paths)*8)
	for src, dst := range paths {
		pairs = append(pairs,
			"]("+src+")", "]("+dst+")",
			"]("+src+" ", "]("+dst+" ",
			"](<"+src+">", "](<"+dst+">",
			`src="`+src+`"`, `src="`+dst+`"`,
		)
	}
	return []byte(strings.NewReplacer(pairs...).Replace(string(body)))
}
