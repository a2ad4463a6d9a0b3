package docexport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alnah/go-docexport/internal/document"
	"github.com/alnah/go-docexport/internal/templates"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	catalog, err := templates.NewCatalog("")
	if err != nil {
		t.Fatal(err)
	}
	return NewResolver(catalog)
}

// ---------------------------------------------------------------------------
// TestResolve - Output derivation
// ---------------------------------------------------------------------------

func TestResolve_OutputPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeFile(t, dir, "paper.md", "# Paper")
	outDir := filepath.Join(dir, "out")
	if err := os.Mkdir(outDir, 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		req    Request
		want   string
		format Format
	}{
		{
			name:   "default under exports",
			req:    Request{Source: src, Format: FormatTeX},
			want:   filepath.Join(dir, "exports", "paper.tex"),
			format: FormatTeX,
		},
		{
			name:   "explicit output kept",
			req:    Request{Source: src, Format: FormatPDF, Output: filepath.Join(dir, "final.pdf")},
			want:   filepath.Join(dir, "final.pdf"),
			format: FormatPDF,
		},
		{
			name:   "missing extension appended",
			req:    Request{Source: src, Format: FormatDocx, Output: filepath.Join(dir, "report")},
			want:   filepath.Join(dir, "report.docx"),
			format: FormatDocx,
		},
		{
			name:   "existing directory gets the base name",
			req:    Request{Source: src, Format: FormatJATS, Output: outDir},
			want:   filepath.Join(outDir, "paper.xml"),
			format: FormatJATS,
		},
		{
			name:   "trailing slash is a directory",
			req:    Request{Source: src, Format: FormatMECA, Output: filepath.Join(dir, "bundles") + "/"},
			want:   filepath.Join(dir, "bundles", "paper.zip"),
			format: FormatMECA,
		},
		{
			name:   "keep promotes pdf",
			req:    Request{Source: src, Format: FormatPDF, Keep: true},
			want:   filepath.Join(dir, "exports", "paper.pdf"),
			format: FormatPDFTeX,
		},
		{
			name:   "project directory for books",
			req:    Request{Source: dir, Format: FormatJupyterBook},
			want:   filepath.Join(dir, "exports", filepath.Base(dir)),
			format: FormatJupyterBook,
		},
	}

	r := newTestResolver(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			targets, err := r.Resolve(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if len(targets) != 1 {
				t.Fatalf("got %d targets, want 1", len(targets))
			}
			got := targets[0]
			if got.OutputPath != tt.want {
				t.Errorf("OutputPath = %q, want %q", got.OutputPath, tt.want)
			}
			if got.Format != tt.format {
				t.Errorf("Format = %q, want %q", got.Format, tt.format)
			}
			if got.SourcePath != tt.req.Source {
				t.Errorf("SourcePath = %q", got.SourcePath)
			}
		})
	}
}

func TestResolve_RemoteSource(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	targets, err := r.Resolve(context.Background(), Request{
		Source: "https://example.org/articles/paper.md?raw=1",
		Format: FormatTeX,
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("exports", "paper.tex"); targets[0].OutputPath != want {
		t.Errorf("OutputPath = %q, want %q", targets[0].OutputPath, want)
	}

	_, err = r.Resolve(context.Background(), Request{Source: "https://example.org/", Format: FormatTeX})
	if !errors.Is(err, ErrOutputPath) {
		t.Errorf("URL without a file name = %v, want ErrOutputPath", err)
	}
}

// ---------------------------------------------------------------------------
// TestResolve - Declared exports
// ---------------------------------------------------------------------------

func TestResolve_Entries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeFile(t, dir, "paper.md", "# Paper")
	entries := []ExportEntry{
		{Format: FormatPDF, Output: "build/paper.pdf", Template: "plain", Options: map[string]any{"fontsize": "11pt"}},
		{Format: FormatPDFTeX, Output: "build/paper-tex.pdf"},
		{Format: FormatDocx},
	}
	r := newTestResolver(t)

	t.Run("all entries", func(t *testing.T) {
		t.Parallel()

		targets, err := r.Resolve(context.Background(), Request{Source: src, Exports: entries})
		if err != nil {
			t.Fatal(err)
		}
		if len(targets) != 3 {
			t.Fatalf("got %d targets, want 3", len(targets))
		}
		if targets[0].OutputPath != filepath.Join(dir, "build", "paper.pdf") {
			t.Errorf("relative output not joined to the source dir: %q", targets[0].OutputPath)
		}
		if targets[0].TemplateID != "plain" || targets[0].TemplateOptions["fontsize"] != "11pt" {
			t.Errorf("entry template not carried: %+v", targets[0])
		}
		if targets[2].OutputPath != filepath.Join(dir, "exports", "paper.docx") {
			t.Errorf("entry without output = %q", targets[2].OutputPath)
		}
	})

	t.Run("pdf matches pdftex entries", func(t *testing.T) {
		t.Parallel()

		targets, err := r.Resolve(context.Background(), Request{Source: src, Format: FormatPDF, Exports: entries})
		if err != nil {
			t.Fatal(err)
		}
		if len(targets) != 2 || targets[1].Format != FormatPDFTeX {
			t.Errorf("targets = %+v, want pdf and pdftex", targets)
		}
	})

	t.Run("explicit output takes first entry options", func(t *testing.T) {
		t.Parallel()

		out := filepath.Join(dir, "one.pdf")
		targets, err := r.Resolve(context.Background(), Request{
			Source:          src,
			Format:          FormatPDF,
			Output:          out,
			TemplateOptions: map[string]any{"fontsize": "12pt"},
			Exports:         entries,
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(targets) != 1 || targets[0].OutputPath != out {
			t.Fatalf("targets = %+v", targets)
		}
		if targets[0].Format != FormatPDF {
			t.Errorf("Format = %q, request format wins", targets[0].Format)
		}
		if targets[0].TemplateOptions["fontsize"] != "12pt" {
			t.Errorf("request options must override entry options: %v", targets[0].TemplateOptions)
		}
	})

	t.Run("disable template", func(t *testing.T) {
		t.Parallel()

		targets, err := r.Resolve(context.Background(), Request{Source: src, Format: FormatPDF, DisableTemplate: true, Exports: entries[:1]})
		if err != nil {
			t.Fatal(err)
		}
		if targets[0].TemplateID != "" {
			t.Errorf("TemplateID = %q, want empty", targets[0].TemplateID)
		}
	})
}

func TestEntriesFromDocument(t *testing.T) {
	t.Parallel()

	got := EntriesFromDocument([]document.Export{
		{Format: "latex", Output: "a.tex"},
		{Format: "html"},
	})
	if got[0].Format != FormatTeX || got[0].Output != "a.tex" {
		t.Errorf("entry 0 = %+v", got[0])
	}
	if got[1].Format != "html" {
		t.Errorf("unknown formats must be kept for reporting, got %q", got[1].Format)
	}
}

// ---------------------------------------------------------------------------
// TestResolve - Configuration errors
// ---------------------------------------------------------------------------

func TestResolve_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeFile(t, dir, "paper.md", "# Paper")

	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{"empty source", Request{Format: FormatTeX}, ErrSourceNotFound},
		{"missing source", Request{Source: filepath.Join(dir, "nope.md"), Format: FormatTeX}, ErrSourceNotFound},
		{"unknown format", Request{Source: src, Format: "html"}, ErrUnknownFormat},
		{"no format and no exports", Request{Source: src}, ErrUnknownFormat},
		{"unknown entry format", Request{Source: src, Exports: []ExportEntry{{Format: "html"}}}, ErrUnknownFormat},
		{"book needs directory", Request{Source: src, Format: FormatJupyterBook}, ErrSourceNotDirectory},
		{"book from URL", Request{Source: "https://x/p.md", Format: FormatJupyterBook}, ErrSourceNotDirectory},
		{"document from directory", Request{Source: dir, Format: FormatPDF}, ErrSourceIsDirectory},
		{"wrong extension", Request{Source: src, Format: FormatPDF, Output: filepath.Join(dir, "a.docx")}, ErrOutputPath},
		{"unknown template", Request{Source: src, Format: FormatTeX, Template: "nope"}, ErrTemplateNotFound},
		{"template on notebook", Request{Source: src, Format: FormatNotebook, Template: "plain"}, ErrTemplateUnsupported},
		{"unknown converter", Request{Source: src, Format: FormatPDF, Converter: "rsvg"}, ErrUnknownConverter},
		{"zip on pdf", Request{Source: src, Format: FormatPDF, Zip: true}, ErrZipUnsupported},
		{
			"duplicate outputs",
			Request{Source: src, Exports: []ExportEntry{{Format: FormatTeX}, {Format: FormatTeX, Output: "exports/paper.tex"}}},
			ErrDuplicateOutput,
		},
	}

	r := newTestResolver(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			targets, err := r.Resolve(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
			}
			var ce *ConfigurationError
			if !errors.As(err, &ce) {
				t.Errorf("error %T is not a ConfigurationError", err)
			}
			if targets != nil {
				t.Errorf("targets = %v, want none on error", targets)
			}
		})
	}
}

func TestResolve_ConverterAndZip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeFile(t, dir, "paper.md", "# Paper")
	entries := []ExportEntry{{Format: FormatTeX}, {Format: FormatTypst}, {Format: FormatDocx}, {Format: FormatPDF}}

	tests := []struct {
		name    string
		req     Request
		wantCnv map[Format]Converter
		wantZip map[Format]bool
	}{
		{
			name:    "defaults",
			req:     Request{Source: src, Exports: entries},
			wantCnv: map[Format]Converter{FormatTeX: ConverterInkscape, FormatPDF: ConverterInkscape},
			wantZip: map[Format]bool{},
		},
		{
			name:    "imagemagick and zip",
			req:     Request{Source: src, Exports: entries, Converter: ConverterImageMagick, Zip: true},
			wantCnv: map[Format]Converter{FormatTeX: ConverterImageMagick, FormatPDF: ConverterImageMagick},
			wantZip: map[Format]bool{FormatTeX: true, FormatTypst: true},
		},
	}

	r := newTestResolver(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			targets, err := r.Resolve(context.Background(), tt.req)
			if err != nil {
				t.Fatal(err)
			}
			if len(targets) != len(entries) {
				t.Fatalf("targets = %d, want %d", len(targets), len(entries))
			}
			for _, tg := range targets {
				if tg.Converter != tt.wantCnv[tg.Format] {
					t.Errorf("%s converter = %q, want %q", tg.Format, tg.Converter, tt.wantCnv[tg.Format])
				}
				if tg.Zip != tt.wantZip[tg.Format] {
					t.Errorf("%s zip = %v, want %v", tg.Format, tg.Zip, tt.wantZip[tg.Format])
				}
			}
		})
	}
}

func TestResolve_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewResolver(nil).Resolve(ctx, Request{Source: "x", Format: FormatTeX})
	if !errors.Is(err, context.Canceled) || !errors.Is(err, ErrConfiguration) {
		t.Errorf("Resolve() = %v, want canceled configuration error", err)
	}
}
