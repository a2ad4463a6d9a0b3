package docexport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Mock Implementations
// ---------------------------------------------------------------------------

// fakeRunner stands in for pandoc, latexmk and the SVG converters. pandoc
// writes a marker file at --output; latexmk writes <base>.pdf next to the
// .tex file; inkscape and magick write a PNG at their output path.
type fakeRunner struct {
	mu    sync.Mutex
	calls []Command
	// inputs holds the content of each pandoc input, in call order.
	inputs []string
	// metadata holds the content of each pandoc --metadata-file.
	metadata []string

	// fail maps a tool name (or "pandoc:<to>") to the error it returns.
	fail   map[string]error
	stderr string
	// skipOutput makes the tool succeed without writing its output.
	skipOutput bool
	// delay blocks each call, honoring ctx.
	delay time.Duration
}

func (f *fakeRunner) Run(ctx context.Context, c Command) (string, string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", "", ctx.Err()
		}
	}

	to := argAfter(c.Args, "--to")
	if err, ok := f.fail[c.Name]; ok {
		return "", f.stderr, err
	}
	if err, ok := f.fail[c.Name+":"+to]; ok {
		return "", f.stderr, err
	}
	if f.skipOutput {
		return "", "", nil
	}

	switch c.Name {
	case "pandoc":
		if data, err := os.ReadFile(c.Args[0]); err == nil {
			f.mu.Lock()
			f.inputs = append(f.inputs, string(data))
			f.mu.Unlock()
		}
		if meta := argAfter(c.Args, "--metadata-file"); meta != "" {
			if data, err := os.ReadFile(meta); err == nil {
				f.mu.Lock()
				f.metadata = append(f.metadata, string(data))
				f.mu.Unlock()
			}
		}
		out := argAfter(c.Args, "--output")
		return "", "", os.WriteFile(out, []byte("rendered "+to+" from "+filepath.Base(c.Args[0])), 0o644)
	case "latexmk":
		tex := c.Args[len(c.Args)-1]
		pdf := strings.TrimSuffix(tex, filepath.Ext(tex)) + ".pdf"
		return "", "", os.WriteFile(filepath.Join(c.Dir, pdf), []byte("%PDF-1.7 fake"), 0o644)
	case "inkscape":
		return "", "", os.WriteFile(argAfter(c.Args, "--export-filename"), png.Data, 0o644)
	case "magick":
		return "", "", os.WriteFile(c.Args[len(c.Args)-1], png.Data, 0o644)
	}
	return "", "", fmt.Errorf("%w: %s", ErrToolNotFound, c.Name)
}

func (f *fakeRunner) Inputs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inputs...)
}

func (f *fakeRunner) Metadata() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.metadata...)
}

func (f *fakeRunner) Calls() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.calls...)
}

// callsTo returns the invocations of one tool.
func (f *fakeRunner) callsTo(name string) []Command {
	var out []Command
	for _, c := range f.Calls() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(a, flag+"="); ok {
			return v
		}
	}
	return ""
}

// fakeFetcher serves assets from memory. URLs it does not know go to
// fallback when set.
type fakeFetcher struct {
	assets   map[string]FetchedAsset
	errs     map[string]error
	fallback Fetcher
	calls    atomic.Int64
	delay    time.Duration
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*FetchedAsset, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	a, ok := f.assets[rawURL]
	if !ok {
		if f.fallback != nil {
			return f.fallback.Fetch(ctx, rawURL)
		}
		return nil, errors.New("404 not found")
	}
	return &a, nil
}

var png = FetchedAsset{Data: []byte("\x89PNG fake"), ContentType: "image/png"}

// writeFile writes content under dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("reading %s: %v", p, err)
	}
	return string(data)
}
