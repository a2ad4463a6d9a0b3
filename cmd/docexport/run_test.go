package main

// Notes:
// - run: exercised end to end with a fake renderer injected through
//   Environment.Options, so no pandoc or latexmk is needed.
// - Signal handling (notifyContext) is not tested.

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	docexport "github.com/alnah/go-docexport"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// fakeRenderer writes a marker file wherever pandoc or latexmk would.
type fakeRenderer struct {
	mu    sync.Mutex
	calls []docexport.Command
	fail  map[string]error
}

func (f *fakeRenderer) Run(_ context.Context, c docexport.Command) (string, string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()

	if err, ok := f.fail[c.Name]; ok {
		return "", "! Undefined control sequence.", err
	}
	switch c.Name {
	case "pandoc":
		out := flagValue(c.Args, "--output")
		return "", "", os.WriteFile(out, []byte("rendered"), 0o644)
	case "latexmk":
		tex := c.Args[len(c.Args)-1]
		pdf := strings.TrimSuffix(tex, filepath.Ext(tex)) + ".pdf"
		return "", "", os.WriteFile(filepath.Join(c.Dir, pdf), []byte("%PDF-1.7"), 0o644)
	}
	return "", "", fmt.Errorf("%w: %s", docexport.ErrToolNotFound, c.Name)
}

func (f *fakeRenderer) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

func flagValue(args []string, name string) string {
	for i, a := range args {
		if a == name && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// testEnv returns an environment with captured output, an empty process
// environment, and r as the renderer.
func testEnv(t *testing.T, r docexport.CommandRunner) (*Environment, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	env := &Environment{
		Stdout: &stdout,
		Stderr: &stderr,
		Getenv: func(string) string { return "" },
		Options: []docexport.Option{
			docexport.WithRunner(r),
			docexport.WithTempRoot(t.TempDir()),
		},
	}
	return env, &stdout, &stderr
}

// writeDoc writes a markdown document without images.
func writeDoc(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const plainDoc = "---\ntitle: Notes\n---\n\n# Notes\n\nSome text.\n"

// ---------------------------------------------------------------------------
// TestRun_Dispatch - Commands without exports
// ---------------------------------------------------------------------------

func TestRun_Dispatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{"no args", nil, ExitUsage, "", "Usage: docexport"},
		{"version", []string{"version"}, ExitSuccess, "docexport dev", ""},
		{"version flag", []string{"--version"}, ExitSuccess, "docexport dev", ""},
		{"help", []string{"help"}, ExitSuccess, "Commands:", ""},
		{"help export", []string{"help", "export"}, ExitSuccess, "--template", ""},
		{"short help", []string{"-h"}, ExitSuccess, "Usage: docexport", ""},
		{"one positional", []string{"tex"}, ExitUsage, "", "<format> <source> [output]"},
		{"too many positionals", []string{"tex", "a.md", "b.tex", "c"}, ExitUsage, "", "error:"},
		{"unknown flag", []string{"--nope", "tex", "a.md"}, ExitUsage, "", "error:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env, stdout, stderr := testEnv(t, &fakeRenderer{})
			code := run(tt.args, env)

			if code != tt.wantCode {
				t.Errorf("run(%v) = %d, want %d (stderr: %s)", tt.args, code, tt.wantCode, stderr)
			}
			if tt.wantStdout != "" && !strings.Contains(stdout.String(), tt.wantStdout) {
				t.Errorf("stdout = %q, want it to contain %q", stdout, tt.wantStdout)
			}
			if tt.wantStderr != "" && !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Errorf("stderr = %q, want it to contain %q", stderr, tt.wantStderr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestRun_Export - Exports through the fake renderer
// ---------------------------------------------------------------------------

func TestRun_ExportTeX(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeDoc(t, dir, "notes.md", plainDoc)
	out := filepath.Join(dir, "build", "notes.tex")

	r := &fakeRenderer{}
	env, stdout, stderr := testEnv(t, r)
	code := run([]string{"tex", src, out}, env)

	if code != ExitSuccess {
		t.Fatalf("run() = %d, want %d (stderr: %s)", code, ExitSuccess, stderr)
	}
	if !strings.Contains(stdout.String(), "Created "+out) {
		t.Errorf("stdout = %q, want Created line for %s", stdout, out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output not written: %v", err)
	}
	if r.count("pandoc") != 1 {
		t.Errorf("pandoc calls = %d, want 1", r.count("pandoc"))
	}
}

func TestRun_ExportQuiet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeDoc(t, dir, "notes.md", plainDoc)

	env, stdout, _ := testEnv(t, &fakeRenderer{})
	code := run([]string{"--quiet", "docx", src, filepath.Join(dir, "notes.docx")}, env)

	if code != ExitSuccess {
		t.Fatalf("run() = %d, want %d", code, ExitSuccess)
	}
	if stdout.Len() != 0 {
		t.Errorf("quiet run printed %q", stdout)
	}
}

func TestRun_ExportPDF(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeDoc(t, dir, "notes.md", plainDoc)
	out := filepath.Join(dir, "notes.pdf")

	r := &fakeRenderer{}
	env, _, stderr := testEnv(t, r)
	if code := run([]string{"pdf", src, out}, env); code != ExitSuccess {
		t.Fatalf("run() = %d, want %d (stderr: %s)", code, ExitSuccess, stderr)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Errorf("pdf content = %q", data)
	}
	if r.count("latexmk") != 1 {
		t.Errorf("latexmk calls = %d, want 1", r.count("latexmk"))
	}
}

func TestRun_ExportErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeDoc(t, dir, "notes.md", plainDoc)

	tests := []struct {
		name       string
		args       []string
		fail       map[string]error
		wantCode   int
		wantStderr string
	}{
		{
			name:       "unknown format",
			args:       []string{"html", src},
			wantCode:   ExitUsage,
			wantStderr: "error:",
		},
		{
			name:       "missing source",
			args:       []string{"tex", filepath.Join(dir, "absent.md")},
			wantCode:   ExitUsage,
			wantStderr: "error:",
		},
		{
			name:       "missing config",
			args:       []string{"--config", filepath.Join(dir, "absent.yaml"), "tex", src},
			wantCode:   ExitUsage,
			wantStderr: "config file not found",
		},
		{
			name:       "unknown template",
			args:       []string{"--template", "no-such-template", "tex", src, filepath.Join(dir, "t.tex")},
			wantCode:   ExitUsage,
			wantStderr: "error:",
		},
		{
			name:       "unknown converter",
			args:       []string{"--converter", "rsvg", "pdf", src, filepath.Join(dir, "c.pdf")},
			wantCode:   ExitUsage,
			wantStderr: "unknown svg converter",
		},
		{
			name:       "zip on docx",
			args:       []string{"--zip", "docx", src, filepath.Join(dir, "z.docx")},
			wantCode:   ExitUsage,
			wantStderr: "cannot be zipped",
		},
		{
			name:       "renderer failure",
			args:       []string{"pdf", src, filepath.Join(dir, "failed.pdf")},
			fail:       map[string]error{"latexmk": errors.New("exit status 12")},
			wantCode:   ExitRenderer,
			wantStderr: "FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env, _, stderr := testEnv(t, &fakeRenderer{fail: tt.fail})
			code := run(tt.args, env)

			if code != tt.wantCode {
				t.Errorf("run(%v) = %d, want %d (stderr: %s)", tt.args, code, tt.wantCode, stderr)
			}
			if !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Errorf("stderr = %q, want it to contain %q", stderr, tt.wantStderr)
			}
		})
	}
}

func TestRun_ExportZip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeDoc(t, dir, "notes.md", plainDoc)
	out := filepath.Join(dir, "build", "notes.typ")
	bundle := filepath.Join(dir, "build", "notes.zip")

	env, stdout, stderr := testEnv(t, &fakeRenderer{})
	if code := run([]string{"--zip", "typst", src, out}, env); code != ExitSuccess {
		t.Fatalf("run() = %d, want %d (stderr: %s)", code, ExitSuccess, stderr)
	}
	for _, p := range []string{out, bundle} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s not written: %v", p, err)
		}
		if !strings.Contains(stdout.String(), "Created "+p) {
			t.Errorf("stdout = %q, want Created line for %s", stdout, p)
		}
	}
}

func TestRun_RendererFailureLeavesNoOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeDoc(t, dir, "notes.md", plainDoc)
	out := filepath.Join(dir, "notes.pdf")

	env, _, stderr := testEnv(t, &fakeRenderer{fail: map[string]error{"latexmk": errors.New("exit status 12")}})
	run([]string{"pdf", src, out}, env)

	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("failed export left %s behind (err = %v)", out, err)
	}
	if strings.Contains(stderr.String(), "error: ") {
		t.Errorf("batch failures must not be printed twice: %q", stderr)
	}
}

func TestRun_MetricsFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeDoc(t, dir, "notes.md", plainDoc)
	metricsFile := filepath.Join(dir, "docexport.prom")

	env, _, stderr := testEnv(t, &fakeRenderer{})
	code := run([]string{"--metrics-file", metricsFile, "tex", src, filepath.Join(dir, "notes.tex")}, env)
	if code != ExitSuccess {
		t.Fatalf("run() = %d, want %d (stderr: %s)", code, ExitSuccess, stderr)
	}

	data, err := os.ReadFile(metricsFile)
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	want := `docexport_target_results_total{format="tex",result="success"} 1`
	if !strings.Contains(string(data), want) {
		t.Errorf("metrics file missing %q:\n%s", want, data)
	}
}

func TestRun_TemplateOptions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeDoc(t, dir, "notes.md", plainDoc)
	opts := filepath.Join(dir, "opts.yaml")
	if err := os.WriteFile(opts, []byte("fontsize: 11pt\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	env, _, stderr := testEnv(t, &fakeRenderer{})
	code := run([]string{"--options", opts, "tex", src, filepath.Join(dir, "notes.tex")}, env)
	if code != ExitSuccess {
		t.Errorf("run() = %d, want %d (stderr: %s)", code, ExitSuccess, stderr)
	}
}

// ---------------------------------------------------------------------------
// TestRun_Build - Compiling an existing TeX file
// ---------------------------------------------------------------------------

func TestRun_Build(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tex := writeDoc(t, dir, "paper.tex", "\\documentclass{article}\\begin{document}x\\end{document}\n")
	out := filepath.Join(dir, "paper.pdf")

	r := &fakeRenderer{}
	env, stdout, stderr := testEnv(t, r)
	code := run([]string{"build", tex, out}, env)

	if code != ExitSuccess {
		t.Fatalf("run(build) = %d, want %d (stderr: %s)", code, ExitSuccess, stderr)
	}
	if !strings.Contains(stdout.String(), "Created "+out) {
		t.Errorf("stdout = %q, want Created line", stdout)
	}
	if r.count("pandoc") != 0 {
		t.Error("build must not run pandoc")
	}
}

func TestRun_BuildUsage(t *testing.T) {
	t.Parallel()

	env, _, _ := testEnv(t, &fakeRenderer{})
	if code := run([]string{"build"}, env); code != ExitUsage {
		t.Errorf("run(build) with no file = %d, want %d", code, ExitUsage)
	}
}

// ---------------------------------------------------------------------------
// TestReadOptions - Template option files
// ---------------------------------------------------------------------------

func TestReadOptions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	if err := os.WriteFile(good, []byte("venue: JOSS\ncolumns: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("- just\n- a list\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, err := readOptions(good)
	if err != nil {
		t.Fatalf("readOptions() error = %v", err)
	}
	if opts["venue"] != "JOSS" {
		t.Errorf("venue = %v, want JOSS", opts["venue"])
	}

	if _, err := readOptions(bad); !errors.Is(err, errUsage) {
		t.Errorf("readOptions(list) error = %v, want errUsage", err)
	}
	if _, err := readOptions(filepath.Join(dir, "absent.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("readOptions(missing) error = %v, want os.ErrNotExist", err)
	}
}

// ---------------------------------------------------------------------------
// TestHintFor - Actionable hints
// ---------------------------------------------------------------------------

func TestHintFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		kept   bool
		remote bool
		want   bool
	}{
		{"missing tool", &docexport.StageExecutionError{Stage: "render-tex", Tool: "/usr/bin/pandoc", Err: docexport.ErrToolNotFound}, false, false, true},
		{"tex failure", &docexport.StageExecutionError{Stage: "compile", Tool: "latexmk", Err: errors.New("exit 12")}, false, false, true},
		{"remote load", &docexport.StageExecutionError{Stage: "load", Err: errors.New("404")}, false, true, true},
		{"local load", &docexport.StageExecutionError{Stage: "load", Err: errors.New("bad yaml")}, false, false, false},
		{"permission", fmt.Errorf("writing: %w", os.ErrPermission), false, false, true},
		{"plain error", errors.New("boom"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := hintFor(tt.err, tt.kept, tt.remote)
			if (got != "") != tt.want {
				t.Errorf("hintFor(%v) = %q, want hint: %v", tt.err, got, tt.want)
			}
		})
	}
}
