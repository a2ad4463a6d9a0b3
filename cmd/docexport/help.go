package main

import (
	"fmt"
	"io"
	"strings"

	docexport "github.com/alnah/go-docexport"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: docexport [flags] <format> <source> [output]")
	fmt.Fprintln(w, "       docexport <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  build      Compile an existing .tex file to PDF")
	fmt.Fprintln(w, "  doctor     Check that renderers are installed")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'docexport help export' for export flags.")
}

// printExportUsage prints usage for an export.
func printExportUsage(w io.Writer) {
	formats := make([]string, 0, len(docexport.Formats()))
	for _, f := range docexport.Formats() {
		formats = append(formats, string(f))
	}

	fmt.Fprintln(w, "Usage: docexport [flags] <format> <source> [output]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Export a document (or a project folder for jupyterBook).")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintf(w, "  format    %s\n", strings.Join(formats, ", "))
	fmt.Fprintln(w, "  source    Markdown file, project folder, or http(s) URL")
	fmt.Fprintln(w, "  output    Output file (default: frontmatter exports, else exports/<name>)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Template:")
	fmt.Fprintln(w, "  -t, --template <s>        Template name or directory path")
	fmt.Fprintln(w, "      --disable-template    Render without any template")
	fmt.Fprintln(w, "  -o, --options <path>      YAML file of template options")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Build:")
	fmt.Fprintln(w, "      --clean               Empty retained folders before writing")
	fmt.Fprintln(w, "      --keep                Keep intermediate files")
	fmt.Fprintln(w, "  -w, --workers <n>         Targets run at once (0 = all)")
	fmt.Fprintln(w, "  -i, --images <dir>        Asset folder inside the build folder")
	fmt.Fprintln(w, "      --simple-names        Name assets by content id only")
	fmt.Fprintln(w, "      --metrics-file <path> Write Prometheus metrics to a file")
	fmt.Fprintln(w, "      --zip                 Also zip tex or typst output with its assets")
	fmt.Fprintln(w, "      --converter <name>    SVG converter: inkscape (default), imagemagick")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Renderers:")
	fmt.Fprintln(w, "      --pandoc <path>       pandoc binary")
	fmt.Fprintln(w, "      --latexmk <path>      latexmk binary")
	fmt.Fprintln(w, "      --inkscape <path>     inkscape binary")
	fmt.Fprintln(w, "      --magick <path>       ImageMagick binary")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output Control:")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Show debug logs and timing")
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return
	}

	switch args[0] {
	case "export":
		printExportUsage(env.Stdout)
	case "build":
		fmt.Fprintln(env.Stdout, "Usage: docexport build [flags] <tex> [output]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Compile an existing TeX file with latexmk.")
	case "doctor":
		fmt.Fprintln(env.Stdout, "Usage: docexport doctor [--json]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Check that pandoc and latexmk can be run.")
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: docexport version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: docexport help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
	}
}
