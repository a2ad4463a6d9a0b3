package main

import (
	"io"

	flag "github.com/spf13/pflag"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// templateFlags selects and parameterizes the template.
type templateFlags struct {
	name     string
	disabled bool
	options  string // YAML file with template options
}

// buildFlags controls what is written and kept.
type buildFlags struct {
	clean       bool
	keep        bool
	workers     int
	images      string
	simpleNames bool
	metricsFile string
	zip         bool
	converter   string
}

// toolFlags override renderer binaries.
type toolFlags struct {
	pandoc   string
	latexmk  string
	inkscape string
	magick   string
}

// exportFlags holds all flags for an export.
type exportFlags struct {
	common   commonFlags
	template templateFlags
	build    buildFlags
	tools    toolFlags
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show debug logs and timing")
}

// addTemplateFlags adds template flags to a FlagSet.
func addTemplateFlags(fs *flag.FlagSet, f *templateFlags) {
	fs.StringVarP(&f.name, "template", "t", "", "template name or directory path")
	fs.BoolVar(&f.disabled, "disable-template", false, "render without any template")
	fs.StringVarP(&f.options, "options", "o", "", "YAML file of template options")
}

// addBuildFlags adds build flags to a FlagSet.
func addBuildFlags(fs *flag.FlagSet, f *buildFlags) {
	fs.BoolVar(&f.clean, "clean", false, "empty retained folders before writing")
	fs.BoolVar(&f.keep, "keep", false, "keep intermediate files (TeX next to the PDF)")
	fs.IntVarP(&f.workers, "workers", "w", 0, "targets run at once (0 = all)")
	fs.StringVarP(&f.images, "images", "i", "", "asset folder inside the build folder")
	fs.BoolVar(&f.simpleNames, "simple-names", false, "name assets by content id only")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this file")
	fs.BoolVar(&f.zip, "zip", false, "also zip tex or typst output with its assets")
	fs.StringVar(&f.converter, "converter", "", "SVG converter for TeX and PDF (inkscape, imagemagick)")
}

// addToolFlags adds renderer binary flags to a FlagSet.
func addToolFlags(fs *flag.FlagSet, f *toolFlags) {
	fs.StringVar(&f.pandoc, "pandoc", "", "pandoc binary")
	fs.StringVar(&f.latexmk, "latexmk", "", "latexmk binary")
	fs.StringVar(&f.inkscape, "inkscape", "", "inkscape binary")
	fs.StringVar(&f.magick, "magick", "", "ImageMagick binary")
}

// newExportFlagSet builds the flag set of the export command.
func newExportFlagSet(f *exportFlags, usage io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("docexport", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	addCommonFlags(fs, &f.common)
	addTemplateFlags(fs, &f.template)
	addBuildFlags(fs, &f.build)
	addToolFlags(fs, &f.tools)
	fs.Usage = func() { printExportUsage(usage) }
	return fs
}

// parseExportFlags parses export flags and returns positional args.
func parseExportFlags(args []string, usage io.Writer) (*exportFlags, []string, error) {
	f := &exportFlags{}
	fs := newExportFlagSet(f, usage)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return f, fs.Args(), nil
}
