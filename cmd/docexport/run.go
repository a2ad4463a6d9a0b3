package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	docexport "github.com/alnah/go-docexport"
	"github.com/alnah/go-docexport/internal/config"
	"github.com/alnah/go-docexport/internal/hints"
	"github.com/alnah/go-docexport/internal/metrics"
	"github.com/alnah/go-docexport/internal/yamlutil"
)

// errUsage reports wrong command line arguments.
var errUsage = errors.New("usage error")

// run dispatches a command line and returns the process exit code.
func run(args []string, env *Environment) int {
	warnUnknownEnvVars(env.Stderr)

	if len(args) == 0 {
		printUsage(env.Stderr)
		return ExitUsage
	}

	ctx, stop := notifyContext(context.Background())
	defer stop()

	var err error
	switch args[0] {
	case "help", "-h", "--help":
		runHelp(args[1:], env)
		return ExitSuccess
	case "version", "--version":
		fmt.Fprintf(env.Stdout, "docexport %s\n", Version)
		return ExitSuccess
	case "doctor":
		return runDoctorCmd(args[1:], env)
	case "build":
		err = runBuild(ctx, args[1:], env)
	default:
		err = runExport(ctx, args, env)
	}

	if err != nil {
		var failed *exportFailures
		if !errors.As(err, &failed) {
			fmt.Fprintf(env.Stderr, "error: %v%s\n", err, hintFor(err, false, false))
		}
	}
	return exitCodeFor(err)
}

// runExport handles "docexport [flags] <format> <source> [output]".
func runExport(ctx context.Context, args []string, env *Environment) error {
	flags, pos, err := parseExportFlags(args, env.Stderr)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if len(pos) < 2 || len(pos) > 3 {
		printExportUsage(env.Stderr)
		return fmt.Errorf("%w: expected <format> <source> [output]", errUsage)
	}
	format, err := docexport.ParseFormat(pos[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig(flags, env)
	if err != nil {
		return err
	}

	req := docexport.Request{
		Source:          pos[1],
		Format:          format,
		Template:        flags.template.name,
		DisableTemplate: flags.template.disabled,
		Clean:           flags.build.clean,
		Keep:            flags.build.keep,
		Converter:       docexport.Converter(flags.build.converter),
		Zip:             flags.build.zip,
	}
	if len(pos) == 3 {
		req.Output = pos[2]
	}
	if flags.template.options != "" {
		if req.TemplateOptions, err = readOptions(flags.template.options); err != nil {
			return err
		}
	}

	logger := newLogger(env.Stderr, flags.common)
	exp, recorder, err := newExporter(cfg, logger, env)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := exp.Close(); cerr != nil {
			logger.Warn("cleanup failed", "err", cerr)
		}
	}()

	results, err := exp.Export(ctx, req)
	if err != nil {
		return err
	}
	if err := writeMetrics(recorder, cfg.Metrics.File); err != nil {
		logger.Warn("writing metrics", "file", cfg.Metrics.File, "err", err)
	}
	return reportResults(results, flags, env)
}

// runBuild handles "docexport build [flags] <tex> [output]".
func runBuild(ctx context.Context, args []string, env *Environment) error {
	flags, pos, err := parseExportFlags(args, env.Stderr)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if len(pos) < 1 || len(pos) > 2 {
		return fmt.Errorf("%w: expected build <tex> [output]", errUsage)
	}
	cfg, err := loadConfig(flags, env)
	if err != nil {
		return err
	}

	logger := newLogger(env.Stderr, flags.common)
	exp, recorder, err := newExporter(cfg, logger, env)
	if err != nil {
		return err
	}
	defer func() { _ = exp.Close() }()

	output := ""
	if len(pos) == 2 {
		output = pos[1]
	}
	result := exp.BuildPDF(ctx, pos[0], output)
	if err := writeMetrics(recorder, cfg.Metrics.File); err != nil {
		logger.Warn("writing metrics", "file", cfg.Metrics.File, "err", err)
	}
	return reportResults([]docexport.BuildResult{result}, flags, env)
}

// loadConfig loads the config file and merges env vars and flags into it.
func loadConfig(flags *exportFlags, env *Environment) (*config.Config, error) {
	envCfg := loadEnvConfig(env.Getenv)

	name := flags.common.config
	if name == "" {
		name = envCfg.ConfigPath
	}
	cfg := config.DefaultConfig()
	if name != "" {
		var err error
		if cfg, err = config.LoadConfig(name); err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}
	applyEnvConfig(envCfg, cfg)
	mergeFlags(flags, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFlags merges CLI flags into config. CLI values override config values.
func mergeFlags(flags *exportFlags, cfg *config.Config) {
	if flags.tools.pandoc != "" {
		cfg.Tools.Pandoc = flags.tools.pandoc
	}
	if flags.tools.latexmk != "" {
		cfg.Tools.Latexmk = flags.tools.latexmk
	}
	if flags.tools.inkscape != "" {
		cfg.Tools.Inkscape = flags.tools.inkscape
	}
	if flags.tools.magick != "" {
		cfg.Tools.Magick = flags.tools.magick
	}
	if flags.build.images != "" {
		cfg.Assets.Dir = flags.build.images
	}
	if flags.build.simpleNames {
		cfg.Assets.Simple = true
	}
	if flags.build.workers > 0 {
		cfg.Build.MaxParallel = flags.build.workers
	}
	if flags.build.metricsFile != "" {
		cfg.Metrics.File = flags.build.metricsFile
	}
}

// newExporter builds the exporter described by cfg.
func newExporter(cfg *config.Config, logger *log.Logger, env *Environment) (*docexport.Exporter, *metrics.PrometheusRecorder, error) {
	opts := []docexport.Option{
		docexport.WithLogger(logger),
		docexport.WithTools(docexport.Tools{
			Pandoc:   cfg.Tools.Pandoc,
			Latexmk:  cfg.Tools.Latexmk,
			Inkscape: cfg.Tools.Inkscape,
			Magick:   cfg.Tools.Magick,
		}),
		docexport.WithTemplatesDir(cfg.Templates.Path),
		docexport.WithImagesDir(cfg.Assets.Dir),
		docexport.WithSimpleAssetNames(cfg.Assets.Simple),
		docexport.WithTempRoot(cfg.Build.TempDir),
		docexport.WithMaxParallel(cfg.Build.MaxParallel),
		docexport.WithKeepIntermediate(cfg.Build.KeepTemp),
		docexport.WithFetcher(docexport.NewHTTPFetcher(cfg.FetchTimeout())),
	}
	var recorder *metrics.PrometheusRecorder
	if cfg.Metrics.File != "" {
		recorder = metrics.NewPrometheusRecorder(nil)
		opts = append(opts, docexport.WithRecorder(recorder))
	}
	opts = append(opts, env.Options...)

	exp, err := docexport.NewExporter(opts...)
	if err != nil {
		return nil, nil, err
	}
	return exp, recorder, nil
}

// readOptions reads a YAML mapping of template options.
func readOptions(path string) (map[string]any, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided path
	if err != nil {
		return nil, fmt.Errorf("reading options: %w", err)
	}
	var opts map[string]any
	if err := yamlutil.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("%w: options %s: %v", errUsage, path, err)
	}
	return opts, nil
}

func writeMetrics(r *metrics.PrometheusRecorder, path string) error {
	if r == nil || path == "" {
		return nil
	}
	return r.WriteTextfile(path)
}

// hintFor returns an actionable hint for err, or "". kept tells whether
// intermediates were retained; remote whether the source was a URL.
func hintFor(err error, kept, remote bool) string {
	var se *docexport.StageExecutionError
	switch {
	case errors.Is(err, docexport.ErrToolNotFound) && errors.As(err, &se):
		return hints.ForMissingTool(filepath.Base(se.Tool))
	case errors.Is(err, config.ErrConfigNotFound):
		return hints.ForConfigNotFound(configSearchPaths())
	case errors.Is(err, docexport.ErrTemplateNotFound):
		return hints.ForTemplateNotFound(nil)
	case errors.As(err, &se) && se.Stage == "compile":
		return hints.ForTeXFailure(kept)
	case remote && errors.As(err, &se) && se.Stage == "load":
		return hints.ForRemoteSource()
	case errors.Is(err, os.ErrPermission):
		return hints.ForOutputDirectory()
	}
	return ""
}

// configSearchPaths lists the user-level config locations.
func configSearchPaths() []string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil
	}
	return []string{filepath.Join(dir, config.AppDir, "docexport.yaml")}
}
