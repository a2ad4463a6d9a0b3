// Package docexport exports Markdown documents and document projects to
// publication formats: TeX, PDF, Word, JATS, MECA, Typst, Jupyter notebooks
// and Jupyter Books.
//
// # Quick Start
//
// Create an exporter, export, and close when done:
//
//	exp, err := docexport.NewExporter()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exp.Close()
//
//	results, err := exp.Export(ctx, docexport.Request{
//	    Source: "paper.md",
//	    Format: docexport.FormatPDF,
//	})
//	if err != nil {
//	    log.Fatal(err) // configuration error, nothing ran
//	}
//	for _, r := range results {
//	    fmt.Println(r.Target.OutputPath, r.Err)
//	}
//
// # Export Flow
//
// An export goes through these steps:
//
//  1. The Resolver expands the request (and the frontmatter "exports"
//     entries of the source) into independent ExportTargets.
//  2. The BatchExecutor runs every target concurrently and settles all of
//     them: one failing target never stops the others.
//  3. Each target runs the stage pipeline of its format. Stages share
//     nothing but the per-target StageContext.
//  4. The asset stage fetches every image once per build and writes it
//     under a unique, deterministic name.
//
// Renderers (pandoc, latexmk) run as subprocesses through a CommandRunner.
// The final file is written onto the output path only after every stage
// succeeded, by an atomic rename.
//
// # Configuration
//
// Use functional options to customize the exporter:
//
//	exp, err := docexport.NewExporter(
//	    docexport.WithMaxParallel(4),
//	    docexport.WithTemplatesDir("/path/to/templates"),
//	    docexport.WithLogger(logger),
//	)
//
// # Errors
//
// A *ConfigurationError returned by Export means no target ran. Every
// other failure is carried by its BuildResult: *StageExecutionError for a
// failed stage, *AssetFetchError and *FilenameCollisionExhaustedError for
// assets. Each matches its sentinel with errors.Is.
package docexport
