package main

import (
	"fmt"
	"strings"
	"time"

	docexport "github.com/alnah/go-docexport"
)

// exportFailures reports that at least one target failed. The individual
// errors were already printed.
type exportFailures struct {
	errs []error
}

func (e *exportFailures) Error() string {
	return fmt.Sprintf("%d export(s) failed", len(e.errs))
}

func (e *exportFailures) Unwrap() []error { return e.errs }

// reportResults prints results and returns an error when any failed.
func reportResults(results []docexport.BuildResult, flags *exportFlags, env *Environment) error {
	summary := printResultsWithWriter(results, flags.common.quiet, flags.common.verbose, env)
	if summary.Failed == 0 {
		return nil
	}
	failures := docexport.Failures(results)
	errs := make([]error, len(failures))
	for i, r := range failures {
		errs[i] = r.Err
	}
	return &exportFailures{errs: errs}
}

// printResultsWithWriter outputs export results using the provided writers.
func printResultsWithWriter(results []docexport.BuildResult, quiet, verbose bool, env *Environment) docexport.Summary {
	summary := docexport.Summarize(results)

	for _, r := range results {
		if r.Err != nil {
			remote := strings.HasPrefix(r.Target.SourcePath, "http://") || strings.HasPrefix(r.Target.SourcePath, "https://")
			fmt.Fprintf(env.Stderr, "FAILED %s: %v%s\n", r.Target, r.Err, hintFor(r.Err, r.Target.KeepIntermediate, remote))
			continue
		}

		if quiet {
			continue
		}

		for _, a := range r.Artifacts {
			if verbose {
				fmt.Fprintf(env.Stdout, "%s -> %s (%v)\n", r.Target.SourcePath, a, r.Duration.Round(time.Millisecond))
			} else {
				fmt.Fprintf(env.Stdout, "Created %s\n", a)
			}
		}
	}

	if !quiet && len(results) > 1 {
		fmt.Fprintf(env.Stdout, "\n%d succeeded, %d failed\n", summary.Succeeded, summary.Failed)
	}

	return summary
}
