package main

import (
	"errors"
	"os"

	docexport "github.com/alnah/go-docexport"
	"github.com/alnah/go-docexport/internal/config"
)

// Exit codes for the docexport CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess  = 0 // Every target succeeded
	ExitGeneral  = 1 // General/unexpected error
	ExitUsage    = 2 // Invalid flags, config, or export request
	ExitIO       = 3 // File not found, permission denied, asset download
	ExitRenderer = 4 // pandoc or latexmk failed or is missing
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// A failed batch exits with the code of its first failure.
	var failed *exportFailures
	if errors.As(err, &failed) && len(failed.errs) > 0 {
		return exitCodeFor(failed.errs[0])
	}

	// Usage/config errors (exit 2)
	if errors.Is(err, errUsage) ||
		errors.Is(err, docexport.ErrConfiguration) ||
		errors.Is(err, docexport.ErrUnknownFormat) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, config.ErrEmptyConfigName) {
		return ExitUsage
	}

	// Renderer errors (exit 4)
	if errors.Is(err, docexport.ErrToolNotFound) ||
		errors.Is(err, docexport.ErrStageExecution) && !errors.Is(err, docexport.ErrAssetFetch) && !errors.Is(err, os.ErrNotExist) {
		return ExitRenderer
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, docexport.ErrAssetFetch) ||
		errors.Is(err, docexport.ErrFilenameCollisionExhausted) {
		return ExitIO
	}

	return ExitGeneral
}
