package main

// Notes:
// - exitCodeFor: we test the sentinels of docexport and config, plus wrapped
//   and joined errors to verify the errors.Is() chain.
// - A stage failure caused by a missing file is an I/O error, not a
//   renderer error.

import (
	"errors"
	"fmt"
	"os"
	"testing"

	docexport "github.com/alnah/go-docexport"
	"github.com/alnah/go-docexport/internal/config"
)

// ---------------------------------------------------------------------------
// TestExitCodeFor - Error to exit code mapping
// ---------------------------------------------------------------------------

func TestExitCodeFor(t *testing.T) {
	t.Parallel()

	stage := func(err error) error {
		return &docexport.StageExecutionError{Stage: "render-tex", Tool: "pandoc", Err: err}
	}

	tests := []struct {
		name string
		err  error
		want int
	}{
		// Success
		{"nil error", nil, ExitSuccess},

		// Renderer errors (exit 4)
		{"tool not found", docexport.ErrToolNotFound, ExitRenderer},
		{"stage failure", stage(errors.New("exit status 1")), ExitRenderer},
		{"stage with missing tool", stage(docexport.ErrToolNotFound), ExitRenderer},

		// I/O errors (exit 3)
		{"file not exist", os.ErrNotExist, ExitIO},
		{"permission denied", os.ErrPermission, ExitIO},
		{"asset fetch", &docexport.AssetFetchError{Key: "image-1", Kind: docexport.AssetErrNetwork, Err: errors.New("timeout")}, ExitIO},
		{"asset inside stage", stage(&docexport.AssetFetchError{Key: "image-1", Err: errors.New("x")}), ExitIO},
		{"missing file inside stage", stage(fmt.Errorf("reading: %w", os.ErrNotExist)), ExitIO},
		{"name collision", &docexport.FilenameCollisionExhaustedError{Key: "image-1"}, ExitIO},

		// Usage/config errors (exit 2)
		{"usage", fmt.Errorf("%w: bad flag", errUsage), ExitUsage},
		{"configuration", &docexport.ConfigurationError{Err: docexport.ErrSourceNotFound}, ExitUsage},
		{"unknown format", fmt.Errorf("parse: %w", docexport.ErrUnknownFormat), ExitUsage},
		{"config not found", config.ErrConfigNotFound, ExitUsage},
		{"config parse", config.ErrConfigParse, ExitUsage},
		{"field too long", config.ErrFieldTooLong, ExitUsage},
		{"invalid value", config.ErrInvalidValue, ExitUsage},
		{"empty config name", config.ErrEmptyConfigName, ExitUsage},

		// Batches exit with the code of the first failure
		{"joined failures", &exportFailures{errs: []error{stage(errors.New("x")), os.ErrNotExist}}, ExitRenderer},

		// General errors (exit 1)
		{"unknown error", errors.New("something unexpected"), ExitGeneral},
		{"panic", &docexport.PanicError{Value: "boom"}, ExitGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestExitCodes_Conventions(t *testing.T) {
	t.Parallel()

	if ExitSuccess != 0 || ExitGeneral != 1 || ExitUsage != 2 {
		t.Error("exit codes must follow Unix conventions")
	}
	for _, code := range []int{ExitIO, ExitRenderer} {
		if code <= ExitUsage || code >= 126 {
			t.Errorf("custom exit code %d out of range", code)
		}
	}
}
