package docexport

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for library operations.
// Typed errors below match these with errors.Is.
var (
	ErrConfiguration              = errors.New("export configuration error")
	ErrAssetFetch                 = errors.New("asset fetch failed")
	ErrFilenameCollisionExhausted = errors.New("no free filename for asset")
	ErrStageExecution             = errors.New("conversion stage failed")

	// Resolution errors, wrapped in ConfigurationError.
	ErrSourceNotFound      = errors.New("source not found")
	ErrUnknownFormat       = errors.New("unknown export format")
	ErrTemplateNotFound    = errors.New("template not found")
	ErrOutputPath          = errors.New("cannot determine output path")
	ErrDuplicateOutput     = errors.New("duplicate output path")
	ErrSourceNotDirectory  = errors.New("source must be a project directory")
	ErrSourceIsDirectory   = errors.New("source must be a document, not a directory")
	ErrTemplateUnsupported = errors.New("format does not take a template")
	ErrUnknownConverter    = errors.New("unknown svg converter")
	ErrZipUnsupported      = errors.New("format cannot be zipped")

	// Stage errors, wrapped in StageExecutionError.
	ErrMissingArtifact = errors.New("expected artifact was not produced")
	ErrToolNotFound    = errors.New("renderer binary not found")
)

// ConfigurationError reports a request that cannot be turned into
// well-formed export targets. It aborts an export before any target runs.
type ConfigurationError struct {
	Field string // request field or component that failed, may be empty
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func configErrorf(field string, err error, format string, args ...any) error {
	return &ConfigurationError{Field: field, Err: fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))}
}

// AssetErrorKind classifies asset failures.
type AssetErrorKind string

const (
	AssetErrNetwork     AssetErrorKind = "network"
	AssetErrContentType AssetErrorKind = "unrecognized content type"
	AssetErrWrite       AssetErrorKind = "write"
)

// AssetFetchError fails a single asset. Sibling assets are unaffected.
type AssetFetchError struct {
	Key  string
	URL  string
	Kind AssetErrorKind
	Err  error
}

func (e *AssetFetchError) Error() string {
	return fmt.Sprintf("asset %q (%s): %s: %v", e.Key, e.URL, e.Kind, e.Err)
}

func (e *AssetFetchError) Unwrap() error { return e.Err }

func (e *AssetFetchError) Is(target error) bool { return target == ErrAssetFetch }

// FilenameCollisionExhaustedError reports that every candidate name of an
// asset was already claimed in the current build.
type FilenameCollisionExhaustedError struct {
	Key        string
	Candidates []string
}

func (e *FilenameCollisionExhaustedError) Error() string {
	return fmt.Sprintf("asset %q: all candidate names taken: %s", e.Key, strings.Join(e.Candidates, ", "))
}

func (e *FilenameCollisionExhaustedError) Is(target error) bool {
	return target == ErrFilenameCollisionExhausted
}

// StageExecutionError reports a failed pipeline stage. Output carries the
// diagnostic text of the external tool, when there is one.
type StageExecutionError struct {
	Stage  string
	Tool   string
	Output string
	Err    error
}

func (e *StageExecutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "stage %s", e.Stage)
	if e.Tool != "" {
		fmt.Fprintf(&b, " (%s)", e.Tool)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		fmt.Fprintf(&b, "\n%s", out)
	}
	return b.String()
}

func (e *StageExecutionError) Unwrap() error { return e.Err }

func (e *StageExecutionError) Is(target error) bool { return target == ErrStageExecution }
