package templates

import "errors"

// Sentinel errors for template operations.
var (
	// ErrTemplateNotFound indicates the requested template does not exist.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrUnknownKind indicates a kind that takes no template.
	ErrUnknownKind = errors.New("format does not take a template")

	// ErrInvalidName indicates the template name contains path separators
	// or traversal sequences.
	ErrInvalidName = errors.New("invalid template name")

	// ErrInvalidBasePath indicates the configured base path is not a valid directory.
	ErrInvalidBasePath = errors.New("invalid base path")

	// ErrTemplateRead indicates an I/O error while reading a template.
	ErrTemplateRead = errors.New("failed to read template")

	// ErrPathTraversal indicates an attempt to access files outside the base path.
	ErrPathTraversal = errors.New("path traversal detected")
)
