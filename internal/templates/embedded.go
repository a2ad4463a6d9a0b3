package templates

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
)

//go:embed builtin
var builtin embed.FS

// DefaultName is the name of the built-in template of each kind that has one.
const DefaultName = "plain"

// EmbeddedLoader loads the templates compiled into the binary.
type EmbeddedLoader struct{}

// NewEmbeddedLoader creates an EmbeddedLoader.
func NewEmbeddedLoader() *EmbeddedLoader {
	return &EmbeddedLoader{}
}

// Load returns a built-in template.
func (e *EmbeddedLoader) Load(kind, name string) (*Template, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	main, err := MainFile(kind)
	if err != nil {
		return nil, err
	}

	dir := path.Join("builtin", kind, name)
	if _, err := fs.Stat(builtin, path.Join(dir, main)); err != nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrTemplateNotFound, kind, name)
	}
	sub, err := fs.Sub(builtin, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateRead, err)
	}
	return &Template{Name: name, Kind: kind, Main: main, files: sub}, nil
}

// Compile-time interface check.
var _ Loader = (*EmbeddedLoader)(nil)
