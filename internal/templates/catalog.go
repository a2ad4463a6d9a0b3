package templates

import (
	"errors"

	"github.com/alnah/go-docexport/internal/fileutil"
)

// Catalog combines custom and embedded loaders with fallback logic.
// Custom templates take precedence; the embedded set is consulted only when
// the custom loader reports the template as missing.
type Catalog struct {
	custom   Loader // nil if no custom path configured
	embedded Loader
}

// NewCatalog creates a Catalog. An empty customBasePath uses only the
// built-in templates. Returns an error if customBasePath is set but invalid.
func NewCatalog(customBasePath string) (*Catalog, error) {
	c := &Catalog{embedded: NewEmbeddedLoader()}
	if customBasePath != "" {
		fsLoader, err := NewFilesystemLoader(customBasePath)
		if err != nil {
			return nil, err
		}
		c.custom = fsLoader
	}
	return c, nil
}

// Load resolves a template reference, which is either a name or a path.
func (c *Catalog) Load(kind, ref string) (*Template, error) {
	if fileutil.IsFilePath(ref) {
		return FromPath(kind, ref)
	}
	if c.custom == nil {
		return c.embedded.Load(kind, ref)
	}

	t, err := c.custom.Load(kind, ref)
	if err == nil {
		return t, nil
	}
	// Only fall back for "not found" errors, not validation or I/O errors
	if !errors.Is(err, ErrTemplateNotFound) {
		return nil, err
	}
	return c.embedded.Load(kind, ref)
}

// HasCustomLoader returns true if a custom template directory is configured.
func (c *Catalog) HasCustomLoader() bool {
	return c.custom != nil
}

// Compile-time interface check.
var _ Loader = (*Catalog)(nil)
