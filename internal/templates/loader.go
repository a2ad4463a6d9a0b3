package templates

// Loader locates templates by kind and name.
// Implementations may load from embedded files, the filesystem, etc.
type Loader interface {
	// Load returns the named template of kind.
	// Returns ErrTemplateNotFound if the template doesn't exist.
	// Returns ErrInvalidName if the name contains invalid characters.
	Load(kind, name string) (*Template, error)
}
