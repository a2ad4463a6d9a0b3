package templates

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemLoader loads templates from a directory on the filesystem.
// Implements Loader interface.
type FilesystemLoader struct {
	basePath string
}

// NewFilesystemLoader creates a FilesystemLoader for the given base path.
// Returns ErrInvalidBasePath if the path is not a valid, readable directory.
func NewFilesystemLoader(basePath string) (*FilesystemLoader, error) {
	if basePath == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidBasePath)
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBasePath, err)
	}

	// Resolve symlinks in base path for consistent containment checks
	if realPath, err := filepath.EvalSymlinks(absPath); err == nil {
		absPath = realPath
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: directory does not exist: %s", ErrInvalidBasePath, absPath)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidBasePath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: not a directory: %s", ErrInvalidBasePath, absPath)
	}
	if _, err := os.ReadDir(absPath); err != nil {
		return nil, fmt.Errorf("%w: cannot read directory: %v", ErrInvalidBasePath, err)
	}

	return &FilesystemLoader{basePath: absPath}, nil
}

// Load looks for {basePath}/{kind}/{name}/{main file}.
func (f *FilesystemLoader) Load(kind, name string) (*Template, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	main, err := MainFile(kind)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(f.basePath, kind, name)
	if err := f.verifyPathContainment(dir); err != nil {
		return nil, err
	}

	if _, err := os.Stat(filepath.Join(dir, main)); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrTemplateNotFound, kind, name)
		}
		return nil, fmt.Errorf("%w: %v", ErrTemplateRead, err)
	}
	return &Template{Name: name, Kind: kind, Main: main, files: os.DirFS(dir)}, nil
}

// verifyPathContainment ensures the resolved path is within basePath, after
// symlink resolution.
func (f *FilesystemLoader) verifyPathContainment(p string) error {
	absPath, err := filepath.Abs(p)
	if err != nil {
		return fmt.Errorf("%w: cannot resolve path", ErrPathTraversal)
	}
	if realPath, err := filepath.EvalSymlinks(absPath); err == nil {
		absPath = realPath
	}
	// Separator suffix prevents /base/path matching /base/pathevil
	if !strings.HasPrefix(absPath, f.basePath+string(filepath.Separator)) {
		return fmt.Errorf("%w: path escapes base directory", ErrPathTraversal)
	}
	return nil
}

// FromPath loads a template given as a path. A file path names the main
// file directly; a directory path must contain the main file of kind.
func FromPath(kind, p string) (*Template, error) {
	main, err := MainFile(kind)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, p)
		}
		return nil, fmt.Errorf("%w: %v", ErrTemplateRead, err)
	}

	dir := p
	if !info.IsDir() {
		dir, main = filepath.Dir(p), filepath.Base(p)
	} else if _, err := os.Stat(filepath.Join(dir, main)); err != nil {
		return nil, fmt.Errorf("%w: %s has no %s", ErrTemplateNotFound, p, main)
	}
	return &Template{Name: p, Kind: kind, Main: main, files: os.DirFS(dir)}, nil
}

// Compile-time interface check.
var _ Loader = (*FilesystemLoader)(nil)
