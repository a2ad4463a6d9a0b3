package templates

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Template kinds. Several export formats share a kind (pdf and pdftex use tex).
const (
	KindTeX   = "tex"
	KindTypst = "typst"
	KindJATS  = "jats"
	KindDocx  = "docx"
)

// mainFiles holds the file each kind hands to the renderer.
var mainFiles = map[string]string{
	KindTeX:   "template.tex",
	KindTypst: "template.typ",
	KindJATS:  "template.xml",
	KindDocx:  "reference.docx",
}

// MainFile returns the main file name for kind.
func MainFile(kind string) (string, error) {
	name, ok := mainFiles[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return name, nil
}

// Kinds lists the kinds that accept templates, sorted.
func Kinds() []string {
	kinds := make([]string, 0, len(mainFiles))
	for k := range mainFiles {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Template is a located template directory.
type Template struct {
	Name string // name or path it was requested by
	Kind string
	Main string // main file name inside the directory
	// files is rooted at the template directory.
	files fs.FS
}

// Install copies the template files into dir and returns the path of the
// main file. Subdirectories are copied as well.
func (t *Template) Install(dir string) (string, error) {
	err := fs.WalkDir(t.files, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		dest := filepath.Join(dir, filepath.FromSlash(p))
		if d.IsDir() {
			return os.MkdirAll(dest, 0o750)
		}
		data, err := fs.ReadFile(t.files, p)
		if err != nil {
			return err
		}
		return os.WriteFile(dest, data, 0o644) // #nosec G306 -- template files are not secret
	})
	if err != nil {
		return "", fmt.Errorf("%w: installing %q: %v", ErrTemplateRead, t.Name, err)
	}
	return filepath.Join(dir, t.Main), nil
}
