package project

import (
	"fmt"
	"path"
	"strings"

	"github.com/alnah/go-docexport/internal/yamlutil"
)

// TOC is a Jupyter Book _toc.yml in jb-book format.
type TOC struct {
	Format string `yaml:"format"`
	Root   string `yaml:"root"`
	Parts  []Part `yaml:"parts,omitempty"`
}

// Part groups chapters under an optional caption.
type Part struct {
	Caption  string    `yaml:"caption,omitempty"`
	Chapters []Chapter `yaml:"chapters"`
}

// Chapter references a page file without its extension.
type Chapter struct {
	File string `yaml:"file"`
}

// BookConfig is a minimal Jupyter Book _config.yml.
type BookConfig struct {
	Title             string        `yaml:"title"`
	Author            string        `yaml:"author,omitempty"`
	OnlyBuildTOCFiles bool          `yaml:"only_build_toc_files"`
	Execute           ExecuteConfig `yaml:"execute"`
}

// ExecuteConfig controls notebook execution during the book build.
type ExecuteConfig struct {
	ExecuteNotebooks string `yaml:"execute_notebooks"`
}

// TOC builds the table of contents. Top-level folders become captioned
// parts; deeper levels are flattened into their part.
func (p *Project) TOC() TOC {
	toc := TOC{Format: "jb-book", Root: stripExt(p.Index.File)}
	var current *Part
	for _, e := range p.Pages {
		if e.Level == 1 {
			switch {
			case e.IsFolder():
				toc.Parts = append(toc.Parts, Part{Caption: e.Title})
				current = &toc.Parts[len(toc.Parts)-1]
				continue
			case current == nil || current.Caption != "":
				toc.Parts = append(toc.Parts, Part{})
				current = &toc.Parts[len(toc.Parts)-1]
			}
		}
		if e.IsFolder() || current == nil {
			continue
		}
		current.Chapters = append(current.Chapters, Chapter{File: stripExt(e.File)})
	}
	return toc
}

// RenderTOC returns the _toc.yml content.
func (p *Project) RenderTOC() ([]byte, error) {
	data, err := yamlutil.Marshal(p.TOC())
	if err != nil {
		return nil, fmt.Errorf("rendering table of contents: %w", err)
	}
	return data, nil
}

// RenderConfig returns the _config.yml content for a book titled title.
func RenderConfig(title, author string) ([]byte, error) {
	if strings.TrimSpace(title) == "" {
		title = "Untitled"
	}
	data, err := yamlutil.Marshal(BookConfig{
		Title:             title,
		Author:            author,
		OnlyBuildTOCFiles: true,
		Execute:           ExecuteConfig{ExecuteNotebooks: "off"},
	})
	if err != nil {
		return nil, fmt.Errorf("rendering book config: %w", err)
	}
	return data, nil
}

func stripExt(file string) string {
	return strings.TrimSuffix(file, path.Ext(file))
}
