// Package project discovers the pages of a multi-document project folder
// and renders a Jupyter Book table of contents for it.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrIndexNotFound reports a project folder without an index page.
var ErrIndexNotFound = errors.New("project index file not found")

// MaxLevel is the deepest page level; deeper folders stay at this level.
const MaxLevel = 6

// indexFiles are the accepted index page names, compared case-insensitively.
var indexFiles = []string{"readme.md", "index.md"}

// pageExtensions are the file types treated as pages.
var pageExtensions = map[string]bool{".md": true, ".ipynb": true}

// ignoredDirs are never descended into.
var ignoredDirs = map[string]bool{"_build": true, "exports": true, ".git": true, "node_modules": true}

// Entry is a page or a folder heading, in table of contents order.
type Entry struct {
	Title string
	Slug  string
	Level int
	File  string // relative to the project root, slash-separated; "" for folders
}

// IsFolder reports whether the entry is a folder heading.
func (e Entry) IsFolder() bool { return e.File == "" }

// Project is a discovered project folder.
type Project struct {
	Root  string
	Index Entry
	Pages []Entry
}

// Files returns the relative paths of every page, index first.
func (p *Project) Files() []string {
	files := []string{p.Index.File}
	for _, e := range p.Pages {
		if !e.IsFolder() {
			files = append(files, e.File)
		}
	}
	return files
}

// FromPath discovers the project rooted at root. indexFile may be empty to
// search for a default index.
func FromPath(root, indexFile string) (*Project, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	if indexFile == "" {
		for _, e := range entries {
			for _, name := range indexFiles {
				if !e.IsDir() && strings.EqualFold(e.Name(), name) {
					indexFile = filepath.Join(root, e.Name())
					break
				}
			}
			if indexFile != "" {
				break
			}
		}
	}
	if indexFile == "" {
		return nil, fmt.Errorf("%w: looked for %s in %s", ErrIndexNotFound, strings.Join(indexFiles, ", "), root)
	}
	if _, err := os.Stat(indexFile); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, indexFile)
	}

	slugs := make(slugger)
	index := slugs.entry(indexFile)
	rel, err := filepath.Rel(root, indexFile)
	if err != nil {
		return nil, err
	}
	index.File = filepath.ToSlash(rel)

	ignore := map[string]bool{filepath.Clean(indexFile): true}
	pages, err := walk(root, root, 1, slugs, ignore)
	if err != nil {
		return nil, err
	}
	return &Project{Root: root, Index: index, Pages: pages}, nil
}

// walk lists the pages under dir in sorted order. Folders without pages
// are dropped.
func walk(root, dir string, level int, slugs slugger, ignore map[string]bool) ([]Entry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	isDir := make(map[string]bool, len(entries))
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		if ignore[filepath.Clean(full)] {
			continue
		}
		if e.IsDir() {
			if ignoredDirs[e.Name()] || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			isDir[full] = true
		} else if !pageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, full)
	}
	sort.Strings(names)

	var out []Entry
	for _, full := range names {
		if !isDir[full] {
			page := slugs.entry(full)
			page.Level = level
			rel, err := filepath.Rel(root, full)
			if err != nil {
				return nil, err
			}
			page.File = filepath.ToSlash(rel)
			out = append(out, page)
			continue
		}

		folder := slugs.entry(full)
		folder.Level = level
		next := level + 1
		if level >= MaxLevel-1 {
			next = MaxLevel
		}
		children, err := walk(root, full, next, slugs, ignore)
		if err != nil {
			return nil, err
		}
		if len(children) > 0 {
			out = append(out, folder)
			out = append(out, children...)
		}
	}
	return out, nil
}

// slugger hands out unique slugs: repeats get -1, -2, ... suffixes.
type slugger map[string]int

func (s slugger) entry(file string) Entry {
	base := filepath.Base(file)
	slug := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
	title := slug
	if n := s[slug]; n > 0 {
		s[slug] = n + 1
		slug = fmt.Sprintf("%s-%d", slug, n)
	} else {
		s[slug] = 1
	}
	return Entry{Title: title, Slug: slug}
}
