// Package document loads authored sources: YAML frontmatter, the first
// heading as a title fallback, and every image the body references.
//
// Images are found in Markdown image syntax and in raw HTML <img> tags.
// Relative image paths are resolved against the source directory and
// turned into file:// URLs; paths escaping that directory are left alone.
package document
