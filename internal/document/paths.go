package document

import (
	"net/url"
	"path/filepath"
	"strings"
)

// ResolveImageURL turns an image source into a fetchable URL.
// Remote URLs pass through. Relative paths are resolved against sourceDir
// and returned as file:// URLs. It returns "" for data URIs, anchors and
// relative paths escaping sourceDir.
func ResolveImageURL(src, sourceDir string) string {
	src = strings.TrimSpace(src)
	switch {
	case src == "", strings.HasPrefix(src, "#"), strings.HasPrefix(src, "data:"):
		return ""
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"), strings.HasPrefix(src, "file://"):
		return src
	case strings.HasPrefix(src, "//"):
		return "https:" + src
	}

	if unescaped, err := url.PathUnescape(src); err == nil {
		src = unescaped
	}
	if filepath.IsAbs(src) {
		return pathToFileURL(src)
	}

	absDir, err := filepath.Abs(sourceDir)
	if err != nil {
		return ""
	}
	absPath := filepath.Join(absDir, filepath.FromSlash(src))
	if !isPathUnderDir(absPath, absDir) {
		return ""
	}
	return pathToFileURL(absPath)
}

// isPathUnderDir checks if absPath is under dir (prevents path traversal).
func isPathUnderDir(absPath, dir string) bool {
	cleanPath := filepath.Clean(absPath)
	cleanDir := filepath.Clean(dir)

	if !strings.HasSuffix(cleanDir, string(filepath.Separator)) {
		cleanDir += string(filepath.Separator)
	}
	return strings.HasPrefix(cleanPath+string(filepath.Separator), cleanDir)
}

// pathToFileURL converts an absolute path to a file:// URL.
// Handles both Unix and Windows paths correctly.
func pathToFileURL(absPath string) string {
	p := filepath.ToSlash(absPath)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p // C:/x -> /C:/x
	}
	u := url.URL{Scheme: "file", Path: p}
	return u.String()
}

// fileStem returns the last path element of src without its extension.
func fileStem(src string) string {
	if u, err := url.Parse(src); err == nil && u.Path != "" {
		src = u.Path
	}
	base := filepath.Base(filepath.FromSlash(src))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
