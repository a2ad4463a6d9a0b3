package docexport

import (
	"mime"
	"strings"
)

// contentTypeAliases covers non-standard content types seen in the wild.
// They are consulted before the standard table.
var contentTypeAliases = map[string]string{
	"image/jpg": "jpg",
}

// contentTypeExtensions maps MIME types to the preferred file extension.
// The table is fixed so extension derivation does not depend on the
// mime.types files installed on the host.
var contentTypeExtensions = map[string]string{
	"image/png":                "png",
	"image/jpeg":               "jpeg",
	"image/gif":                "gif",
	"image/svg+xml":            "svg",
	"image/webp":               "webp",
	"image/tiff":               "tif",
	"image/bmp":                "bmp",
	"image/x-icon":             "ico",
	"image/vnd.microsoft.icon": "ico",
	"image/avif":               "avif",
	"image/heic":               "heic",
	"application/pdf":          "pdf",
	"application/postscript":   "ai",
	"application/eps":          "eps",
	"application/json":         "json",
	"application/zip":          "zip",
	"application/x-ipynb+json": "ipynb",
	"text/plain":               "txt",
	"text/csv":                 "csv",
	"text/html":                "html",
	"text/markdown":            "md",
	"text/x-tex":               "tex",
	"application/x-tex":        "tex",
	"application/x-bibtex":     "bib",
	"video/mp4":                "mp4",
	"video/webm":               "webm",
	"audio/mpeg":               "mp3",
}

// ExtensionForContentType returns the file extension (without dot) for a
// content type. Parameters such as charset are ignored. ok is false for
// content types with no known extension.
func ExtensionForContentType(contentType string) (ext string, ok bool) {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = parsed
	}
	if mediaType == "" {
		return "", false
	}
	if ext, ok := contentTypeAliases[mediaType]; ok {
		return ext, true
	}
	ext, ok = contentTypeExtensions[mediaType]
	return ext, ok
}
