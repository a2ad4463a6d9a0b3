package docexport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/alnah/go-docexport/internal/fileutil"
)

// MaxAssetSize caps a single fetched asset (256MB).
const MaxAssetSize = 256 << 20

// defaultFetchTimeout bounds one HTTP request when no client is injected.
const defaultFetchTimeout = 60 * time.Second

// FetchedAsset is the payload returned by a Fetcher.
type FetchedAsset struct {
	Data        []byte
	ContentType string
}

// Fetcher retrieves the bytes behind an asset or source URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*FetchedAsset, error)
}

// Compile-time interface check.
var _ Fetcher = (*HTTPFetcher)(nil)

// HTTPFetcher fetches http(s) URLs with an http.Client and reads file://
// URLs and plain paths from disk.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher creates a fetcher whose requests time out after timeout.
// A zero timeout uses the default.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &HTTPFetcher{Client: &http.Client{Timeout: timeout}}
}

// Fetch returns the content and content type at rawURL.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*FetchedAsset, error) {
	if !fileutil.IsURL(rawURL) {
		return readLocal(rawURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing URL: %w", err)
	}
	if u.Scheme == "file" {
		return readLocal(u.Path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: %s", rawURL, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxAssetSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if len(data) > MaxAssetSize {
		return nil, fmt.Errorf("GET %s: body exceeds %d bytes", rawURL, MaxAssetSize)
	}
	return &FetchedAsset{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}

// readLocal reads a file and guesses its content type from the extension.
func readLocal(p string) (*FetchedAsset, error) {
	data, err := os.ReadFile(p) // #nosec G304 -- path comes from the document
	if err != nil {
		return nil, err
	}
	return &FetchedAsset{Data: data, ContentType: contentTypeForExtension(filepath.Ext(p))}, nil
}

// extensionContentTypes overrides the inverted table where several content
// types share an extension.
var extensionContentTypes = map[string]string{
	"jpg": "image/jpeg",
	"tif": "image/tiff",
	"ico": "image/x-icon",
	"tex": "application/x-tex",
}

// contentTypeForExtension inverts the content type table for local files.
// Ties are broken by the smallest content type so the result is stable.
func contentTypeForExtension(ext string) string {
	ext = fileutil.NormalizeExtension(ext)
	if ct, ok := extensionContentTypes[ext]; ok {
		return ct
	}
	best := ""
	for ct, e := range contentTypeExtensions {
		if e == ext && (best == "" || ct < best) {
			best = ct
		}
	}
	return best
}
