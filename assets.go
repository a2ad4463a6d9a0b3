package docexport

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/alnah/go-docexport/internal/fileutil"
	"github.com/alnah/go-docexport/internal/metrics"
)

// errEmptySource reports an asset reference with no URL to fetch.
var errEmptySource = errors.New("empty source URL")

// AssetMaterializer fetches document assets and writes them under a build
// folder with unique names.
type AssetMaterializer struct {
	fetcher  Fetcher
	basePath string // folder inside the build folder, e.g. "images"
	recorder metrics.Recorder
}

// NewAssetMaterializer creates a materializer writing assets into basePath
// (relative to each build folder).
func NewAssetMaterializer(fetcher Fetcher, basePath string) *AssetMaterializer {
	return &AssetMaterializer{
		fetcher:  fetcher,
		basePath: basePath,
		recorder: metrics.NoopRecorder{},
	}
}

// WithRecorder sets the metrics recorder.
func (m *AssetMaterializer) WithRecorder(r metrics.Recorder) *AssetMaterializer {
	if r != nil {
		m.recorder = r
	}
	return m
}

// MaterializeResult holds the per-asset outcome of one build.
type MaterializeResult struct {
	Assets map[string]MaterializedAsset
	Failed map[string]error
}

// Paths returns key -> relative path for every written asset, for rewriting
// references in the document.
func (r *MaterializeResult) Paths() map[string]string {
	paths := make(map[string]string, len(r.Assets))
	for k, a := range r.Assets {
		paths[k] = a.RelativePath
	}
	return paths
}

// Err joins the per-asset failures in key order, or returns nil.
func (r *MaterializeResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	keys := make([]string, 0, len(r.Failed))
	for k := range r.Failed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	errs := make([]error, 0, len(keys))
	for _, k := range keys {
		errs = append(errs, r.Failed[k])
	}
	return errors.Join(errs...)
}

// claimSet is the build-scoped set of taken relative paths.
type claimSet struct {
	mu    sync.Mutex
	taken map[string]*claim
}

func newClaimSet(n int) *claimSet {
	return &claimSet{taken: make(map[string]*claim, n)}
}

// claim is one taken path. done is closed once the owner finished writing
// it; err holds the write outcome.
type claim struct {
	identity string
	done     chan struct{}
	err      error
}

// finish records the owner's write outcome and wakes deduplicated siblings.
func (c *claim) finish(err error) {
	c.err = err
	close(c.done)
}

// wait blocks until the owner finished writing.
func (c *claim) wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// claim selects the first candidate not taken by a different identity and
// marks it taken. Check and insert happen under one lock. dedup is true when
// the path was already claimed for the same identity; the returned claim is
// then the owner's.
func (c *claimSet) claim(candidates []string, identity string) (path string, owner *claim, dedup bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range candidates {
		taken, found := c.taken[p]
		if !found {
			cl := &claim{identity: identity, done: make(chan struct{})}
			c.taken[p] = cl
			return p, cl, false, true
		}
		if identity != "" && taken.identity == identity {
			return p, taken, true, true
		}
	}
	return "", nil, false, false
}

// Materialize fetches every asset concurrently and writes it under
// buildFolder. One goroutine runs per asset. Failures are recorded per asset
// and never stop siblings.
func (m *AssetMaterializer) Materialize(ctx context.Context, refs map[string]AssetReference, buildFolder string) *MaterializeResult {
	result := &MaterializeResult{
		Assets: make(map[string]MaterializedAsset, len(refs)),
		Failed: make(map[string]error),
	}
	if len(refs) == 0 {
		return result
	}

	claims := newClaimSet(len(refs))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	logger := LoggerFrom(ctx)

	for key, ref := range refs {
		if ref.Key == "" {
			ref.Key = key
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			asset, err := m.materializeOne(ctx, ref, buildFolder, claims)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed[key] = err
				m.recorder.IncAssetResult(false)
				logger.Warn("asset failed", "asset", key, "err", err)
				return
			}
			result.Assets[key] = asset
			m.recorder.IncAssetResult(true)
			logger.Debug("asset written", "asset", key, "path", asset.RelativePath, "dedup", asset.Deduplicated)
		}()
	}
	wg.Wait()
	return result
}

// materializeOne runs the fetch, name selection and write steps for one asset.
func (m *AssetMaterializer) materializeOne(ctx context.Context, ref AssetReference, buildFolder string, claims *claimSet) (MaterializedAsset, error) {
	if ref.SourceURL == "" {
		return MaterializedAsset{}, &AssetFetchError{Key: ref.Key, Kind: AssetErrNetwork, Err: errEmptySource}
	}

	fetched, err := m.fetcher.Fetch(ctx, ref.SourceURL)
	if err != nil {
		return MaterializedAsset{}, &AssetFetchError{Key: ref.Key, URL: ref.SourceURL, Kind: AssetErrNetwork, Err: err}
	}

	contentType := ref.ContentType
	if contentType == "" {
		contentType = fetched.ContentType
	}
	ext, ok := ExtensionForContentType(contentType)
	if !ok {
		return MaterializedAsset{}, &AssetFetchError{
			Key:  ref.Key,
			URL:  ref.SourceURL,
			Kind: AssetErrContentType,
			Err:  fmt.Errorf("%q has no known extension", contentType),
		}
	}

	candidates := m.candidatePaths(ref, ext)
	identity := ""
	if id := ref.identity(); id != "" {
		identity = relativeAssetPath(m.basePath, withExtension(id, ext))
	}
	rel, owner, dedup, ok := claims.claim(candidates, identity)
	if !ok {
		return MaterializedAsset{}, &FilenameCollisionExhaustedError{Key: ref.Key, Candidates: candidates}
	}
	if dedup {
		// A sibling with the same content owns the file; share its outcome.
		if err := owner.wait(ctx); err != nil {
			return MaterializedAsset{}, &AssetFetchError{Key: ref.Key, URL: ref.SourceURL, Kind: AssetErrWrite, Err: fmt.Errorf("shared %s: %w", rel, err)}
		}
		return MaterializedAsset{Key: ref.Key, RelativePath: rel, Deduplicated: true}, nil
	}

	dest := filepath.Join(buildFolder, filepath.FromSlash(rel))
	err = fileutil.WriteFileAtomic(dest, fetched.Data)
	owner.finish(err)
	if err != nil {
		return MaterializedAsset{}, &AssetFetchError{Key: ref.Key, URL: ref.SourceURL, Kind: AssetErrWrite, Err: err}
	}

	return MaterializedAsset{Key: ref.Key, RelativePath: rel, BytesWritten: int64(len(fetched.Data))}, nil
}

// candidatePaths turns candidate names into relative paths, skipping empty
// names and appending the extension when absent.
func (m *AssetMaterializer) candidatePaths(ref AssetReference, ext string) []string {
	names := ref.candidates()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || strings.ContainsAny(name, "/\\\x00") {
			continue
		}
		paths = append(paths, relativeAssetPath(m.basePath, withExtension(name, ext)))
	}
	return paths
}

// withExtension appends .ext unless name already ends with it.
func withExtension(name, ext string) string {
	if strings.HasSuffix(name, ext) {
		return name
	}
	return name + "." + ext
}
