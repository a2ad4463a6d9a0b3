package docexport

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/alnah/go-docexport/internal/fileutil"
)

// tempDirPerm restricts scratch directories to the current user.
const tempDirPerm = 0o700

// TempManager hands out ephemeral working directories for pipeline stages.
// All directories live under one process-private root, created lazily.
// A TempManager is safe for concurrent use; the directories it returns are
// owned by the caller that acquired them.
type TempManager struct {
	parent string // where the root is created; "" = os.TempDir()

	mu     sync.Mutex
	root   string
	live   map[string]struct{}
	kept   int
	closed bool
}

// NewTempManager creates a manager whose root is created under parent.
// An empty parent uses the system temp directory.
func NewTempManager(parent string) *TempManager {
	return &TempManager{
		parent: parent,
		live:   make(map[string]struct{}),
	}
}

// Acquire returns a fresh, empty directory that no other Acquire call
// returned. Failures are ConfigurationErrors since nothing can run without
// scratch space.
func (m *TempManager) Acquire() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", &ConfigurationError{Field: "tempdir", Err: errors.New("temp manager closed")}
	}

	if m.root == "" {
		if m.parent != "" {
			if err := os.MkdirAll(m.parent, fileutil.DirPerm); err != nil {
				return "", &ConfigurationError{Field: "tempdir", Err: fmt.Errorf("creating temp parent: %w", err)}
			}
		}
		root, err := os.MkdirTemp(m.parent, "docexport-")
		if err != nil {
			return "", &ConfigurationError{Field: "tempdir", Err: fmt.Errorf("creating temp root: %w", err)}
		}
		m.root = root
	}

	dir := filepath.Join(m.root, "stage-"+uuid.NewString())
	if err := os.Mkdir(dir, tempDirPerm); err != nil {
		return "", &ConfigurationError{Field: "tempdir", Err: fmt.Errorf("creating work dir: %w", err)}
	}
	m.live[dir] = struct{}{}
	return dir, nil
}

// Release removes dir recursively unless keep is set. A kept directory is
// left in place and is no longer managed: Close will not remove it.
func (m *TempManager) Release(dir string, keep bool) error {
	m.mu.Lock()
	_, ok := m.live[dir]
	delete(m.live, dir)
	if ok && keep {
		m.kept++
	}
	m.mu.Unlock()

	if !ok || keep {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing work dir %s: %w", dir, err)
	}
	return nil
}

// Live returns the number of acquired directories not yet released.
func (m *TempManager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Root returns the process-private root, or "" before the first Acquire.
func (m *TempManager) Root() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.root
}

// Close removes every directory still live. The root itself is removed
// unless a kept directory lives under it.
func (m *TempManager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	live := make([]string, 0, len(m.live))
	for dir := range m.live {
		live = append(live, dir)
	}
	m.live = map[string]struct{}{}
	root, kept := m.root, m.kept
	m.mu.Unlock()

	var errs []error
	for _, dir := range live {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, err)
		}
	}
	if root != "" && kept == 0 {
		if err := os.RemoveAll(root); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
