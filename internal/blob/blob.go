// Package blob stores uploaded product photos as content-addressed files
// served under a stable URL path.
package blob

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store is the narrow interface the publishing workflow needs: save an
// upload, read it back for provider image calls, and map it to a URL.
type Store interface {
	Save(originalName string, r io.Reader) (string, error)
	Open(name string) (io.ReadCloser, error)
	URL(name string) string
}

// DirStore implements Store on a local directory.
type DirStore struct {
	dir      string
	basePath string
}

// NewDirStore creates the upload directory if needed and returns a DirStore
// serving files under basePath (e.g. "/static/uploads").
func NewDirStore(dir, basePath string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &DirStore{dir: dir, basePath: strings.TrimRight(basePath, "/")}, nil
}

// Dir returns the backing directory, for static file serving.
func (s *DirStore) Dir() string {
	return s.dir
}

// Save writes the upload under a fresh opaque name, keeping the original
// extension, and returns that name.
func (s *DirStore) Save(originalName string, r io.Reader) (string, error) {
	name := uuid.NewString() + strings.ToLower(filepath.Ext(originalName))

	f, err := os.Create(filepath.Join(s.dir, name)) //nolint:gosec // name is generated, not user input
	if err != nil {
		return "", fmt.Errorf("creating blob file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("writing blob file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing blob file: %w", err)
	}

	return name, nil
}

// Open returns a reader for a stored blob. The name must be one returned by
// Save; path separators are rejected.
func (s *DirStore) Open(name string) (io.ReadCloser, error) {
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("invalid blob name %q", name)
	}
	f, err := os.Open(filepath.Join(s.dir, name)) //nolint:gosec // base-name checked above
	if err != nil {
		return nil, fmt.Errorf("opening blob %s: %w", name, err)
	}
	return f, nil
}

// URL returns the serving path for a stored blob.
func (s *DirStore) URL(name string) string {
	return path.Join(s.basePath, name)
}
