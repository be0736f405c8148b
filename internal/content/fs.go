package content

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FSStore writes items into a single directory and serves them under a
// fixed public URL prefix.
type FSStore struct {
	dir        string
	publicBase string
}

// NewFSStore creates the target directory if needed.
func NewFSStore(dir, publicBase string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating content directory %s: %w", dir, err)
	}
	return &FSStore{
		dir:        dir,
		publicBase: strings.TrimRight(publicBase, "/"),
	}, nil
}

// Dir returns the backing directory, for static serving.
func (s *FSStore) Dir() string {
	return s.dir
}

// Put writes data under the suggested name, overwriting any previous
// item with the same name.
func (s *FSStore) Put(name string, data []byte) (Ref, error) {
	name = filepath.Base(name)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Ref{}, fmt.Errorf("writing %s: %w", path, err)
	}
	return Ref{
		URL:  s.publicBase + "/" + name,
		Path: path,
	}, nil
}
