// Package artifact writes generated documents to an object location and hands
// back opaque locators. The local-directory store mirrors the bucket-upload
// step of the source pipeline without binding the core to a cloud SDK.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Locator is an opaque reference to a stored artifact.
type Locator struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// Store persists artifact payloads.
type Store interface {
	Write(kind, extension string, data []byte) (Locator, error)
}

// DirStore writes artifacts under a base directory with uuid names.
type DirStore struct {
	base string
}

// NewDirStore creates the base directory if needed.
func NewDirStore(base string) (*DirStore, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &DirStore{base: base}, nil
}

func (s *DirStore) Write(kind, extension string, data []byte) (Locator, error) {
	id := uuid.New().String()
	path := filepath.Join(s.base, id+extension)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Locator{}, fmt.Errorf("write %s artifact: %w", kind, err)
	}
	return Locator{ID: id, Kind: kind, Path: path}, nil
}
