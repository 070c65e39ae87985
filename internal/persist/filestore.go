package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultQuota bounds a single stored document, mirroring the storage quota
// browsers give a single origin.
const DefaultQuota = 5 << 20

// FileStore keeps each document as a JSON file in a directory.
type FileStore struct {
	dir   string
	quota int
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir, quota: DefaultQuota}, nil
}

// SetQuota overrides the per-document size limit. Non-positive disables the
// check.
func (fsStore *FileStore) SetQuota(limit int) {
	fsStore.quota = limit
}

func (fsStore *FileStore) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(fsStore.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %q: %w", key, ErrKeyNotFound)
		}
		return nil, fmt.Errorf("load %q: %w", key, err)
	}
	return data, nil
}

func (fsStore *FileStore) Save(_ context.Context, key string, data []byte) error {
	if fsStore.quota > 0 && len(data) > fsStore.quota {
		return &QuotaError{Key: key, Size: len(data), Limit: fsStore.quota}
	}

	// Write to a temp file and rename so a crash never leaves a torn
	// document behind.
	path := fsStore.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("save %q: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save %q: %w", key, err)
	}
	return nil
}

func (fsStore *FileStore) Delete(_ context.Context, key string) error {
	err := os.Remove(fsStore.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func (fsStore *FileStore) path(key string) string {
	// Keys are ids and profile names; flatten anything path-like.
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(fsStore.dir, safe+".json")
}
