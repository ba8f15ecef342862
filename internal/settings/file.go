package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore persists the settings blob as a JSON file, creating parent
// directories as needed. It implements workspace.Storage.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file location.
func (f *FileStore) Path() string {
	return f.path
}

// LoadData returns the stored blob, or nil when the file does not exist yet.
func (f *FileStore) LoadData() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read settings file: %w", err)
	}
	return data, nil
}

// SaveData replaces the stored blob.
func (f *FileStore) SaveData(data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	return nil
}
