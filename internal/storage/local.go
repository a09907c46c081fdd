// Package storage provides the local artifact store for uploaded audio and
// generated caption files.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore stores request artifacts on the local filesystem under a single
// work directory. Writes are atomic (temp file + rename), so a caption file
// is either fully written or absent; readers never see a partial artifact.
type LocalStore struct {
	workDir string
}

// NewLocalStore creates a local artifact store, creating the work directory
// if needed.
func NewLocalStore(workDir string) (*LocalStore, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", workDir, err)
	}
	return &LocalStore{workDir: workDir}, nil
}

// Save writes data under key atomically, overwriting any previous artifact
// with the same key.
func (s *LocalStore) Save(key string, data []byte) error {
	path := filepath.Join(s.workDir, key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return AtomicWrite(path, data)
}

// SaveFrom streams r into the store under key, atomically.
func (s *LocalStore) SaveFrom(key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	return s.Save(key, data)
}

// LocalPath returns the absolute path for key, or "" if it does not exist.
func (s *LocalStore) LocalPath(key string) string {
	full := filepath.Join(s.workDir, key)
	if _, err := os.Stat(full); err == nil {
		return full
	}
	return ""
}

// Open opens the artifact stored under key.
func (s *LocalStore) Open(key string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.workDir, key))
}

// Exists reports whether an artifact is stored under key.
func (s *LocalStore) Exists(key string) bool {
	_, err := os.Stat(filepath.Join(s.workDir, key))
	return err == nil
}

// Dir returns the work directory path.
func (s *LocalStore) Dir() string { return s.workDir }

// AtomicWrite writes data to path via a temp file and rename in the same
// directory.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".captiond-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
