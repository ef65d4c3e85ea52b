package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Disk stores one file per key under dir
type Disk struct {
	dir string
}

// NewDisk creates a disk store rooted at dir. The directory is created on first write.
func NewDisk(dir string) *Disk {
	return &Disk{dir: dir}
}

// Get reads the record file
func (d *Disk) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(d.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	return data, nil
}

// Set writes the record through a temp file so a crash never leaves half a record
func (d *Disk) Set(_ context.Context, key string, value []byte) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	tmp, err := os.CreateTemp(d.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close record: %w", err)
	}
	if err := os.Rename(tmpName, d.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace record: %w", err)
	}
	return nil
}

// Delete removes the record file. A missing file is not an error.
func (d *Disk) Delete(_ context.Context, key string) error {
	err := os.Remove(d.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove record: %w", err)
	}
	return nil
}

// Close is a no-op
func (d *Disk) Close() error { return nil }

// path generates the file path for a key
func (d *Disk) path(key string) string {
	return filepath.Join(d.dir, key+".json")
}
