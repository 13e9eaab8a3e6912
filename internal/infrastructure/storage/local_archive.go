package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Ensure LocalArchive implements Archive
var _ Archive = (*LocalArchive)(nil)

// LocalArchive keeps uploads on the local filesystem under a base directory.
// It is the default backend for single-node deployments and development.
type LocalArchive struct {
	dir    string
	logger *zap.Logger
}

// LocalArchiveOption is a functional option for configuring LocalArchive
type LocalArchiveOption func(*LocalArchive)

// WithLocalLogger sets a custom logger for LocalArchive
func WithLocalLogger(logger *zap.Logger) LocalArchiveOption {
	return func(a *LocalArchive) {
		a.logger = logger
	}
}

// NewLocalArchive creates the base directory if needed
func NewLocalArchive(dir string, opts ...LocalArchiveOption) (*LocalArchive, error) {
	if dir == "" {
		return nil, errors.New("storage: local directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: failed to create archive directory: %w", err)
	}

	a := &LocalArchive{
		dir:    dir,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Store writes the payload under the key, overwriting any previous object
func (a *LocalArchive) Store(_ context.Context, key string, data []byte) error {
	if err := validKey(key); err != nil {
		return err
	}

	target := filepath.Join(a.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("storage: failed to create key directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("storage: failed to write object: %w", err)
	}

	a.logger.Debug("archived upload",
		zap.String("key", key),
		zap.Int("bytes", len(data)))
	return nil
}

// Retrieve reads the payload stored under the key
func (a *LocalArchive) Retrieve(_ context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(a.dir, filepath.FromSlash(key)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: failed to read object: %w", err)
	}
	return data, nil
}

// Delete removes the object. Deleting a missing key is not an error.
func (a *LocalArchive) Delete(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}

	err := os.Remove(filepath.Join(a.dir, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: failed to delete object: %w", err)
	}
	return nil
}
