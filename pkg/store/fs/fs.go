// Package fs implements a Store backed by one flat directory on the local
// filesystem.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/marmos91/filecmd/pkg/store"
)

// FSStore implements store.Store over a single directory.
//
// Each file in the namespace is a regular file directly under basePath.
// Subdirectories and other non-regular entries are ignored by List and
// reported as not found by Read and Delete.
//
// Thread Safety:
// Operations map to independent syscalls and are safe for concurrent use.
// Concurrent writers of the same name race; the last one to finish wins.
// The directory may be shared by several processes (process pool workers).
type FSStore struct {
	basePath string
	dirMode  os.FileMode
	fileMode os.FileMode
}

// FSStoreConfig configures the filesystem store.
type FSStoreConfig struct {
	// BasePath is the directory that holds the files. Created if missing.
	BasePath string

	// DirMode is the permission used when creating BasePath (default 0755).
	DirMode os.FileMode

	// FileMode is the permission of newly written files (default 0644).
	FileMode os.FileMode
}

// NewFSStore creates a filesystem store rooted at cfg.BasePath.
//
// Parameters:
//   - ctx: Context for cancellation (checked before touching the filesystem)
//   - cfg: Store configuration
//
// Returns:
//   - *FSStore: Initialized store
//   - error: Returns error if the directory cannot be created or is not a directory
func NewFSStore(ctx context.Context, cfg FSStoreConfig) (*FSStore, error) {
	// ========================================================================
	// Step 1: Check context before filesystem operation
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.BasePath == "" {
		return nil, fmt.Errorf("base path is required")
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = 0755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0644
	}

	// ========================================================================
	// Step 2: Ensure the base directory exists
	// ========================================================================

	if err := os.MkdirAll(cfg.BasePath, cfg.DirMode); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	info, err := os.Stat(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base path %q is not a directory", cfg.BasePath)
	}

	return &FSStore{
		basePath: cfg.BasePath,
		dirMode:  cfg.DirMode,
		fileMode: cfg.FileMode,
	}, nil
}

// BasePath returns the directory backing the store.
func (s *FSStore) BasePath() string {
	return s.basePath
}

// filePath resolves name inside the base directory after validating it.
func (s *FSStore) filePath(name string) (string, error) {
	if err := store.ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, name), nil
}

// Close is a no-op; the store holds no open descriptors.
func (s *FSStore) Close() error {
	return nil
}
