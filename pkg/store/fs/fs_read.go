package fs

import (
	"context"
	"fmt"
	"os"

	"github.com/marmos91/filecmd/pkg/store"
)

// List returns the names of the regular files in the base directory.
//
// Order is the directory order reported by the OS (lexical on most platforms).
//
// Context Cancellation:
// Checked before reading the directory and every 100 entries.
func (s *FSStore) List(ctx context.Context) ([]string, error) {
	// ========================================================================
	// Step 1: Check context before filesystem operation
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 2: Read directory entries
	// ========================================================================

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	// ========================================================================
	// Step 3: Keep regular files only
	// ========================================================================

	names := make([]string, 0, len(entries))
	for i, entry := range entries {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}

	return names, nil
}

// Read returns the full content of name.
//
// Returns:
//   - []byte: File content
//   - error: store.ErrNotFound if the file is missing or not a regular file,
//     store.ErrInvalidName for names outside the flat namespace
func (s *FSStore) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.filePath(name)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file %q: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("file %q: %w", name, store.ErrNotFound)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file %q: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return data, nil
}
