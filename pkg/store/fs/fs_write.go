package fs

import (
	"context"
	"fmt"
	"os"

	"github.com/marmos91/filecmd/pkg/store"
)

// writeChunkSize bounds each write syscall for large files so cancellation is
// observed between chunks.
const writeChunkSize = 1 * 1024 * 1024

// Write creates or truncates name and writes data to it.
//
// Context Cancellation:
// Checked before opening the file and between 1MB chunks. A cancelled write
// leaves a partially written file behind.
func (s *FSStore) Write(ctx context.Context, name string, data []byte) error {
	// ========================================================================
	// Step 1: Check context and resolve the path
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.filePath(name)
	if err != nil {
		return err
	}

	// ========================================================================
	// Step 2: Write content in chunks
	// ========================================================================

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, s.fileMode)
	if err != nil {
		return fmt.Errorf("failed to open file for writing: %w", err)
	}

	for offset := 0; offset < len(data); offset += writeChunkSize {
		if err := ctx.Err(); err != nil {
			_ = file.Close()
			return err
		}

		end := min(offset+writeChunkSize, len(data))
		if _, err := file.Write(data[offset:end]); err != nil {
			_ = file.Close()
			return fmt.Errorf("failed to write file chunk: %w", err)
		}
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	return nil
}

// Delete removes name from the base directory.
//
// Returns store.ErrNotFound if the file does not exist or is not a regular file.
func (s *FSStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.filePath(name)
	if err != nil {
		return err
	}

	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file %q: %w", name, store.ErrNotFound)
		}
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("file %q: %w", name, store.ErrNotFound)
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file %q: %w", name, store.ErrNotFound)
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}
