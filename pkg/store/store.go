// Package store defines the flat file storage used by the command server.
//
// A Store holds a single namespace of named byte blobs. There are no
// directories: a name is one path component and every operation works on the
// whole content of a file. Implementations live in sub-packages (fs, memory,
// s3, badger) and can be wrapped by the read cache in store/cache.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ============================================================================
// Standard Store Errors
// ============================================================================

// These errors give every backend a common way to report the conditions the
// dispatcher turns into protocol responses. Implementations wrap them with
// context:
//
//	if !exists {
//	    return nil, fmt.Errorf("file %q: %w", name, store.ErrNotFound)
//	}
//
// and callers test with errors.Is.
var (
	// ErrNotFound indicates the named file does not exist.
	//
	// Returned by Read and Delete. Write never returns it.
	ErrNotFound = errors.New("file not found")

	// ErrInvalidName indicates a name that cannot live in the flat namespace.
	//
	// See ValidateName for the rules.
	ErrInvalidName = errors.New("invalid file name")
)

// Store is the storage backend behind the dispatcher.
//
// Thread Safety:
// Implementations must be safe for concurrent use. No locking is provided
// across operations: two concurrent Write calls on the same name race and the
// last writer wins.
type Store interface {
	// List returns the names of all plain files, in backend order.
	//
	// An empty store returns an empty, non-nil slice.
	List(ctx context.Context) ([]string, error)

	// Read returns the full content of name.
	//
	// Returns ErrNotFound if the file does not exist.
	Read(ctx context.Context, name string) ([]byte, error)

	// Write creates or replaces name with data.
	Write(ctx context.Context, name string, data []byte) error

	// Delete removes name.
	//
	// Returns ErrNotFound if the file does not exist.
	Delete(ctx context.Context, name string) error

	// Close releases resources held by the backend.
	Close() error
}

// ValidateName checks that name is a single flat path component.
//
// Rejected:
//   - the empty string
//   - "." and ".."
//   - names containing '/', '\' or NUL
//
// Returns:
//   - error: wraps ErrInvalidName, nil when the name is usable
func ValidateName(name string) error {
	switch name {
	case "":
		return fmt.Errorf("empty name: %w", ErrInvalidName)
	case ".", "..":
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}

	if strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}

	return nil
}
