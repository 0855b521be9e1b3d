// Package badger implements a Store on top of an embedded BadgerDB database.
package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/filecmd/pkg/store"
)

// Key layout
// ==========
//
// Every file is one key/value pair:
//
//	f:<name>  ->  raw file content
//
// The "f:" prefix keeps the namespace open for future record types and lets
// List run a single prefix scan. Keys sort bytewise, so List returns names in
// lexical order.
const filePrefix = "f:"

func keyFile(name string) []byte {
	return []byte(filePrefix + name)
}

// BadgerStore implements store.Store using BadgerDB.
//
// Thread Safety:
// BadgerDB transactions are safe for concurrent use. A database directory can
// only be opened by one process at a time, so this backend cannot be shared by
// process pool workers.
type BadgerStore struct {
	db *badger.DB
}

// BadgerStoreConfig configures the BadgerDB store.
type BadgerStoreConfig struct {
	// DBPath is the database directory. Ignored when InMemory is set.
	DBPath string

	// InMemory runs BadgerDB without touching disk.
	InMemory bool

	// BlockCacheSizeMB is the block cache size (default 64MB).
	BlockCacheSizeMB int64

	// SyncWrites makes every commit fsync before returning.
	SyncWrites bool
}

// NewBadgerStore opens (or creates) the database described by cfg.
//
// Parameters:
//   - ctx: Context for cancellation (checked before opening)
//   - cfg: Store configuration
//
// Returns:
//   - *BadgerStore: Open store; call Close to release the database lock
//   - error: Returns error if the database cannot be opened
func NewBadgerStore(ctx context.Context, cfg BadgerStoreConfig) (*BadgerStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !cfg.InMemory && cfg.DBPath == "" {
		return nil, fmt.Errorf("db path is required")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.DBPath)
	}

	blockCacheMB := cfg.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}

	opts = opts.WithLoggingLevel(badger.WARNING).
		WithCompression(options.None).
		WithBlockCacheSize(blockCacheMB << 20).
		WithSyncWrites(cfg.SyncWrites)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.DBPath, err)
	}

	return &BadgerStore{db: db}, nil
}

// List returns file names in lexical order.
func (s *BadgerStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names := make([]string, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(filePrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		count := 0
		for it.Rewind(); it.Valid(); it.Next() {
			if count%100 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			count++

			key := it.Item().Key()
			names = append(names, string(key[len(filePrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return names, nil
}

// Read returns the content stored under name.
func (s *BadgerStore) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyFile(name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("file %q: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// Write stores data under name in a single transaction.
//
// Files larger than the database's maximum value size are rejected by
// BadgerDB with ErrTxnTooBig or ErrValueLogSize.
func (s *BadgerStore) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateName(name); err != nil {
		return err
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyFile(name), buf)
	})
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// Delete removes name. The existence check and the delete share one
// transaction so a concurrent delete yields exactly one success.
func (s *BadgerStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateName(name); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(keyFile(name)); err != nil {
			return err
		}
		return txn.Delete(keyFile(name))
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("file %q: %w", name, store.ErrNotFound)
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// Close closes the database and releases its directory lock.
func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}
