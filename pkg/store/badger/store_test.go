package badger

import (
	"context"
	"testing"

	"github.com/marmos91/filecmd/pkg/store"
	storetesting "github.com/marmos91/filecmd/pkg/store/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBadgerStore runs the complete Store test suite against an on-disk database.
func TestBadgerStore(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) store.Store {
			s, err := NewBadgerStore(context.Background(), BadgerStoreConfig{DBPath: t.TempDir()})
			require.NoError(t, err)
			return s
		},
	}

	suite.Run(t)
}

func TestBadgerStore_InMemory(t *testing.T) {
	ctx := context.Background()
	s, err := NewBadgerStore(ctx, BadgerStoreConfig{InMemory: true})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Write(ctx, "b", []byte("2")))
	require.NoError(t, s.Write(ctx, "a", []byte("1")))

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestBadgerStore_Reopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewBadgerStore(ctx, BadgerStoreConfig{DBPath: dir})
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, "persisted.txt", []byte("still here")))
	require.NoError(t, s.Close())

	s, err = NewBadgerStore(ctx, BadgerStoreConfig{DBPath: dir})
	require.NoError(t, err)
	defer s.Close()

	data, err := s.Read(ctx, "persisted.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("still here"), data)
}

func TestNewBadgerStore_RequiresPath(t *testing.T) {
	_, err := NewBadgerStore(context.Background(), BadgerStoreConfig{})
	assert.Error(t, err)
}
