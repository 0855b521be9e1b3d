package memory

import (
	"context"
	"testing"

	"github.com/marmos91/filecmd/pkg/store"
	storetesting "github.com/marmos91/filecmd/pkg/store/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryStore runs the complete Store test suite against MemoryStore.
func TestMemoryStore(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) store.Store {
			return NewMemoryStore()
		},
	}

	suite.Run(t)
}

func TestMemoryStore_ListKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Write(ctx, "z", nil))
	require.NoError(t, s.Write(ctx, "a", nil))
	require.NoError(t, s.Write(ctx, "m", nil))
	require.NoError(t, s.Write(ctx, "z", []byte("again")))
	require.NoError(t, s.Delete(ctx, "a"))

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "m"}, names)
}
