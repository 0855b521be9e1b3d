package testing

import (
	"context"
	"testing"

	"github.com/marmos91/filecmd/pkg/store"
)

// StoreTestSuite exercises the Store contract against any backend.
//
// It tests behaviour visible through the interface only, so the same suite
// runs against memory, filesystem, badger and (with the integration tag) S3.
//
// Usage:
//
//	func TestMyStore(t *testing.T) {
//	    suite := &storetesting.StoreTestSuite{
//	        NewStore: func(t *testing.T) store.Store {
//	            return mystore.New(t.TempDir())
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore returns a fresh, empty Store for each test.
	NewStore func(t *testing.T) store.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("BasicOperations", suite.RunBasicTests)
	t.Run("WriteOperations", suite.RunWriteTests)
	t.Run("Concurrency", suite.RunConcurrencyTests)
}

// newStore builds a store and closes it when the test ends.
func (suite *StoreTestSuite) newStore(t *testing.T) store.Store {
	t.Helper()
	s := suite.NewStore(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testContext() context.Context {
	return context.Background()
}
