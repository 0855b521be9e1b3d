package testing

import (
	"testing"

	"github.com/marmos91/filecmd/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBasicTests covers List, Read and Delete.
func (suite *StoreTestSuite) RunBasicTests(t *testing.T) {
	t.Run("List_Empty", suite.testListEmpty)
	t.Run("List_AfterWrites", suite.testListAfterWrites)
	t.Run("Read_NotFound", suite.testReadNotFound)
	t.Run("Read_Binary", suite.testReadBinary)
	t.Run("Delete_Success", suite.testDeleteSuccess)
	t.Run("Delete_NotFound", suite.testDeleteNotFound)
	t.Run("ReadDelete_InvalidName", suite.testReadDeleteInvalidName)
	t.Run("ContextCancelled", suite.testContextCancelled)
}

func (suite *StoreTestSuite) testListEmpty(t *testing.T) {
	s := suite.newStore(t)

	names := mustList(t, s)
	assert.Empty(t, names)
}

func (suite *StoreTestSuite) testListAfterWrites(t *testing.T) {
	s := suite.newStore(t)

	mustWrite(t, s, "b.txt", []byte("b"))
	mustWrite(t, s, "a.txt", []byte("a"))
	mustWrite(t, s, "c.txt", nil)

	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, mustList(t, s))
}

func (suite *StoreTestSuite) testReadNotFound(t *testing.T) {
	s := suite.newStore(t)

	_, err := s.Read(testContext(), "missing.txt")
	require.Error(t, err)
	AssertErrorIs(t, store.ErrNotFound, err)
}

func (suite *StoreTestSuite) testReadBinary(t *testing.T) {
	s := suite.newStore(t)

	data := generateTestData(64 * 1024)
	mustWrite(t, s, "blob.bin", data)

	assertContentEquals(t, s, "blob.bin", data)
}

func (suite *StoreTestSuite) testDeleteSuccess(t *testing.T) {
	s := suite.newStore(t)

	mustWrite(t, s, "gone.txt", []byte("x"))
	require.NoError(t, s.Delete(testContext(), "gone.txt"))

	_, err := s.Read(testContext(), "gone.txt")
	AssertErrorIs(t, store.ErrNotFound, err)
	assert.NotContains(t, mustList(t, s), "gone.txt")
}

func (suite *StoreTestSuite) testDeleteNotFound(t *testing.T) {
	s := suite.newStore(t)

	err := s.Delete(testContext(), "never-existed.txt")
	require.Error(t, err)
	AssertErrorIs(t, store.ErrNotFound, err)
}

func (suite *StoreTestSuite) testReadDeleteInvalidName(t *testing.T) {
	s := suite.newStore(t)

	for _, name := range []string{"", "..", "../escape.txt", "dir/file.txt"} {
		_, err := s.Read(testContext(), name)
		require.Error(t, err, name)
		AssertErrorIs(t, store.ErrInvalidName, err)

		err = s.Delete(testContext(), name)
		require.Error(t, err, name)
		AssertErrorIs(t, store.ErrInvalidName, err)
	}
}

func (suite *StoreTestSuite) testContextCancelled(t *testing.T) {
	s := suite.newStore(t)

	ctx, cancel := contextWithCancel()
	cancel()

	_, err := s.List(ctx)
	assert.Error(t, err)
	assert.Error(t, s.Write(ctx, "x.txt", []byte("x")))
}
