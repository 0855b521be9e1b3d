package testing

import (
	"context"
	"sync"
	"testing"

	"github.com/marmos91/filecmd/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunWriteTests covers Write semantics.
func (suite *StoreTestSuite) RunWriteTests(t *testing.T) {
	t.Run("Write_Basic", suite.testWriteBasic)
	t.Run("Write_Overwrite", suite.testWriteOverwrite)
	t.Run("Write_Empty", suite.testWriteEmpty)
	t.Run("Write_InvalidName", suite.testWriteInvalidName)
	t.Run("Write_CallerBufferReuse", suite.testWriteCallerBufferReuse)
}

// RunConcurrencyTests writes distinct names from many goroutines.
func (suite *StoreTestSuite) RunConcurrencyTests(t *testing.T) {
	s := suite.newStore(t)

	const workers = 8
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			name := generateTestName("concurrent", n)
			assert.NoError(t, s.Write(testContext(), name, generateTestData(1024+n)))
		}(i)
	}
	wg.Wait()

	names := mustList(t, s)
	require.Len(t, names, workers)
	for i := range workers {
		assertContentEquals(t, s, generateTestName("concurrent", i), generateTestData(1024+i))
	}
}

func (suite *StoreTestSuite) testWriteBasic(t *testing.T) {
	s := suite.newStore(t)

	mustWrite(t, s, "hello.txt", []byte("Hello, World!"))
	assertContentEquals(t, s, "hello.txt", []byte("Hello, World!"))
}

func (suite *StoreTestSuite) testWriteOverwrite(t *testing.T) {
	s := suite.newStore(t)

	mustWrite(t, s, "f.txt", []byte("a much longer first version"))
	mustWrite(t, s, "f.txt", []byte("short"))

	assertContentEquals(t, s, "f.txt", []byte("short"))
	assert.Equal(t, []string{"f.txt"}, mustList(t, s))
}

func (suite *StoreTestSuite) testWriteEmpty(t *testing.T) {
	s := suite.newStore(t)

	mustWrite(t, s, "empty.txt", []byte{})

	data := mustRead(t, s, "empty.txt")
	assert.Empty(t, data)
	assert.Contains(t, mustList(t, s), "empty.txt")
}

func (suite *StoreTestSuite) testWriteInvalidName(t *testing.T) {
	s := suite.newStore(t)

	for _, name := range []string{"", "..", "../escape.txt", "dir/file.txt"} {
		err := s.Write(testContext(), name, []byte("x"))
		require.Error(t, err, name)
		AssertErrorIs(t, store.ErrInvalidName, err)
	}
}

func (suite *StoreTestSuite) testWriteCallerBufferReuse(t *testing.T) {
	s := suite.newStore(t)

	buf := []byte("original")
	mustWrite(t, s, "copy.txt", buf)
	copy(buf, "CHANGED!")

	assertContentEquals(t, s, "copy.txt", []byte("original"))
}

func contextWithCancel() (context.Context, context.CancelFunc) {
	return context.WithCancel(testContext())
}
