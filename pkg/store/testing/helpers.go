package testing

import (
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/marmos91/filecmd/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorIs checks if the error matches the expected error using errors.Is.
func AssertErrorIs(t *testing.T, expected error, actual error) {
	t.Helper()
	if !errors.Is(actual, expected) {
		t.Errorf("Expected error %v, got %v", expected, actual)
	}
}

func mustWrite(t *testing.T, s store.Store, name string, data []byte) {
	t.Helper()
	require.NoError(t, s.Write(testContext(), name, data), "Write should succeed")
}

func mustRead(t *testing.T, s store.Store, name string) []byte {
	t.Helper()
	data, err := s.Read(testContext(), name)
	require.NoError(t, err, "Read should succeed")
	return data
}

func mustList(t *testing.T, s store.Store) []string {
	t.Helper()
	names, err := s.List(testContext())
	require.NoError(t, err, "List should succeed")
	require.NotNil(t, names, "List must return a non-nil slice")
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return sorted
}

func assertContentEquals(t *testing.T, s store.Store, name string, expected []byte) {
	t.Helper()
	actual := mustRead(t, s, name)
	assert.Equal(t, len(expected), len(actual), "content length mismatch")
	assert.Equal(t, expected, actual, "content mismatch")
}

// generateTestName returns a name that is unique within one test.
func generateTestName(prefix string, n int) string {
	return fmt.Sprintf("%s-%03d.bin", prefix, n)
}

// generateTestData returns deterministic data that covers every byte value.
func generateTestData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 256)
	}
	return data
}
