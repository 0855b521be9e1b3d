package e2e

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"runtime"
	"slices"
	"testing"

	"github.com/marmos91/filecmd/pkg/client"
)

// runOnAllConfigs is a helper that runs a test on all configurations
func runOnAllConfigs(t *testing.T, testFunc func(t *testing.T, tc *TestContext)) {
	t.Helper()
	runOnConfigs(t, AllConfigurations(), testFunc)
}

// runOnConfigs runs testFunc against a fresh server for each configuration
func runOnConfigs(t *testing.T, configs []*TestConfig, testFunc func(t *testing.T, tc *TestContext)) {
	t.Helper()

	for _, config := range configs {
		t.Run(config.Name, func(t *testing.T) {
			if config.Discipline == DisciplineProcess && runtime.GOOS == "windows" {
				t.Skip("process discipline requires a unix platform")
			}

			tc := NewTestContext(t, config)
			defer tc.Cleanup()

			testFunc(t, tc)
		})
	}
}

// randomBytes returns n bytes of random data
func randomBytes(t *testing.T, n int) []byte {
	t.Helper()

	data := make([]byte, n)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("Failed to generate random data: %v", err)
	}
	return data
}

// mustUpload uploads data under name and fails the test on error
func mustUpload(t *testing.T, c *client.Client, name string, data []byte) {
	t.Helper()

	if err := c.Upload(context.Background(), name, data); err != nil {
		t.Fatalf("Failed to upload %s: %v", name, err)
	}
}

// assertFileContent downloads name and compares it with want
func assertFileContent(t *testing.T, c *client.Client, name string, want []byte) {
	t.Helper()

	got, err := c.Get(context.Background(), name)
	if err != nil {
		t.Fatalf("Failed to get %s: %v", name, err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Content of %s mismatch: got %d bytes, want %d bytes", name, len(got), len(want))
	}
}

// assertFileNotExists checks that the server reports name as missing
func assertFileNotExists(t *testing.T, c *client.Client, name string) {
	t.Helper()

	_, err := c.Get(context.Background(), name)
	var serverErr *client.ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("Get %s: expected a server error, got %v", name, err)
	}
	if want := "File not found: " + name; serverErr.Message != want {
		t.Errorf("Get %s: error = %q, want %q", name, serverErr.Message, want)
	}
}

// assertListing checks the server listing against want, ignoring order
func assertListing(t *testing.T, c *client.Client, want ...string) {
	t.Helper()

	got, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("Failed to list files: %v", err)
	}

	got = slices.Clone(got)
	want = slices.Clone(want)
	slices.Sort(got)
	slices.Sort(want)

	if !slices.Equal(got, want) {
		t.Errorf("List = %v, want %v", got, want)
	}
}
