package e2e

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/marmos91/filecmd/pkg/client"
)

// TestUploadAndGet tests that an uploaded file reads back unchanged
func TestUploadAndGet(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		c := tc.Dial()

		content := []byte("Hello, filecmd!")
		mustUpload(t, c, "hello.txt", content)

		assertFileContent(t, c, "hello.txt", content)
		assertListing(t, c, "hello.txt")
	})
}

// TestEmptyListing tests listing a fresh server
func TestEmptyListing(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		assertListing(t, tc.Dial())
	})
}

// TestUploadEmptyFile tests uploading a zero-byte file
func TestUploadEmptyFile(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		c := tc.Dial()

		mustUpload(t, c, "empty.txt", nil)

		assertFileContent(t, c, "empty.txt", []byte{})
		assertListing(t, c, "empty.txt")
	})
}

// TestOverwriteFile tests that a second upload replaces the content
func TestOverwriteFile(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		c := tc.Dial()

		mustUpload(t, c, "overwrite.txt", []byte("initial"))
		assertFileContent(t, c, "overwrite.txt", []byte("initial"))

		mustUpload(t, c, "overwrite.txt", []byte("overwritten"))
		assertFileContent(t, c, "overwrite.txt", []byte("overwritten"))

		assertListing(t, c, "overwrite.txt")
	})
}

// TestDeleteFile tests deleting a file
func TestDeleteFile(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		c := tc.Dial()

		mustUpload(t, c, "delete.txt", []byte("delete me"))
		mustUpload(t, c, "keep.txt", []byte("keep me"))

		if err := c.Delete(context.Background(), "delete.txt"); err != nil {
			t.Fatalf("Failed to delete file: %v", err)
		}

		assertFileNotExists(t, c, "delete.txt")
		assertListing(t, c, "keep.txt")
	})
}

// TestDeleteMissingFile tests that deleting a missing file fails
func TestDeleteMissingFile(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		err := tc.Dial().Delete(context.Background(), "missing.txt")

		var serverErr *client.ServerError
		if !errors.As(err, &serverErr) {
			t.Fatalf("Expected a server error, got %v", err)
		}
		if serverErr.Message != "File not found" {
			t.Errorf("Error = %q, want %q", serverErr.Message, "File not found")
		}
	})
}

// TestGetMissingFile tests that reading a missing file fails with its name
func TestGetMissingFile(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		assertFileNotExists(t, tc.Dial(), "missing.txt")
	})
}

// TestManyFiles tests uploading and listing many files on one connection
func TestManyFiles(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		c := tc.Dial()

		var names []string
		for i := 0; i < 50; i++ {
			name := fmt.Sprintf("file_%03d.txt", i)
			mustUpload(t, c, name, []byte(name))
			names = append(names, name)
		}

		assertListing(t, c, names...)

		for _, name := range names {
			assertFileContent(t, c, name, []byte(name))
		}
	})
}

// TestFilesVisibleAcrossConnections tests that one client sees another's files
func TestFilesVisibleAcrossConnections(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		writer := tc.Dial()
		reader := tc.Dial()

		mustUpload(t, writer, "shared.txt", []byte("shared content"))
		assertFileContent(t, reader, "shared.txt", []byte("shared content"))

		if err := reader.Delete(context.Background(), "shared.txt"); err != nil {
			t.Fatalf("Failed to delete file: %v", err)
		}
		assertFileNotExists(t, writer, "shared.txt")
	})
}

// TestPathTraversalRejected tests that names escaping the store are refused
func TestPathTraversalRejected(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		c := tc.Dial()

		for _, name := range []string{"../escape.txt", "a/b.txt", ".."} {
			err := c.Upload(context.Background(), name, []byte("x"))

			var serverErr *client.ServerError
			if !errors.As(err, &serverErr) {
				t.Errorf("Upload %q: expected a server error, got %v", name, err)
			}
		}

		// Every backend answers get and delete the same way.
		want := `Invalid filename: "../escape.txt"`
		_, err := c.Get(context.Background(), "../escape.txt")
		var serverErr *client.ServerError
		if !errors.As(err, &serverErr) || serverErr.Message != want {
			t.Errorf("Get: expected %q, got %v", want, err)
		}
		err = c.Delete(context.Background(), "../escape.txt")
		if !errors.As(err, &serverErr) || serverErr.Message != want {
			t.Errorf("Delete: expected %q, got %v", want, err)
		}

		assertListing(t, c)
	})
}
