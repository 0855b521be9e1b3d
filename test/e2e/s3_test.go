package e2e

import "testing"

// TestS3Operations runs the basic operations against Localstack S3.
//
// Prerequisites:
//   - Localstack running on localhost:4566 (or LOCALSTACK_ENDPOINT)
//
// To start Localstack:
//
//	docker run --rm -p 4566:4566 localstack/localstack
func TestS3Operations(t *testing.T) {
	helper := NewLocalstackHelper(t)
	if !helper.Available() {
		t.Skip("Localstack not available")
	}
	defer helper.Cleanup()

	configs := S3Configurations()
	for _, config := range configs {
		SetupS3Config(t, config, helper)
	}

	runOnConfigs(t, configs, func(t *testing.T, tc *TestContext) {
		c := tc.Dial()

		assertListing(t, c)

		content := randomBytes(t, Size1MB.Bytes)
		mustUpload(t, c, "s3.bin", content)
		assertFileContent(t, c, "s3.bin", content)
		assertListing(t, c, "s3.bin")

		tc.RestartServer()

		c = tc.Dial()
		assertFileContent(t, c, "s3.bin", content)
		if err := c.Delete(t.Context(), "s3.bin"); err != nil {
			t.Fatalf("Failed to delete file: %v", err)
		}
		assertFileNotExists(t, c, "s3.bin")
	})
}
