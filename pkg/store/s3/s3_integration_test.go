//go:build integration

package s3

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/filecmd/pkg/store"
	storetesting "github.com/marmos91/filecmd/pkg/store/testing"
	"github.com/stretchr/testify/require"
)

// TestS3Store_Integration runs the Store suite against a real S3-compatible
// service (Localstack).
//
// Prerequisites:
//   - Localstack running on localhost:4566
//   - Run with: go test -tags=integration ./pkg/store/s3/...
//
// To start Localstack:
//
//	docker run --rm -p 4566:4566 localstack/localstack
func TestS3Store_Integration(t *testing.T) {
	ctx := context.Background()

	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	client, err := NewClient(ctx, ClientConfig{
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		MaxRetries:      3,
	})
	require.NoError(t, err)

	bucket := fmt.Sprintf("filecmd-test-%d", time.Now().UnixNano())
	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	require.NoError(t, err, "failed to create bucket")

	n := 0
	suite := &storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) store.Store {
			n++
			s, err := NewS3Store(ctx, S3StoreConfig{
				Client:    client,
				Bucket:    bucket,
				KeyPrefix: fmt.Sprintf("run-%d/", n),
			})
			require.NoError(t, err)
			return s
		},
	}

	suite.Run(t)
}
