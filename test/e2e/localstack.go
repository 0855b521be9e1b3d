package e2e

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	s3store "github.com/marmos91/filecmd/pkg/store/s3"
)

// LocalstackHelper owns the S3 buckets used by one test
type LocalstackHelper struct {
	T        *testing.T
	Endpoint string
	Client   *s3.Client
	Buckets  []string
}

// NewLocalstackHelper creates a new Localstack helper
func NewLocalstackHelper(t *testing.T) *LocalstackHelper {
	t.Helper()

	// Get Localstack endpoint from environment or use default
	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	client, err := s3store.NewClient(context.Background(), s3store.ClientConfig{
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		MaxRetries:      1,
	})
	if err != nil {
		t.Fatalf("Failed to create S3 client: %v", err)
	}

	return &LocalstackHelper{
		T:        t,
		Endpoint: endpoint,
		Client:   client,
	}
}

// Available reports whether Localstack answers a bucket listing
func (lh *LocalstackHelper) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := lh.Client.ListBuckets(ctx, &s3.ListBucketsInput{})
	return err == nil
}

// CreateBucket creates bucketName; it is emptied and removed by Cleanup
func (lh *LocalstackHelper) CreateBucket(ctx context.Context, bucketName string) error {
	if _, err := lh.Client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucketName)}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucketName, err)
	}
	lh.Buckets = append(lh.Buckets, bucketName)
	return nil
}

// Cleanup empties and deletes every bucket created through the helper
func (lh *LocalstackHelper) Cleanup() {
	ctx := context.Background()

	for _, bucket := range lh.Buckets {
		if err := lh.emptyBucket(ctx, bucket); err != nil {
			lh.T.Logf("Failed to empty bucket %s: %v", bucket, err)
		}
		if _, err := lh.Client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)}); err != nil {
			lh.T.Logf("Failed to delete bucket %s: %v", bucket, err)
		}
	}
	lh.Buckets = nil
}

// emptyBucket removes all objects, one DeleteObjects call per listing page
func (lh *LocalstackHelper) emptyBucket(ctx context.Context, bucket string) error {
	pages := s3.NewListObjectsV2Paginator(lh.Client, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return err
		}
		if len(page.Contents) == 0 {
			continue
		}

		ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}
		if _, err := lh.Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		}); err != nil {
			return err
		}
	}
	return nil
}

// SetupS3Config points a TestConfig at a fresh bucket on Localstack
func SetupS3Config(t *testing.T, config *TestConfig, helper *LocalstackHelper) {
	t.Helper()

	bucketName := fmt.Sprintf("filecmd-e2e-%s-%d", config.Name, time.Now().UnixNano())
	if err := helper.CreateBucket(context.Background(), bucketName); err != nil {
		t.Fatalf("Failed to create S3 bucket: %v", err)
	}

	config.s3Endpoint = helper.Endpoint
	config.s3Bucket = bucketName
}
