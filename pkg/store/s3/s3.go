// Package s3 implements a Store on Amazon S3 or any S3-compatible service.
package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// API is the subset of *s3.Client used by the store.
//
// It lets tests substitute an in-process fake for a real endpoint.
type API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Store implements store.Store with one object per file.
//
// Key Design:
// The object key is KeyPrefix + name. Only objects directly under the prefix
// (no further "/") belong to the namespace; List ignores the rest.
//
// Example:
//
//	name:       "report.pdf"
//	KeyPrefix:  "filecmd/"
//	S3 Key:     "filecmd/report.pdf"
//
// Thread Safety:
// Safe for concurrent use. Concurrent writes to one name are last-write-wins.
// Several worker processes can share a bucket.
type S3Store struct {
	client    API
	bucket    string
	keyPrefix string
}

// S3StoreConfig contains configuration for the S3 store.
type S3StoreConfig struct {
	// Client is the configured S3 client.
	Client API

	// Bucket is the S3 bucket name. It must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys.
	KeyPrefix string
}

// ClientConfig holds the settings used to build an S3 client.
type ClientConfig struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	MaxRetries      int
}

// NewClient builds an S3 client from cfg.
//
// A custom Endpoint (MinIO, Localstack, ...) switches to path-style
// addressing. Without static credentials the default AWS credential chain is
// used. MaxRetries defaults to 10 attempts.
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewS3Store creates an S3-backed store and verifies bucket access.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: Store configuration
//
// Returns:
//   - *S3Store: Initialized store
//   - error: Returns error if the configuration is incomplete or the bucket
//     cannot be reached
func NewS3Store(ctx context.Context, cfg S3StoreConfig) (*S3Store, error) {
	// ========================================================================
	// Step 1: Validate configuration
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	// ========================================================================
	// Step 2: Verify bucket access
	// ========================================================================

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &S3Store{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

func (s *S3Store) objectKey(name string) string {
	return s.keyPrefix + name
}

// Close is a no-op; the S3 client holds no per-store resources.
func (s *S3Store) Close() error {
	return nil
}
