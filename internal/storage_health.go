package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/lychee-technology/lowcoder"
)

// ValidateStorageConfig performs basic sanity checks on blob storage settings.
func ValidateStorageConfig(cfg lowcoder.StorageConfig) error {
	switch cfg.Backend {
	case lowcoder.StorageBackendFilesystem, "":
		if cfg.Directory == "" {
			return fmt.Errorf("storage.directory is required for the filesystem backend")
		}
		return nil
	case lowcoder.StorageBackendS3:
	default:
		return fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
	if cfg.S3Bucket == "" {
		return fmt.Errorf("storage.s3Bucket is required for the s3 backend")
	}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey == "" {
		return fmt.Errorf("s3AccessKey provided without s3SecretKey")
	}
	if cfg.S3SecretKey != "" && cfg.S3AccessKey == "" {
		return fmt.Errorf("s3SecretKey provided without s3AccessKey")
	}
	return nil
}

// HealthCheck issues a HeadBucket against the configured bucket.
// timeout may be 0 to use the default of 5s.
func (s *S3BlobStore) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("s3 bucket %s not reachable: %w", s.bucket, err)
	}
	return nil
}
