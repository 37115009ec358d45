package internal

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/lychee-technology/lowcoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemBlobStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := NewFilesystemBlobStore(root)

	require.NoError(t, store.Put(ctx, "documents/1/staff.xlsx", strings.NewReader("payload")))
	data, err := os.ReadFile(filepath.Join(root, "documents", "1", "staff.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	// Relative segments cannot leave the root.
	require.NoError(t, store.Put(ctx, "../escape.txt", strings.NewReader("x")))
	_, err = os.Stat(filepath.Join(root, "escape.txt"))
	assert.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "documents/1/staff.xlsx"))
	_, err = os.Stat(filepath.Join(root, "documents", "1", "staff.xlsx"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	assert.NoError(t, store.Delete(ctx, "documents/1/staff.xlsx"))
	assert.Error(t, store.Put(ctx, "/", strings.NewReader("")))
}

// fakeS3 implements the calls the blob store makes; anything else panics
// through the embedded nil interface.
type fakeS3 struct {
	s3API
	objects   map[string]string
	headErr   error
	createErr error
	deleteErr error
	created   bool
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = string(body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = true
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3BlobStore_PutAndDelete(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	store := newS3BlobStore(client, "lowcoder", "/tenant-a/")

	require.NoError(t, store.Put(ctx, "/deployed/shop-1.zip", strings.NewReader("zip")))
	assert.Equal(t, map[string]string{"lowcoder/tenant-a/deployed/shop-1.zip": "zip"}, client.objects)

	require.NoError(t, store.Delete(ctx, "deployed/shop-1.zip"))
	assert.Empty(t, client.objects)

	client.deleteErr = &smithy.GenericAPIError{Code: "NoSuchKey", Message: "gone"}
	assert.NoError(t, store.Delete(ctx, "deployed/shop-1.zip"))

	client.deleteErr = &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
	assert.ErrorContains(t, store.Delete(ctx, "deployed/shop-1.zip"), "s3 delete")
}

func TestS3BlobStore_ObjectKeyWithoutPrefix(t *testing.T) {
	store := newS3BlobStore(newFakeS3(), "lowcoder", "")
	assert.Equal(t, "a/b.txt", store.objectKey("/a/b.txt"))
}

func TestS3BlobStore_EnsureBucket(t *testing.T) {
	ctx := context.Background()

	t.Run("existing bucket", func(t *testing.T) {
		client := newFakeS3()
		require.NoError(t, newS3BlobStore(client, "b", "").EnsureBucket(ctx))
		assert.False(t, client.created)
	})

	t.Run("missing bucket is created", func(t *testing.T) {
		client := newFakeS3()
		client.headErr = errors.New("not found")
		require.NoError(t, newS3BlobStore(client, "b", "").EnsureBucket(ctx))
		assert.True(t, client.created)
	})

	t.Run("creation race", func(t *testing.T) {
		client := newFakeS3()
		client.headErr = errors.New("not found")
		client.createErr = &smithy.GenericAPIError{Code: "BucketAlreadyOwnedByYou"}
		assert.NoError(t, newS3BlobStore(client, "b", "").EnsureBucket(ctx))
	})

	t.Run("creation failure", func(t *testing.T) {
		client := newFakeS3()
		client.headErr = errors.New("not found")
		client.createErr = errors.New("forbidden")
		assert.ErrorContains(t, newS3BlobStore(client, "b", "").EnsureBucket(ctx), "create bucket")
	})
}

func TestS3BlobStore_HealthCheck(t *testing.T) {
	client := newFakeS3()
	store := newS3BlobStore(client, "lowcoder", "")
	assert.NoError(t, store.HealthCheck(context.Background(), 0))

	client.headErr = errors.New("timeout")
	assert.ErrorContains(t, store.HealthCheck(context.Background(), 0), "not reachable")
}

func TestValidateStorageConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     lowcoder.StorageConfig
		wantErr string
	}{
		{"filesystem", lowcoder.StorageConfig{Backend: lowcoder.StorageBackendFilesystem, Directory: "media"}, ""},
		{"filesystem without directory", lowcoder.StorageConfig{Backend: lowcoder.StorageBackendFilesystem}, "storage.directory"},
		{"s3 without bucket", lowcoder.StorageConfig{Backend: lowcoder.StorageBackendS3}, "storage.s3Bucket"},
		{"s3 half credentials", lowcoder.StorageConfig{Backend: lowcoder.StorageBackendS3, S3Bucket: "b", S3AccessKey: "AK"}, "s3SecretKey"},
		{"s3", lowcoder.StorageConfig{Backend: lowcoder.StorageBackendS3, S3Bucket: "b"}, ""},
		{"unknown backend", lowcoder.StorageConfig{Backend: "ftp"}, "unsupported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStorageConfig(tt.cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewBlobStore_Filesystem(t *testing.T) {
	store, err := NewBlobStore(context.Background(), lowcoder.StorageConfig{Directory: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FilesystemBlobStore{}, store)

	_, err = NewBlobStore(context.Background(), lowcoder.StorageConfig{Backend: lowcoder.StorageBackendS3})
	assert.Error(t, err)
}

func TestS3BlobStore_BreakerOpensOnRepeatedFailures(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	store := newS3BlobStore(client, "lowcoder", "")

	client.deleteErr = &smithy.GenericAPIError{Code: "SlowDown", Message: "throttled"}
	for i := 0; i < 5; i++ {
		require.Error(t, store.Delete(ctx, "a.txt"))
	}

	client.deleteErr = nil
	client.objects["lowcoder/a.txt"] = "kept"
	err := store.Delete(ctx, "a.txt")
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Equal(t, "kept", client.objects["lowcoder/a.txt"])
}
