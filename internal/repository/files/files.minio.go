// FilePath: internal/repository/files/files.minio.go
package files

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sauqing9/api-sitras/internal/config"
	"github.com/sauqing9/api-sitras/internal/errors"
	"github.com/sauqing9/api-sitras/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// MinioRepo implements repository.AttachmentStore on an S3 compatible bucket
type MinioRepo struct {
	client *minio.Client
	bucket string
}

// NewMinioRepository connects to the object store and creates the bucket when missing
func NewMinioRepository(cfg config.MinioConfig) (*MinioRepo, error) {
	return newMinioRepository(cfg, nil)
}

func newMinioRepository(cfg config.MinioConfig, transport http.RoundTripper) (*MinioRepo, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.Secure,
		Region:    cfg.Location,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("error checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Location}); err != nil {
			return nil, fmt.Errorf("error creating bucket %s: %w", cfg.Bucket, err)
		}
		nuts.L.Infof("[MinioRepo] Created bucket %s", cfg.Bucket)
	}

	nuts.L.Infof("[MinioRepo] Connected to %s/%s", cfg.Endpoint, cfg.Bucket)
	return &MinioRepo{client: client, bucket: cfg.Bucket}, nil
}

func (r *MinioRepo) Put(ctx context.Context, key string, src io.Reader, size int64, contentType string) error {
	_, err := r.client.PutObject(ctx, r.bucket, key, src, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return errors.NewInternalError("failed to upload file", err)
	}
	nuts.L.Infof("[MinioRepo] Stored object: %s (%d bytes)", key, size)
	return nil
}

func (r *MinioRepo) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if _, err := r.client.StatObject(ctx, r.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, errors.NewNotFoundError("file not found", err)
		}
		return nil, errors.NewInternalError("failed to stat file", err)
	}
	obj, err := r.client.GetObject(ctx, r.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.NewInternalError("failed to open file", err)
	}
	return obj, nil
}

func (r *MinioRepo) Delete(ctx context.Context, key string) error {
	if err := r.client.RemoveObject(ctx, r.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return errors.NewInternalError("failed to delete file", err)
	}
	return nil
}

// DeletePrefix removes every object under prefix. The listing is cancelled on
// early return so its producer goroutine exits.
func (r *MinioRepo) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var deleted int
	for obj := range r.client.ListObjects(ctx, r.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return deleted, errors.NewInternalError("failed to list files", obj.Err)
		}
		if err := r.client.RemoveObject(ctx, r.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return deleted, errors.NewInternalError("failed to delete file", err)
		}
		deleted++
	}
	return deleted, nil
}

var _ repository.AttachmentStore = (*MinioRepo)(nil)
