// Package minio keeps stored files in an S3-compatible bucket. Uploads are
// still staged on local disk and pushed to the bucket when promoted.
package minio

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

// objectStore is the subset of the MinIO client used here.
type objectStore interface {
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Storage struct {
	client objectStore
	bucket string
	logger *slog.Logger
}

// New connects to the endpoint and creates the bucket when missing.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("storage_bucket_created", "bucket", cfg.Bucket)
	}

	return &Storage{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// Promote uploads the staged file as object name and removes the local copy.
func (s *Storage) Promote(ctx context.Context, tempPath, name string) error {
	if name == "" || name != filepath.Base(name) {
		return fmt.Errorf("invalid stored file name %q", name)
	}
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/xml"
	}

	info, err := s.client.FPutObject(ctx, s.bucket, name, tempPath, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", s.bucket, name, err)
	}
	if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("staged_file_cleanup_failed", "path", tempPath, "error", err)
	}
	s.logger.Debug("object_stored", "bucket", s.bucket, "key", name, "size", info.Size, "etag", info.ETag)
	return nil
}
