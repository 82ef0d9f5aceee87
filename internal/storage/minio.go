package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/expense-tracker/apiserver/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioArchive archives uploads in a MinIO (or any S3-compatible) bucket.
type MinioArchive struct {
	client *minio.Client
	bucket string
}

// NewMinioArchive constructs a MinIO archive from config.
func NewMinioArchive(cfg config.MinioConfig) (*MinioArchive, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("minio endpoint is required")
	}
	if strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("minio access key and secret key are required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("minio bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	return &MinioArchive{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket on first use.
func (m *MinioArchive) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
}

// Store puts the upload under its key, keeping the client's file name as metadata.
func (m *MinioArchive) Store(ctx context.Context, upload Upload) (string, error) {
	info, err := m.client.PutObject(ctx, m.bucket, upload.Key, upload.Body, upload.Size, minio.PutObjectOptions{
		ContentType:  upload.ContentType,
		UserMetadata: map[string]string{"original-name": upload.OriginalName},
	})
	if err != nil {
		return "", fmt.Errorf("minio put %s: %w", upload.Key, err)
	}
	return fmt.Sprintf("s3://%s/%s", info.Bucket, info.Key), nil
}
