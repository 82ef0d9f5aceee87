package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/expense-tracker/apiserver/config"
	"google.golang.org/api/option"
)

// GCSArchive archives uploads in a Google Cloud Storage bucket.
type GCSArchive struct {
	client    *storage.Client
	bucket    string
	projectID string
}

// NewGCSArchive constructs a GCS archive from config.
func NewGCSArchive(ctx context.Context, cfg config.GCSConfig) (*GCSArchive, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &GCSArchive{client: client, bucket: cfg.Bucket, projectID: cfg.ProjectID}, nil
}

// EnsureBucket creates the bucket when it is missing and a project is configured.
func (g *GCSArchive) EnsureBucket(ctx context.Context) error {
	_, err := g.client.Bucket(g.bucket).Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return err
	}
	if strings.TrimSpace(g.projectID) == "" {
		return errors.New("gcs project id is required to create bucket")
	}
	return g.client.Bucket(g.bucket).Create(ctx, g.projectID, nil)
}

// Store writes the upload only if no object with the same key exists.
func (g *GCSArchive) Store(ctx context.Context, upload Upload) (string, error) {
	object := g.client.Bucket(g.bucket).Object(upload.Key).If(storage.Conditions{DoesNotExist: true})
	writer := object.NewWriter(ctx)
	writer.ContentType = upload.ContentType
	writer.Metadata = map[string]string{"original-name": upload.OriginalName}

	if _, err := io.Copy(writer, upload.Body); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("gcs write %s: %w", upload.Key, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("gcs close %s: %w", upload.Key, err)
	}
	return fmt.Sprintf("gs://%s/%s", g.bucket, upload.Key), nil
}
