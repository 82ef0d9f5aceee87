package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"

	"github.com/expense-tracker/apiserver/config"
)

// Upload is a file received from a client, ready to be archived.
type Upload struct {
	Key          string
	OriginalName string
	ContentType  string
	Size         int64
	Body         io.Reader
}

// Archive stores uploads on some backend and reports where each one went.
type Archive interface {
	EnsureBucket(ctx context.Context) error
	Store(ctx context.Context, upload Upload) (string, error)
}

// Storage wraps an Archive backend with key validation.
type Storage struct {
	backend Archive
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend Archive) *Storage {
	return &Storage{backend: backend}
}

// FromConfig builds the backend selected by cfg.Backend and makes sure its
// bucket or directory exists.
func FromConfig(ctx context.Context, cfg config.UploadConfig) (*Storage, error) {
	var (
		backend Archive
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "local":
		backend, err = NewLocalDisk(cfg.Dir)
	case "minio":
		backend, err = NewMinioArchive(cfg.Minio)
	case "gcs":
		backend, err = NewGCSArchive(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown upload backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if err := backend.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure upload bucket: %w", err)
	}
	return NewStorage(backend), nil
}

// Store archives upload and returns its location.
func (s *Storage) Store(ctx context.Context, upload Upload) (string, error) {
	if strings.TrimSpace(upload.Key) == "" {
		return "", errors.New("object key is required")
	}
	if upload.Body == nil {
		return "", errors.New("upload body is required")
	}
	return s.backend.Store(ctx, upload)
}

// UploadKey names an uploaded file "<unix-millis>-<random>-<original base name>".
func UploadKey(now time.Time, filename string) string {
	return fmt.Sprintf("%d-%d-%s", now.UnixMilli(), rand.IntN(1e9), safeBaseName(filename))
}

func safeBaseName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	base = strings.TrimSpace(base)
	if base == "." || base == "/" || base == "" || base == ".." {
		return "upload"
	}
	return base
}
