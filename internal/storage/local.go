package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalDisk archives uploads as files under a directory.
type LocalDisk struct {
	dir string
}

// NewLocalDisk constructs a LocalDisk rooted at dir.
func NewLocalDisk(dir string) (*LocalDisk, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("upload directory is required")
	}
	return &LocalDisk{dir: filepath.Clean(dir)}, nil
}

// EnsureBucket creates the upload directory.
func (l *LocalDisk) EnsureBucket(ctx context.Context) error {
	return os.MkdirAll(l.dir, 0o755)
}

// Store writes the upload to <dir>/<key>. Existing files are never overwritten.
func (l *LocalDisk) Store(ctx context.Context, upload Upload) (string, error) {
	name := filepath.Base(upload.Key)
	if name != upload.Key || name == "." || name == ".." {
		return "", fmt.Errorf("invalid object key %q", upload.Key)
	}

	dst := filepath.Join(l.dir, name)
	file, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(file, upload.Body); err != nil {
		_ = file.Close()
		_ = os.Remove(dst)
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", err
	}
	return dst, nil
}
