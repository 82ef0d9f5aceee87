package storage

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/expense-tracker/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadKey(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	pattern := regexp.MustCompile(`^1700000000123-\d{1,9}-(.+)$`)

	tests := []struct {
		filename string
		wantBase string
	}{
		{filename: "expenses.csv", wantBase: "expenses.csv"},
		{filename: "../../etc/passwd", wantBase: "passwd"},
		{filename: `C:\Users\me\march.csv`, wantBase: "march.csv"},
		{filename: "", wantBase: "upload"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			key := UploadKey(now, tt.filename)
			match := pattern.FindStringSubmatch(key)
			require.NotNil(t, match, "unexpected key %q", key)
			assert.Equal(t, tt.wantBase, match[1])
		})
	}
}

func TestLocalDisk_Store(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	archive, err := FromConfig(context.Background(), config.UploadConfig{Backend: "local", Dir: dir})
	require.NoError(t, err)
	assert.DirExists(t, dir)

	location, err := archive.Store(context.Background(), Upload{
		Key:          "1-2-expenses.csv",
		OriginalName: "expenses.csv",
		ContentType:  "text/csv",
		Body:         strings.NewReader("amount,date\n1,2024-01-01\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "1-2-expenses.csv"), location)

	data, err := os.ReadFile(location)
	require.NoError(t, err)
	assert.Equal(t, "amount,date\n1,2024-01-01\n", string(data))

	_, err = archive.Store(context.Background(), Upload{Key: "1-2-expenses.csv", Body: strings.NewReader("again")})
	assert.Error(t, err, "existing uploads must not be overwritten")
}

func TestLocalDisk_RejectsNestedKeys(t *testing.T) {
	disk, err := NewLocalDisk(t.TempDir())
	require.NoError(t, err)

	_, err = disk.Store(context.Background(), Upload{Key: "../escape.csv", Body: strings.NewReader("x")})
	assert.Error(t, err)
}

func TestStorage_RequiresKeyAndBody(t *testing.T) {
	disk, err := NewLocalDisk(t.TempDir())
	require.NoError(t, err)
	archive := NewStorage(disk)

	_, err = archive.Store(context.Background(), Upload{Body: strings.NewReader("x")})
	assert.Error(t, err)
	_, err = archive.Store(context.Background(), Upload{Key: "a.csv"})
	assert.Error(t, err)
}

func TestFromConfig_UnknownBackend(t *testing.T) {
	_, err := FromConfig(context.Background(), config.UploadConfig{Backend: "ftp"})
	assert.ErrorContains(t, err, "unknown upload backend")
}

func TestFromConfig_MinioRequiresSettings(t *testing.T) {
	_, err := FromConfig(context.Background(), config.UploadConfig{Backend: "minio"})
	assert.ErrorContains(t, err, "minio endpoint is required")
}
