// Package storage defines where finished dataset files are published.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// CSVContentType is attached to every uploaded dataset.
const CSVContentType = "text/csv; charset=utf-8"

// BlobStore persists one artifact and returns a URI describing where it went.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// NoopBlobStore discards uploads. It is the default when no storage
// provider is configured.
type NoopBlobStore struct{}

// PutObject drains nothing and returns an empty URI.
func (NoopBlobStore) PutObject(_ context.Context, _ string, _ string, _ io.Reader) (string, error) {
	return "", nil
}

// ObjectPath lays artifacts out as <prefix>/<run id>/<file name>.
func ObjectPath(prefix, runID, fileName string) (string, error) {
	if strings.TrimSpace(runID) == "" {
		return "", fmt.Errorf("run id is required")
	}
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("file name %q is not usable", fileName)
	}
	return path.Join(strings.Trim(prefix, "/"), runID, name), nil
}
