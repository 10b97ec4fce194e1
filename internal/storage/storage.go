package storage

import (
	"context"
	"errors"
	"io"
)

// ErrBlobNotFound means no blob is stored under the requested key.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore holds file contents under internal storage keys. Nothing outside
// this package touches the underlying object store directly. Delete is
// idempotent: deleting an absent key is not an error.
type BlobStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	OpenRead(ctx context.Context, key string) (io.ReadCloser, error)
}
