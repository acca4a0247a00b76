package pcc

import (
	"context"
	"io"
)

// BlobStore provides an interface for remote blob storage backends.
// Keys are slash-separated logical paths. All operations use io.Reader and
// io.Writer for streaming so large blobs never need to be buffered whole.
//
// Implementations must return an error wrapping ErrNotFound from Get when the
// key does not exist.
type BlobStore interface {
	// Put stores a blob under key. size is the number of bytes that will be
	// read from r. Writes must be atomic: a reader never observes a
	// partially written blob.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get retrieves the blob at key and writes it to w.
	Get(ctx context.Context, key string, w io.Writer) error

	// Exists reports whether a blob exists at key.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns all keys with the given prefix, in unspecified order.
	List(ctx context.Context, prefix string) ([]string, error)

	// ValidateSetup verifies that the store is accessible and properly
	// configured.
	ValidateSetup(ctx context.Context) error
}
