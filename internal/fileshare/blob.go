package fileshare

import (
	"context"
	"io"
)

// BlobStore holds the byte content of files. Blobs are addressed by the
// storage path Write returns, which the MetadataStore persists.
type BlobStore interface {
	// Write stores the content read from r under name and returns the storage
	// path and the number of content bytes written.
	Write(ctx context.Context, name string, r io.Reader) (string, int64, error)

	// Open returns a reader for the blob at path. The caller must close it.
	// A missing blob yields an error matching ErrBlobNotFound.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Remove deletes the blob at path. A missing blob yields an error
	// matching ErrBlobNotFound.
	Remove(ctx context.Context, path string) error

	// List enumerates every blob in the store.
	List(ctx context.Context) ([]BlobInfo, error)

	// ValidateSetup verifies that the store is accessible and properly configured.
	ValidateSetup(ctx context.Context) error
}
