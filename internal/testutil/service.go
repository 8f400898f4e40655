package testutil

import (
	"testing"

	"fileshare/internal/blobstore"
	"fileshare/internal/fileshare"
)

// ServiceFixture bundles a Service with the stores and stubs behind it so
// tests can inspect state directly.
type ServiceFixture struct {
	Service  *fileshare.Service
	Database fileshare.MetadataStore
	Blobs    *blobstore.FilesystemStore
	Clock    *StubClock
	IDs      *StubIDGenerator
}

// NewServiceFixture wires a Service over a migrated in-memory database and a
// filesystem blob store rooted in a temp directory.
func NewServiceFixture(t *testing.T) *ServiceFixture {
	t.Helper()

	blobs, err := blobstore.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}

	f := &ServiceFixture{
		Database: NewTestDatabase(t),
		Blobs:    blobs,
		Clock:    FixedClock(),
		IDs:      NewStubIDGenerator(),
	}
	f.Service = fileshare.NewService(f.Database, f.Blobs, fileshare.NewNopLogger(), f.Clock, f.IDs)
	return f
}
