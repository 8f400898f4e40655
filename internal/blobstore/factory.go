package blobstore

import (
	"context"
	"fmt"

	"fileshare/internal/config"
	"fileshare/internal/fileshare"
)

// NewBlobStoreFromConfig creates a BlobStore implementation based on the
// configured backend.
func NewBlobStoreFromConfig(ctx context.Context, cfg config.BlobConfig, clock fileshare.Clock) (fileshare.BlobStore, error) {
	switch cfg.Backend {
	case "filesystem", "":
		if cfg.UploadDir == "" {
			return nil, fmt.Errorf("filesystem blob store requires upload_dir to be set")
		}
		return NewFilesystemStore(cfg.UploadDir)
	case "memory":
		return NewMemoryStore(clock), nil
	case "s3":
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown blob backend: %s", cfg.Backend)
	}
}
