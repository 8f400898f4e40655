package fileshare

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by Service. Match them with errors.Is.
var (
	// ErrNotFound means an id resolves to no row.
	ErrNotFound = errors.New("not found")

	// ErrInvalidMove means a directory move would create a cycle or a self-loop.
	ErrInvalidMove = errors.New("invalid move")

	// ErrStorageIO means a blob read, write or delete failed.
	ErrStorageIO = errors.New("storage i/o")

	// ErrMetadataIO means a metadata store query failed.
	ErrMetadataIO = errors.New("metadata i/o")

	// ErrConflict means an id collided on insert. Conflicts also match ErrMetadataIO.
	ErrConflict = fmt.Errorf("%w: conflict", ErrMetadataIO)

	// ErrBlobNotFound is returned by a BlobStore when the addressed blob does not exist.
	ErrBlobNotFound = errors.New("blob not found")
)

func storageErr(action string, err error) error {
	if errors.Is(err, ErrStorageIO) {
		return fmt.Errorf("%s: %w", action, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageIO, action, err)
}

func metadataErr(action string, err error) error {
	if errors.Is(err, ErrMetadataIO) || errors.Is(err, ErrInvalidMove) {
		return fmt.Errorf("%s: %w", action, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrMetadataIO, action, err)
}
