// Package blobstore provides fileshare.BlobStore implementations.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"fileshare/internal/fileshare"
)

const tempPrefix = ".tmp-"

// FilesystemStore keeps blobs as flat files in one directory:
//
//	<root>/
//	  <id>[.<ext>]   (one file per blob)
//	  .tmp-*         (uploads in progress)
//
// The storage path of a blob is the absolute root joined with its name.
// Open and Remove locate a blob by the final element of its storage path, so
// paths recorded under another spelling of the root (relative, different
// working directory) still resolve to the same file.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore resolves root to an absolute path and creates it if it
// does not exist.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if root == "" {
		return nil, fmt.Errorf("filesystem blob store requires a root directory")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving upload directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &FilesystemStore{root: abs}, nil
}

// Root returns the directory blobs are stored in.
func (s *FilesystemStore) Root() string {
	return s.root
}

// Write streams r into a temp file and renames it into place, so a reader
// never observes a partially written blob under its final name.
func (s *FilesystemStore) Write(ctx context.Context, name string, r io.Reader) (string, int64, error) {
	if err := validName(name); err != nil {
		return "", 0, err
	}
	destPath := filepath.Join(s.root, name)

	tmpFile, err := os.CreateTemp(s.root, tempPrefix+"*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, contextReader{ctx: ctx, r: r})
	if err != nil {
		tmpFile.Close()
		return "", 0, fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return "", 0, fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return "", 0, fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return destPath, written, nil
}

// Open returns the blob at path for reading.
func (s *FilesystemStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", fileshare.ErrBlobNotFound, path)
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

// Remove deletes the blob at path.
func (s *FilesystemStore) Remove(ctx context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", fileshare.ErrBlobNotFound, path)
		}
		return fmt.Errorf("failed to remove blob: %w", err)
	}
	return nil
}

// List returns every blob in the root. Temp files and subdirectories are skipped.
func (s *FilesystemStore) List(ctx context.Context) ([]fileshare.BlobInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload directory: %w", err)
	}

	var blobs []fileshare.BlobInfo
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), tempPrefix) {
			continue
		}
		info, err := entry.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue // removed since ReadDir
		}
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		blobs = append(blobs, fileshare.BlobInfo{
			Path:       filepath.Join(s.root, entry.Name()),
			Name:       entry.Name(),
			ModifiedAt: info.ModTime(),
		})
	}
	return blobs, nil
}

// ValidateSetup verifies that the root is a writable directory.
func (s *FilesystemStore) ValidateSetup(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("upload directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("upload directory is not a directory: %s", s.root)
	}

	probe, err := os.CreateTemp(s.root, tempPrefix+"probe-*")
	if err != nil {
		return fmt.Errorf("upload directory not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// resolve maps a storage path to the blob of the same name in root. The
// directory part of path is ignored, so nothing outside root is reachable.
func (s *FilesystemStore) resolve(path string) (string, error) {
	name := filepath.Base(filepath.Clean(path))
	if err := validName(name); err != nil {
		return "", fmt.Errorf("invalid storage path %q: %w", path, err)
	}
	return filepath.Join(s.root, name), nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, "/\\\x00") || strings.HasPrefix(name, tempPrefix) {
		return fmt.Errorf("invalid blob name %q", name)
	}
	return nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Compile-time check that FilesystemStore implements fileshare.BlobStore
var _ fileshare.BlobStore = (*FilesystemStore)(nil)
