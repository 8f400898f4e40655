package fileshare

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// Service is the storage facade. It couples the blob store and the metadata
// store: every file create and delete pairs a blob action with a metadata
// action, while directory operations touch metadata only (plus the blobs of
// files removed with a directory).
//
// The two stores are not updated atomically. Blobs are written before their
// row is inserted and removed before their row is deleted, so a partial
// failure leaves an orphan blob or a row pointing at a missing blob, never a
// row pointing at a half-written blob.
type Service struct {
	metadata MetadataStore
	blobs    BlobStore
	logger   Logger
	clock    Clock
	idgen    IDGenerator
}

// NewService creates a new Service with the provided dependencies.
func NewService(metadata MetadataStore, blobs BlobStore, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		metadata: metadata,
		blobs:    blobs,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
	}
}

// SaveFileParams holds the inputs of SaveFile. Optional fields are nil when absent.
type SaveFileParams struct {
	OriginalFilename  string
	Content           io.Reader
	MimeType          *string
	Description       *string
	ParentDirectoryID *string
}

// SaveFile stores a new file: the content goes to the blob store first, then
// one row is inserted. ParentDirectoryID is stored as given; a reference to a
// missing directory is rejected by the metadata store's foreign key and
// leaves the just-written blob orphaned.
func (s *Service) SaveFile(ctx context.Context, params SaveFileParams) (*File, error) {
	id := s.idgen.New()
	filename := StoredFilename(id, params.OriginalFilename)

	content := params.Content
	if content == nil {
		content = bytes.NewReader(nil)
	}

	storagePath, size, err := s.blobs.Write(ctx, filename, content)
	if err != nil {
		return nil, storageErr("writing blob", err)
	}

	file := &File{
		ID:                id,
		OriginalFilename:  params.OriginalFilename,
		Filename:          filename,
		FileSize:          size,
		MimeType:          params.MimeType,
		StoragePath:       storagePath,
		UploadedAt:        s.clock.Now(),
		Description:       params.Description,
		ParentDirectoryID: params.ParentDirectoryID,
	}

	if err := s.metadata.InsertFile(ctx, file); err != nil {
		s.logger.Warn("blob orphaned by failed insert", "id", id, "path", storagePath)
		return nil, metadataErr("inserting file", err)
	}

	s.logger.Info("file saved", "id", id, "name", params.OriginalFilename, "size", size)
	return file, nil
}

// GetFileMetadata returns the file with the given id, or nil if there is none.
func (s *Service) GetFileMetadata(ctx context.Context, id string) (*File, error) {
	file, err := s.metadata.FindFile(ctx, id)
	if err != nil {
		return nil, metadataErr("finding file", err)
	}
	return file, nil
}

// GetFilePath returns the storage path of the file's blob. The boolean is
// false when no file has the given id.
func (s *Service) GetFilePath(ctx context.Context, id string) (string, bool, error) {
	file, err := s.GetFileMetadata(ctx, id)
	if err != nil {
		return "", false, err
	}
	if file == nil {
		return "", false, nil
	}
	return file.StoragePath, true, nil
}

// OpenFile returns the file's metadata and a reader over its content.
// The caller must close the reader. A missing row yields ErrNotFound; a row
// whose blob is gone yields ErrStorageIO.
func (s *Service) OpenFile(ctx context.Context, id string) (*File, io.ReadCloser, error) {
	file, err := s.GetFileMetadata(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if file == nil {
		return nil, nil, fmt.Errorf("file %s: %w", id, ErrNotFound)
	}

	rc, err := s.blobs.Open(ctx, file.StoragePath)
	if err != nil {
		return nil, nil, storageErr("opening blob", err)
	}
	return file, rc, nil
}

// ListFiles returns the files directly inside parentID, or the root-level
// files when parentID is nil, newest first.
func (s *Service) ListFiles(ctx context.Context, parentID *string) ([]*File, error) {
	files, err := s.metadata.ListFiles(ctx, parentID)
	if err != nil {
		return nil, metadataErr("listing files", err)
	}
	return files, nil
}

// DeleteFile removes the file's blob and then its row. A blob that is
// already missing is tolerated so a retry after a partial failure completes.
// Returns true iff a row was removed.
func (s *Service) DeleteFile(ctx context.Context, id string) (bool, error) {
	file, err := s.GetFileMetadata(ctx, id)
	if err != nil {
		return false, err
	}
	if file == nil {
		return false, nil
	}

	if err := s.removeBlob(ctx, file); err != nil {
		return false, err
	}

	deleted, err := s.metadata.DeleteFile(ctx, id)
	if err != nil {
		return false, metadataErr("deleting file", err)
	}

	if deleted {
		s.logger.Info("file deleted", "id", id)
	}
	return deleted, nil
}

// removeBlob deletes a file's blob, logging instead of failing when it is already gone.
func (s *Service) removeBlob(ctx context.Context, file *File) error {
	err := s.blobs.Remove(ctx, file.StoragePath)
	if errors.Is(err, ErrBlobNotFound) {
		s.logger.Warn("blob already missing", "id", file.ID, "path", file.StoragePath)
		return nil
	}
	if err != nil {
		return storageErr("removing blob", err)
	}
	s.logger.Debug("blob removed", "id", file.ID, "path", file.StoragePath)
	return nil
}

// MoveFile re-parents a file. Returns nil if no file has the given id.
func (s *Service) MoveFile(ctx context.Context, id string, parentID *string) (*File, error) {
	file, err := s.metadata.UpdateFileParent(ctx, id, parentID)
	if err != nil {
		return nil, metadataErr("moving file", err)
	}
	if file != nil {
		s.logger.Info("file moved", "id", id, "parent", derefOr(parentID, "<root>"))
	}
	return file, nil
}

// CreateDirectory creates a directory under parentID, or at the root when
// parentID is nil.
func (s *Service) CreateDirectory(ctx context.Context, name string, parentID *string) (*Directory, error) {
	now := s.clock.Now()
	directory := &Directory{
		ID:        s.idgen.New(),
		Name:      name,
		ParentID:  parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.metadata.InsertDirectory(ctx, directory); err != nil {
		return nil, metadataErr("inserting directory", err)
	}

	s.logger.Info("directory created", "id", directory.ID, "name", name)
	return directory, nil
}

// GetDirectory returns the directory with the given id, or nil if there is none.
func (s *Service) GetDirectory(ctx context.Context, id string) (*Directory, error) {
	directory, err := s.metadata.FindDirectory(ctx, id)
	if err != nil {
		return nil, metadataErr("finding directory", err)
	}
	return directory, nil
}

// ListDirectories returns the directories directly inside parentID, or the
// root-level directories when parentID is nil, ordered by name.
func (s *Service) ListDirectories(ctx context.Context, parentID *string) ([]*Directory, error) {
	directories, err := s.metadata.ListDirectories(ctx, parentID)
	if err != nil {
		return nil, metadataErr("listing directories", err)
	}
	return directories, nil
}

// GetDirectoryStats counts the files directly inside the directory and sums
// their sizes. Descendant directories are not included.
func (s *Service) GetDirectoryStats(ctx context.Context, id string) (DirectoryStats, error) {
	stats, err := s.metadata.DirectoryStats(ctx, id)
	if err != nil {
		return DirectoryStats{}, metadataErr("aggregating directory stats", err)
	}
	return stats, nil
}

// DeleteDirectory removes a directory with its files and descendants.
// The blobs of every file in the subtree are removed first (missing blobs
// tolerated), then the rows. Returns true iff the directory row was removed.
func (s *Service) DeleteDirectory(ctx context.Context, id string) (bool, error) {
	directory, err := s.GetDirectory(ctx, id)
	if err != nil {
		return false, err
	}
	if directory == nil {
		return false, nil
	}

	files, err := s.metadata.ListSubtreeFiles(ctx, id)
	if err != nil {
		return false, metadataErr("listing directory contents", err)
	}
	for _, file := range files {
		if err := s.removeBlob(ctx, file); err != nil {
			return false, err
		}
	}

	deleted, err := s.metadata.DeleteDirectory(ctx, id)
	if err != nil {
		return false, metadataErr("deleting directory", err)
	}

	if deleted {
		s.logger.Info("directory deleted", "id", id, "files", len(files))
	}
	return deleted, nil
}

// MoveDirectory re-parents a directory. Moving a directory into itself or
// into one of its descendants fails with ErrInvalidMove and changes nothing.
// Returns nil if no directory has the given id.
func (s *Service) MoveDirectory(ctx context.Context, id string, parentID *string) (*Directory, error) {
	if parentID != nil && *parentID == id {
		return nil, fmt.Errorf("moving directory %s into itself: %w", id, ErrInvalidMove)
	}

	directory, err := s.metadata.MoveDirectory(ctx, id, parentID, s.clock.Now())
	if err != nil {
		return nil, metadataErr("moving directory", err)
	}
	if directory != nil {
		s.logger.Info("directory moved", "id", id, "parent", derefOr(parentID, "<root>"))
	}
	return directory, nil
}

// BulkDelete deletes the given files and then the given directories. Ids that
// match nothing are skipped. The first failure aborts the batch; deletions
// made before it stay, and the returned counts reflect them.
func (s *Service) BulkDelete(ctx context.Context, fileIDs, directoryIDs []string) (BulkDeleteResult, error) {
	var result BulkDeleteResult

	for _, id := range fileIDs {
		deleted, err := s.DeleteFile(ctx, id)
		if err != nil {
			return result, fmt.Errorf("bulk deleting file %s: %w", id, err)
		}
		if deleted {
			result.DeletedFiles++
		}
	}

	for _, id := range directoryIDs {
		deleted, err := s.DeleteDirectory(ctx, id)
		if err != nil {
			return result, fmt.Errorf("bulk deleting directory %s: %w", id, err)
		}
		if deleted {
			result.DeletedDirectories++
		}
	}

	s.logger.Info("bulk delete complete", "files", result.DeletedFiles, "directories", result.DeletedDirectories)
	return result, nil
}

// Listing returns the files and directories directly inside parentID (the
// root when nil), each directory with its shallow stats.
func (s *Service) Listing(ctx context.Context, parentID *string) (*Listing, error) {
	files, err := s.ListFiles(ctx, parentID)
	if err != nil {
		return nil, err
	}

	directories, err := s.ListDirectories(ctx, parentID)
	if err != nil {
		return nil, err
	}

	entries := make([]*DirectoryEntry, 0, len(directories))
	for _, d := range directories {
		stats, err := s.GetDirectoryStats(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &DirectoryEntry{Directory: d, Stats: stats})
	}

	return &Listing{
		Files:       files,
		Directories: entries,
		Total:       len(files) + len(entries),
	}, nil
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
