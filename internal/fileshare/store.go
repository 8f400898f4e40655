package fileshare

import (
	"context"
	"time"
)

// MetadataStore provides the relational half of the storage engine: the files
// and directories tables. Lookups that find nothing return (nil, nil).
type MetadataStore interface {
	// File operations

	// InsertFile records a new file row.
	InsertFile(ctx context.Context, file *File) error

	// FindFile returns a file by id.
	FindFile(ctx context.Context, id string) (*File, error)

	// ListFiles returns the files whose parent equals parentID (nil selects
	// root-level files), newest first.
	ListFiles(ctx context.Context, parentID *string) ([]*File, error)

	// ListSubtreeFiles returns every file inside the directory or any of its descendants.
	ListSubtreeFiles(ctx context.Context, directoryID string) ([]*File, error)

	// ListStoredFilenames returns the stored filename of every file row.
	ListStoredFilenames(ctx context.Context) ([]string, error)

	// UpdateFileParent re-parents a file and returns its new state.
	UpdateFileParent(ctx context.Context, id string, parentID *string) (*File, error)

	// DeleteFile removes a file row. Returns true iff a row was removed.
	DeleteFile(ctx context.Context, id string) (bool, error)

	// Directory operations

	// InsertDirectory records a new directory row.
	InsertDirectory(ctx context.Context, directory *Directory) error

	// FindDirectory returns a directory by id.
	FindDirectory(ctx context.Context, id string) (*Directory, error)

	// ListDirectories returns the directories whose parent equals parentID
	// (nil selects root-level directories), ordered by name.
	ListDirectories(ctx context.Context, parentID *string) ([]*Directory, error)

	// DirectoryStats aggregates the files directly inside a directory.
	DirectoryStats(ctx context.Context, id string) (DirectoryStats, error)

	// MoveDirectory re-parents a directory and stamps updatedAt, rejecting the
	// move with ErrInvalidMove when parentID is the directory itself or one of
	// its descendants.
	MoveDirectory(ctx context.Context, id string, parentID *string, updatedAt time.Time) (*Directory, error)

	// DeleteDirectory removes the directory's own files and then the directory;
	// descendant directories and their files go by cascade.
	// Returns true iff the directory row was removed.
	DeleteDirectory(ctx context.Context, id string) (bool, error)

	// CheckMigrations verifies the schema is up-to-date.
	CheckMigrations() error

	// Close releases the connection pool.
	Close() error
}
