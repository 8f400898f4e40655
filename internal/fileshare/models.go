package fileshare

import "time"

// File is the metadata of one uploaded blob. Content is immutable once saved;
// only ParentDirectoryID changes after creation.
type File struct {
	ID                string    // UUID
	OriginalFilename  string    // client-supplied name, used for Content-Disposition only
	Filename          string    // on-disk name: ID or ID.<ext>
	FileSize          int64     // bytes written to the blob store
	MimeType          *string   // as supplied by the client; nil means unknown
	StoragePath       string    // blob store location, owned by the BlobStore
	UploadedAt        time.Time // creation time
	Description       *string   // optional free text
	ParentDirectoryID *string   // nil means the file sits at the root
}

// Directory is one node of the directory forest.
type Directory struct {
	ID        string  // UUID
	Name      string  // display name, not unique
	ParentID  *string // nil means a root-level directory
	CreatedAt time.Time
	UpdatedAt time.Time // advances on move
}

// DirectoryStats aggregates the files directly inside a directory.
// Files in descendant directories are not counted.
type DirectoryStats struct {
	FileCount int64
	TotalSize int64
}

// DirectoryEntry pairs a directory with its shallow stats for listings.
type DirectoryEntry struct {
	Directory *Directory
	Stats     DirectoryStats
}

// Listing is the merged content of one level of the hierarchy.
type Listing struct {
	Files       []*File
	Directories []*DirectoryEntry
	Total       int
}

// BulkDeleteResult counts the rows actually removed by BulkDelete.
type BulkDeleteResult struct {
	DeletedFiles       int
	DeletedDirectories int
}

// BlobInfo describes a blob as enumerated by a BlobStore.
type BlobInfo struct {
	Path string
	// Name is the blob name given to Write. It matches files.filename.
	Name       string
	ModifiedAt time.Time
}
