package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"fileshare/internal/fileshare"
)

// fileResponse is the public view of a file. The storage path stays private.
type fileResponse struct {
	ID                string    `json:"id"`
	Filename          string    `json:"filename"`
	OriginalFilename  string    `json:"original_filename"`
	FileSize          int64     `json:"file_size"`
	MimeType          *string   `json:"mime_type"`
	UploadedAt        time.Time `json:"uploaded_at"`
	Description       *string   `json:"description"`
	ParentDirectoryID *string   `json:"parent_directory_id"`
}

func newFileResponse(f *fileshare.File) fileResponse {
	return fileResponse{
		ID:                f.ID,
		Filename:          f.Filename,
		OriginalFilename:  f.OriginalFilename,
		FileSize:          f.FileSize,
		MimeType:          f.MimeType,
		UploadedAt:        f.UploadedAt,
		Description:       f.Description,
		ParentDirectoryID: f.ParentDirectoryID,
	}
}

type directoryResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parent_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	FileCount int64     `json:"file_count"`
	TotalSize int64     `json:"total_size"`
}

func newDirectoryResponse(d *fileshare.Directory, stats fileshare.DirectoryStats) directoryResponse {
	return directoryResponse{
		ID:        d.ID,
		Name:      d.Name,
		ParentID:  d.ParentID,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		FileCount: stats.FileCount,
		TotalSize: stats.TotalSize,
	}
}

type listResponse struct {
	Files       []fileResponse      `json:"files"`
	Directories []directoryResponse `json:"directories"`
	Total       int                 `json:"total"`
}

type uploadResponse struct {
	Success bool         `json:"success"`
	File    fileResponse `json:"file"`
	Message string       `json:"message"`
}

type directoryEnvelope struct {
	Success   bool              `json:"success"`
	Directory directoryResponse `json:"directory"`
	Message   string            `json:"message"`
}

type moveFileResponse struct {
	Success bool         `json:"success"`
	File    fileResponse `json:"file"`
	Message string       `json:"message"`
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type bulkDeleteResponse struct {
	Success            bool   `json:"success"`
	DeletedFiles       int    `json:"deleted_files"`
	DeletedDirectories int    `json:"deleted_directories"`
	Message            string `json:"message"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type createDirectoryRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
}

type moveFileRequest struct {
	ParentDirectoryID *string `json:"parent_directory_id"`
}

type moveDirectoryRequest struct {
	ParentID *string `json:"parent_id"`
}

type bulkDeleteRequest struct {
	FileIDs      []string `json:"file_ids"`
	DirectoryIDs []string `json:"directory_ids"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
