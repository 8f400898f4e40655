package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"fileshare/internal/fileshare"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Service: "file-transfer-api"})
}

// handleListFiles merges files and directories at one level. An empty or
// missing parent_directory_id selects the root.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	parentID := optionalString(r.URL.Query().Get("parent_directory_id"))

	listing, err := s.svc.Listing(r.Context(), parentID)
	if err != nil {
		s.serviceError(w, r, "list files", err)
		return
	}

	resp := listResponse{
		Files:       make([]fileResponse, 0, len(listing.Files)),
		Directories: make([]directoryResponse, 0, len(listing.Directories)),
		Total:       listing.Total,
	}
	for _, f := range listing.Files {
		resp.Files = append(resp.Files, newFileResponse(f))
	}
	for _, d := range listing.Directories {
		resp.Directories = append(resp.Directories, newDirectoryResponse(d.Directory, d.Stats))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds the %d byte upload limit", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	if header.Size == 0 {
		writeError(w, http.StatusBadRequest, "Uploaded file is empty")
		return
	}

	saved, err := s.svc.SaveFile(r.Context(), fileshare.SaveFileParams{
		OriginalFilename:  header.Filename,
		Content:           file,
		MimeType:          partContentType(header),
		Description:       optionalString(r.FormValue("description")),
		ParentDirectoryID: optionalString(r.FormValue("parent_directory_id")),
	})
	if err != nil {
		s.serviceError(w, r, "save file", err)
		return
	}

	if s.metrics != nil {
		s.metrics.uploadedBytes.Add(float64(saved.FileSize))
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		Success: true,
		File:    newFileResponse(saved),
		Message: "File uploaded successfully",
	})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	file, err := s.svc.GetFileMetadata(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, r, "get file", err)
		return
	}
	if file == nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	writeJSON(w, http.StatusOK, newFileResponse(file))
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	file, rc, err := s.svc.OpenFile(r.Context(), r.PathValue("id"))
	if errors.Is(err, fileshare.ErrNotFound) {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	if err != nil {
		s.serviceError(w, r, "read file", err)
		return
	}
	defer rc.Close()

	contentType := "application/octet-stream"
	if file.MimeType != nil && *file.MimeType != "" {
		contentType = *file.MimeType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", contentDisposition(file.OriginalFilename))
	w.Header().Set("Content-Length", strconv.FormatInt(file.FileSize, 10))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		// Headers are gone; all that is left is to log it.
		s.logger.Warn("download interrupted", "id", file.ID, "error", err)
	}
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.svc.DeleteFile(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, r, "delete file", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Success: true, Message: "File deleted successfully"})
}

func (s *Server) handleMoveFile(w http.ResponseWriter, r *http.Request) {
	var req moveFileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	file, err := s.svc.MoveFile(r.Context(), r.PathValue("id"), emptyToNil(req.ParentDirectoryID))
	if err != nil {
		s.serviceError(w, r, "move file", err)
		return
	}
	if file == nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	writeJSON(w, http.StatusOK, moveFileResponse{
		Success: true,
		File:    newFileResponse(file),
		Message: "File moved successfully",
	})
}

func (s *Server) handleCreateDirectory(w http.ResponseWriter, r *http.Request) {
	var req createDirectoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Directory name is required")
		return
	}

	directory, err := s.svc.CreateDirectory(r.Context(), req.Name, emptyToNil(req.ParentID))
	if err != nil {
		s.serviceError(w, r, "create directory", err)
		return
	}
	writeJSON(w, http.StatusOK, directoryEnvelope{
		Success:   true,
		Directory: newDirectoryResponse(directory, fileshare.DirectoryStats{}),
		Message:   "Directory created successfully",
	})
}

func (s *Server) handleGetDirectory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	directory, err := s.svc.GetDirectory(ctx, id)
	if err != nil {
		s.serviceError(w, r, "get directory", err)
		return
	}
	if directory == nil {
		writeError(w, http.StatusNotFound, "Directory not found")
		return
	}

	stats, err := s.svc.GetDirectoryStats(ctx, id)
	if err != nil {
		s.serviceError(w, r, "get directory stats", err)
		return
	}
	writeJSON(w, http.StatusOK, newDirectoryResponse(directory, stats))
}

func (s *Server) handleDeleteDirectory(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.svc.DeleteDirectory(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, r, "delete directory", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Directory not found")
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Success: true, Message: "Directory deleted successfully"})
}

func (s *Server) handleMoveDirectory(w http.ResponseWriter, r *http.Request) {
	var req moveDirectoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	directory, err := s.svc.MoveDirectory(ctx, r.PathValue("id"), emptyToNil(req.ParentID))
	if err != nil {
		s.serviceError(w, r, "move directory", err)
		return
	}
	if directory == nil {
		writeError(w, http.StatusNotFound, "Directory not found")
		return
	}

	stats, err := s.svc.GetDirectoryStats(ctx, directory.ID)
	if err != nil {
		s.serviceError(w, r, "get directory stats", err)
		return
	}
	writeJSON(w, http.StatusOK, directoryEnvelope{
		Success:   true,
		Directory: newDirectoryResponse(directory, stats),
		Message:   "Directory moved successfully",
	})
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.svc.BulkDelete(r.Context(), req.FileIDs, req.DirectoryIDs)
	if err != nil {
		s.serviceError(w, r, "bulk delete", err)
		return
	}
	writeJSON(w, http.StatusOK, bulkDeleteResponse{
		Success:            true,
		DeletedFiles:       result.DeletedFiles,
		DeletedDirectories: result.DeletedDirectories,
		Message:            fmt.Sprintf("Deleted %d files and %d directories", result.DeletedFiles, result.DeletedDirectories),
	})
}

// serviceError maps the error taxonomy onto a status code and logs the
// failures a client cannot fix.
func (s *Server) serviceError(w http.ResponseWriter, r *http.Request, action string, err error) {
	switch {
	case errors.Is(err, fileshare.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, fileshare.ErrInvalidMove):
		writeError(w, http.StatusBadRequest, "Cannot move a directory into itself or one of its descendants")
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "action", action, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to "+action)
	}
}

// decodeBody reads a JSON request body into v, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

func partContentType(h *multipart.FileHeader) *string {
	return optionalString(h.Header.Get("Content-Type"))
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func emptyToNil(s *string) *string {
	if s == nil {
		return nil
	}
	return optionalString(*s)
}

// contentDisposition formats an attachment header for name, switching to the
// RFC 2231 filename* form for names that are not plain ASCII.
func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}
