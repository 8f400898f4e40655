// Package httpapi publishes fileshare.Service over HTTP with JSON envelopes.
package httpapi

import (
	"net/http"

	"fileshare/internal/fileshare"
)

// defaultMaxUploadBytes bounds a multipart upload when Options leaves it unset.
const defaultMaxUploadBytes = 100 << 20

// multipartMemory is how much of a multipart body is held in memory before
// parts spill to temp files.
const multipartMemory = 32 << 20

// Options tunes a Server.
type Options struct {
	MaxUploadBytes int64
	Metrics        *Metrics // nil disables /metrics and request instrumentation
}

// Server routes HTTP requests to the storage facade.
type Server struct {
	svc            *fileshare.Service
	logger         fileshare.Logger
	metrics        *Metrics
	maxUploadBytes int64
	handler        http.Handler
}

// NewServer builds the route table and middleware chain.
func NewServer(svc *fileshare.Service, logger fileshare.Logger, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}

	s := &Server{
		svc:            svc,
		logger:         logger,
		metrics:        opts.Metrics,
		maxUploadBytes: opts.MaxUploadBytes,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/files", s.handleListFiles)
	mux.HandleFunc("POST /api/files", s.handleUploadFile)
	mux.HandleFunc("GET /api/files/{id}", s.handleGetFile)
	mux.HandleFunc("GET /api/files/{id}/download", s.handleDownloadFile)
	mux.HandleFunc("DELETE /api/files/{id}", s.handleDeleteFile)
	mux.HandleFunc("PUT /api/files/{id}/move", s.handleMoveFile)

	mux.HandleFunc("POST /api/directories", s.handleCreateDirectory)
	mux.HandleFunc("GET /api/directories/{id}", s.handleGetDirectory)
	mux.HandleFunc("DELETE /api/directories/{id}", s.handleDeleteDirectory)
	mux.HandleFunc("PUT /api/directories/{id}/move", s.handleMoveDirectory)

	mux.HandleFunc("POST /api/bulk-delete", s.handleBulkDelete)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.handler = withCORS(s.logRequests(mux))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
