// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/thesaasbook/pdf-tools/pkg/catalog"
	"github.com/thesaasbook/pdf-tools/pkg/core/config"
	"github.com/thesaasbook/pdf-tools/pkg/core/schema"
	"github.com/thesaasbook/pdf-tools/pkg/core/services"
	"github.com/thesaasbook/pdf-tools/pkg/observability/logging"
)

// Options configures the HTTP adapter
type Options struct {
	BaseURL        string        // public origin used in the sitemap
	MaxUploadBytes int64         // whole multipart body
	MaxFileBytes   int64         // per-file limit shown on the workspace page
	WorkspaceTTL   time.Duration // cookie lifetime
	SecureCookies  bool
}

// Handler implements the HTTP adapter
type Handler struct {
	logger     *logging.Logger
	mux        *http.ServeMux
	workspaces *services.WorkspaceService
	merges     *services.MergeService
	pages      *pages
	opts       Options
	now        func() time.Time
}

// New creates a new HTTP handler
func New(logger *logging.Logger, workspaces *services.WorkspaceService, merges *services.MergeService, opts Options) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 512 << 20
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = config.DefaultMaxFileBytes
	}
	if opts.WorkspaceTTL <= 0 {
		opts.WorkspaceTTL = 24 * time.Hour
	}

	h := &Handler{
		logger:     logger,
		mux:        http.NewServeMux(),
		workspaces: workspaces,
		merges:     merges,
		pages:      loadPages(),
		opts:       opts,
		now:        time.Now,
	}

	// Register routes
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /sitemap.xml", h.handleSitemap)
	h.mux.HandleFunc("GET /{$}", h.handleRoot)

	// Catalog
	h.mux.HandleFunc("GET "+catalog.BasePath, h.handleCatalog)
	h.mux.HandleFunc("GET /api/tools", h.handleListTools)
	h.mux.HandleFunc("GET "+catalog.BasePath+"/{tool}", h.handleToolPage)

	// Merge workspace
	mergePath := catalog.BasePath + "/" + catalog.MergeSlug
	h.mux.HandleFunc("GET "+mergePath, h.handleWorkspace)
	h.mux.HandleFunc("POST "+mergePath+"/files", h.handleAddFiles)
	h.mux.HandleFunc("POST "+mergePath+"/files/{id}/delete", h.handleRemoveFile)
	h.mux.HandleFunc("POST "+mergePath+"/files/{index}/move", h.handleMoveFile)
	h.mux.HandleFunc("POST "+mergePath+"/merge", h.handleMergeWorkspace)

	// Stateless merge
	h.mux.HandleFunc("POST /api/merge", h.handleMerge)
	h.mux.HandleFunc("POST /api"+mergePath, h.handleMerge)

	return h
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Request",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	h.mux.ServeHTTP(w, r)
}

// handleHealth handles health check requests
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, catalog.BasePath, http.StatusFound)
}

// handleSitemap handles GET /sitemap.xml
func (h *Handler) handleSitemap(w http.ResponseWriter, r *http.Request) {
	data, err := catalog.Sitemap(h.opts.BaseURL, h.now()).Marshal()
	if err != nil {
		h.logger.Error("Failed to render sitemap", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to render sitemap")
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to write response", "error", err)
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, schema.ErrorResponse{Error: message})
}

// writePDF sends content as a download
func (h *Handler) writePDF(w http.ResponseWriter, filename string, content []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		h.logger.Warn("Failed to send PDF", "filename", filename, "error", err)
	}
}
