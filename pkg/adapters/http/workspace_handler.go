// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/thesaasbook/pdf-tools/pkg/catalog"
	"github.com/thesaasbook/pdf-tools/pkg/core/schema"
	"github.com/thesaasbook/pdf-tools/pkg/core/services"
	"github.com/thesaasbook/pdf-tools/pkg/document"
	"github.com/thesaasbook/pdf-tools/pkg/workspace"
)

// WorkspaceCookie holds the visitor's workspace ID.
const WorkspaceCookie = "pdftools_workspace"

const (
	mergePagePath = catalog.BasePath + "/" + catalog.MergeSlug
	formMemory    = 32 << 20
)

type mergePage struct {
	Title        string
	Workspace    schema.Workspace
	LastIndex    int
	MaxFileBytes int64
	Related      []catalog.Link
}

func formatBytes(n int64) string {
	return humanize.IBytes(uint64(n))
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func (h *Handler) workspaceID(r *http.Request) string {
	c, err := r.Cookie(WorkspaceCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *Handler) setWorkspaceCookie(w http.ResponseWriter, ws *workspace.Workspace) {
	http.SetCookie(w, &http.Cookie{
		Name:     WorkspaceCookie,
		Value:    ws.ID,
		Path:     mergePagePath,
		MaxAge:   int(h.opts.WorkspaceTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// isUserError reports whether err is a validation or merge outcome the
// visitor should see on the page rather than a server failure.
func isUserError(err error) bool {
	return errors.Is(err, workspace.ErrNoValidFiles) ||
		errors.Is(err, workspace.ErrFileTooLarge) ||
		errors.Is(err, workspace.ErrTooFewFiles) ||
		errors.Is(err, workspace.ErrMergeInProgress) ||
		errors.Is(err, document.ErrMergeFailed)
}

// respondWorkspace finishes a workspace action: JSON clients get the new
// state, browsers are redirected back to the page.
func (h *Handler) respondWorkspace(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, err error) {
	if err != nil && (ws == nil || !isUserError(err)) {
		h.logger.Error("Workspace action failed", "path", r.URL.Path, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}

	h.setWorkspaceCookie(w, ws)

	if wantsJSON(r) {
		status := http.StatusOK
		switch {
		case errors.Is(err, document.ErrMergeFailed):
			status = http.StatusInternalServerError
		case errors.Is(err, workspace.ErrMergeInProgress):
			status = http.StatusConflict
		case err != nil:
			status = http.StatusBadRequest
		}
		view := schema.NewWorkspace(ws, formatBytes)
		if view.Error == "" && err != nil {
			view.Error = err.Error()
		}
		h.writeJSON(w, status, view)
		return
	}

	http.Redirect(w, r, mergePagePath, http.StatusSeeOther)
}

// handleWorkspace handles GET /pdf-tools/merge-pdf
func (h *Handler) handleWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := h.workspaces.Open(r.Context(), h.workspaceID(r))
	if err != nil {
		h.logger.Error("Failed to open workspace", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}
	h.setWorkspaceCookie(w, ws)

	view := schema.NewWorkspace(ws, formatBytes)
	if wantsJSON(r) {
		h.writeJSON(w, http.StatusOK, view)
		return
	}

	h.render(w, http.StatusOK, "merge.html", mergePage{
		Title:        "Merge PDF",
		Workspace:    view,
		LastIndex:    len(view.Files) - 1,
		MaxFileBytes: h.opts.MaxFileBytes,
		Related:      catalog.RelatedTools(),
	})
}

// handleAddFiles handles POST /pdf-tools/merge-pdf/files
func (h *Handler) handleAddFiles(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			ws, err := h.workspaces.Reject(r.Context(), h.workspaceID(r), workspace.FileTooLarge(h.opts.MaxFileBytes))
			h.respondWorkspace(w, r, ws, err)
			return
		}
		h.logger.Warn("Failed to parse multipart form", "error", err)
		h.writeError(w, http.StatusBadRequest, "Failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	ws, err := h.workspaces.Add(r.Context(), h.workspaceID(r), formUploads(r.MultipartForm, "files"))
	h.respondWorkspace(w, r, ws, err)
}

// handleRemoveFile handles POST /pdf-tools/merge-pdf/files/{id}/delete
func (h *Handler) handleRemoveFile(w http.ResponseWriter, r *http.Request) {
	ws, err := h.workspaces.Remove(r.Context(), h.workspaceID(r), r.PathValue("id"))
	h.respondWorkspace(w, r, ws, err)
}

// handleMoveFile handles POST /pdf-tools/merge-pdf/files/{index}/move
func (h *Handler) handleMoveFile(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid file index")
		return
	}
	dir, ok := workspace.ParseDirection(r.FormValue("direction"))
	if !ok {
		h.writeError(w, http.StatusBadRequest, "direction must be up or down")
		return
	}

	ws, err := h.workspaces.Move(r.Context(), h.workspaceID(r), index, dir)
	h.respondWorkspace(w, r, ws, err)
}

// handleMergeWorkspace handles POST /pdf-tools/merge-pdf/merge. On success
// the merged file is sent as a download; otherwise the visitor goes back to
// the page, which shows the error.
func (h *Handler) handleMergeWorkspace(w http.ResponseWriter, r *http.Request) {
	result, ws, err := h.workspaces.Merge(r.Context(), h.workspaceID(r))
	if err != nil {
		h.respondWorkspace(w, r, ws, err)
		return
	}

	h.setWorkspaceCookie(w, ws)
	h.writePDF(w, result.Filename, result.Content)
}

// formUploads collects the file parts named field, in form order.
func formUploads(form *multipart.Form, field string) []services.Upload {
	headers := form.File[field]
	uploads := make([]services.Upload, 0, len(headers))
	for _, fh := range headers {
		uploads = append(uploads, services.Upload{
			Name:     fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Size:     fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return uploads
}
