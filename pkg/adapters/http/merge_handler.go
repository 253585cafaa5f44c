// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"errors"
	"net/http"

	"github.com/thesaasbook/pdf-tools/pkg/core/services"
	"github.com/thesaasbook/pdf-tools/pkg/workspace"
)

// handleMerge handles POST /api/merge and POST /api/pdf-tools/merge-pdf.
// Every part named "files" is merged in upload order.
func (h *Handler) handleMerge(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		h.logger.Warn("Failed to parse multipart form", "error", err)
		h.writeError(w, http.StatusBadRequest, "No files uploaded")
		return
	}
	defer r.MultipartForm.RemoveAll()

	out, err := h.merges.MergeUploads(r.Context(), formUploads(r.MultipartForm, "files"))
	switch {
	case errors.Is(err, services.ErrNoUploads):
		h.writeError(w, http.StatusBadRequest, "No files uploaded")
		return
	case errors.Is(err, workspace.ErrFileTooLarge):
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("Merge request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to merge PDFs")
		return
	}

	h.writePDF(w, "merged.pdf", out)
}
