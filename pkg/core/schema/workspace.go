// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "github.com/thesaasbook/pdf-tools/pkg/workspace"

// WorkspaceFile represents one entry of the merge list
type WorkspaceFile struct {
	ID       string `json:"id"`
	Index    int    `json:"index"`     // Position in the list, 0-based
	Name     string `json:"name"`      // Original filename
	Bytes    int64  `json:"bytes"`     // File size in bytes
	Size     string `json:"size"`      // Human-readable size
	MimeType string `json:"mime_type"` // Always "application/pdf"
	Pages    int    `json:"pages"`     // 0 when unknown
	AddedAt  int64  `json:"added_at"`  // Unix timestamp
}

// Workspace represents a visitor's merge workspace
type Workspace struct {
	ID         string          `json:"id"`
	Object     string          `json:"object"`          // Always "workspace"
	Files      []WorkspaceFile `json:"files"`           // Merge order
	Merging    bool            `json:"merging"`         // A merge is running
	Error      string          `json:"error,omitempty"` // Last user-facing error
	CanMerge   bool            `json:"can_merge"`
	TotalPages int             `json:"total_pages"` // Sum of known page counts
	ExpiresAt  int64           `json:"expires_at"`  // Unix timestamp
}

// NewWorkspace converts ws to its wire form. sizeFn formats byte counts.
func NewWorkspace(ws *workspace.Workspace, sizeFn func(int64) string) Workspace {
	files := make([]WorkspaceFile, len(ws.Entries))
	for i, e := range ws.Entries {
		files[i] = WorkspaceFile{
			ID:       e.ID,
			Index:    i,
			Name:     e.Name,
			Bytes:    e.Size,
			Size:     sizeFn(e.Size),
			MimeType: e.MimeType,
			Pages:    e.Pages,
			AddedAt:  e.AddedAt.Unix(),
		}
	}
	return Workspace{
		ID:         ws.ID,
		Object:     "workspace",
		Files:      files,
		Merging:    ws.Merging,
		Error:      ws.Error,
		CanMerge:   ws.CanMerge(),
		TotalPages: ws.TotalPages(),
		ExpiresAt:  ws.ExpiresAt.Unix(),
	}
}
