// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "github.com/thesaasbook/pdf-tools/pkg/catalog"

// ListToolsResponse represents the catalog, optionally filtered
type ListToolsResponse struct {
	Object     string             `json:"object"`     // Always "list"
	Category   catalog.Category   `json:"category"`   // Applied filter
	Categories []catalog.Category `json:"categories"` // Every filter tab
	Data       []catalog.Tool     `json:"data"`       // Matching tools, registry order
}

// ErrorResponse is the body of every JSON error
type ErrorResponse struct {
	Error string `json:"error"`
}
