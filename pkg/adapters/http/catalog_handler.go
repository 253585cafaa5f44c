// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"net/http"
	"net/url"

	"github.com/thesaasbook/pdf-tools/pkg/catalog"
	"github.com/thesaasbook/pdf-tools/pkg/core/schema"
)

type categoryTab struct {
	Name   catalog.Category
	Href   string
	Active bool
}

type catalogPage struct {
	Title    string
	Category catalog.Category
	Tabs     []categoryTab
	Tools    []catalog.Tool
}

type toolPage struct {
	Title   string
	Tool    catalog.Tool
	Related []catalog.Link
}

func categoryTabs(active catalog.Category) []categoryTab {
	tabs := make([]categoryTab, len(catalog.Categories))
	for i, c := range catalog.Categories {
		href := catalog.BasePath
		if c != catalog.All {
			href += "?category=" + url.QueryEscape(string(c))
		}
		tabs[i] = categoryTab{Name: c, Href: href, Active: c == active}
	}
	return tabs
}

// handleCatalog handles GET /pdf-tools
func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	category, _ := catalog.ParseCategory(r.URL.Query().Get("category"))

	h.render(w, http.StatusOK, "catalog.html", catalogPage{
		Title:    "PDF Tools",
		Category: category,
		Tabs:     categoryTabs(category),
		Tools:    catalog.Filter(category),
	})
}

// handleListTools handles GET /api/tools
func (h *Handler) handleListTools(w http.ResponseWriter, r *http.Request) {
	category, _ := catalog.ParseCategory(r.URL.Query().Get("category"))

	h.writeJSON(w, http.StatusOK, schema.ListToolsResponse{
		Object:     "list",
		Category:   category,
		Categories: catalog.Categories,
		Data:       catalog.Filter(category),
	})
}

// handleToolPage handles GET /pdf-tools/{tool} for tools without an
// implementation.
func (h *Handler) handleToolPage(w http.ResponseWriter, r *http.Request) {
	tool, ok := catalog.Lookup(r.PathValue("tool"))
	if !ok {
		h.render(w, http.StatusNotFound, "not_found.html", toolPage{Title: "Not found"})
		return
	}

	h.render(w, http.StatusOK, "coming_soon.html", toolPage{
		Title:   tool.Title,
		Tool:    tool,
		Related: catalog.RelatedTools(),
	})
}
