// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/dustin/go-humanize"
)

//go:embed templates/*.html
var templateFS embed.FS

type pages struct {
	tmpl *template.Template
}

func loadPages() *pages {
	funcs := template.FuncMap{
		"bytes": func(n int64) string { return humanize.IBytes(uint64(n)) },
		"inc":   func(i int) int { return i + 1 },
	}
	return &pages{
		tmpl: template.Must(template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html")),
	}
}

// render executes the named page into a buffer first so that a template
// error never produces a half-written page.
func (h *Handler) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := h.pages.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error("Failed to render page", "page", name, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
