// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

// Package catalog is the static registry of PDF tools shown on the landing
// page. Only the merge tool has an implementation; the rest link to a
// "coming soon" page.
package catalog

// Category groups tools on the landing page.
type Category string

const (
	All      Category = "All"
	Edit     Category = "Edit"
	Optimize Category = "Optimize"
	Convert  Category = "Convert"
)

// Categories lists the filter tabs in display order.
var Categories = []Category{All, Edit, Optimize, Convert}

// Tool describes one catalog entry.
type Tool struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	Category    Category `json:"category"`
	Color       string   `json:"color"`
	Href        string   `json:"href"`
	Available   bool     `json:"available"`
}

// BasePath is the URL prefix of every tool page.
const BasePath = "/pdf-tools"

// MergeSlug identifies the merge tool.
const MergeSlug = "merge-pdf"

var registry = []Tool{
	tool(MergeSlug, "Merge PDF", "Combine PDFs in seconds.", "Combine", Edit, "from-orange-500 to-red-500", true),
	tool("split-pdf", "Split PDF", "Extract or divide PDF pages easily.", "Scissors", Edit, "from-blue-500 to-indigo-500", false),
	tool("edit-pdf", "Edit PDF", "Modify text and images inside PDF.", "Edit", Edit, "from-purple-500 to-indigo-500", false),
	tool("compress-pdf", "Compress PDF", "Reduce file size without losing quality.", "Minimize2", Optimize, "from-green-500 to-emerald-500", false),
	tool("jpg-to-pdf", "JPG to PDF", "Convert JPG images into PDFs.", "Image", Convert, "from-pink-500 to-rose-500", false),
	tool("pdf-to-word", "PDF to Word", "Convert PDFs into Word files.", "FileText", Convert, "from-indigo-500 to-blue-600", false),
	tool("word-to-pdf", "Word to PDF", "Convert Word into PDF.", "FileText", Convert, "from-cyan-500 to-blue-500", false),
	tool("pdf-to-jpg", "PDF to JPG", "Export PDF pages as JPG.", "Image", Convert, "from-yellow-500 to-orange-500", false),
	tool("pdf-to-excel", "PDF to Excel", "Convert PDF tables into Excel.", "FileSpreadsheet", Convert, "from-emerald-500 to-green-600", false),
	tool("pdf-to-powerpoint", "PDF to PowerPoint", "Convert PDF into slides.", "Presentation", Convert, "from-red-500 to-pink-500", false),
}

func tool(slug, title, desc, icon string, cat Category, color string, available bool) Tool {
	return Tool{
		Slug:        slug,
		Title:       title,
		Description: desc,
		Icon:        icon,
		Category:    cat,
		Color:       color,
		Href:        BasePath + "/" + slug,
		Available:   available,
	}
}

// Tools returns the full registry in display order.
func Tools() []Tool {
	return append([]Tool(nil), registry...)
}

// Filter returns the tools in category, in registry order. All returns the
// full registry; an unknown category matches nothing.
func Filter(category Category) []Tool {
	if category == All {
		return Tools()
	}
	out := []Tool{}
	for _, t := range registry {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// ParseCategory maps a query value to a Category. The empty string selects
// All. The second result is false for names outside Categories.
func ParseCategory(s string) (Category, bool) {
	if s == "" {
		return All, true
	}
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return Category(s), false
}

// Lookup finds a tool by slug.
func Lookup(slug string) (Tool, bool) {
	for _, t := range registry {
		if t.Slug == slug {
			return t, true
		}
	}
	return Tool{}, false
}

// Link is a related-tool shortcut on a tool page.
type Link struct {
	Title string `json:"title"`
	Href  string `json:"href"`
}

// RelatedTools returns the shortcuts shown under the merge workspace.
func RelatedTools() []Link {
	return []Link{
		{Title: "Split PDF", Href: BasePath + "/split-pdf"},
		{Title: "Compress PDF", Href: BasePath + "/compress-pdf"},
		{Title: "Edit PDF", Href: BasePath + "/edit-pdf"},
		{Title: "All PDF Tools", Href: BasePath},
	}
}
