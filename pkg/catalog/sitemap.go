// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

// URLSet is the root element of a sitemap document.
type URLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []SitemapURL `xml:"url"`
}

// SitemapURL is one <url> entry.
type SitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

// Sitemap lists the live pages under baseURL with lastmod set to now.
func Sitemap(baseURL string, now time.Time) *URLSet {
	base := strings.TrimRight(baseURL, "/")
	lastMod := now.UTC().Format(time.RFC3339)

	routes := []struct {
		path     string
		priority float64
	}{
		{BasePath, 1.0},
		{BasePath + "/" + MergeSlug, 0.9},
	}

	set := &URLSet{XMLNS: sitemapNS}
	for _, r := range routes {
		set.URLs = append(set.URLs, SitemapURL{
			Loc:        base + r.path,
			LastMod:    lastMod,
			ChangeFreq: "weekly",
			Priority:   fmt.Sprintf("%.1f", r.priority),
		})
	}
	return set
}

// Marshal renders the sitemap with the XML declaration.
func (s *URLSet) Marshal() ([]byte, error) {
	body, err := xml.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal sitemap: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
