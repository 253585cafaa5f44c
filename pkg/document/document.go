// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

// Package document wraps the third-party PDF libraries used by the service:
// pdfcpu for merging and ledongthuc/pdf for read-only page inspection.
package document

import (
	"errors"
)

// MimeType is the content type of every document this package produces.
const MimeType = "application/pdf"

var (
	// ErrNoSources is returned when Merge is called without input documents.
	ErrNoSources = errors.New("no source documents")

	// ErrMergeFailed wraps any read, parse, copy or write failure during a merge.
	ErrMergeFailed = errors.New("merge failed")

	// ErrUnreadable is returned by Inspect for bytes that are not a usable PDF.
	ErrUnreadable = errors.New("unreadable PDF")
)

// Source is one input document of a merge.
type Source struct {
	Name    string
	Content []byte
}
