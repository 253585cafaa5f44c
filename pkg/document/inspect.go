// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package document

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// maxTreeDepth bounds the walk up the page tree when resolving inherited
// attributes.
const maxTreeDepth = 32

// PageInfo describes one page of a document.
type PageInfo struct {
	Number int
	Width  float64
	Height float64
}

// Info is the result of inspecting a document.
type Info struct {
	PageCount int
	Pages     []PageInfo
}

// Inspect reads the page tree of a PDF and reports its pages in order.
func Inspect(content []byte) (info *Info, err error) {
	// The reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			info, err = nil, fmt.Errorf("%w: %v", ErrUnreadable, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	numPages := reader.NumPage()
	info = &Info{
		PageCount: numPages,
		Pages:     make([]PageInfo, 0, numPages),
	}
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			return nil, fmt.Errorf("%w: page %d missing", ErrUnreadable, i)
		}
		w, h := mediaBox(page.V)
		info.Pages = append(info.Pages, PageInfo{Number: i, Width: w, Height: h})
	}
	return info, nil
}

// PageCount returns the number of pages, or 0 when content cannot be read.
func PageCount(content []byte) int {
	info, err := Inspect(content)
	if err != nil {
		return 0
	}
	return info.PageCount
}

// mediaBox resolves the page's MediaBox, following Parent links for the
// inherited case.
func mediaBox(v pdf.Value) (width, height float64) {
	for depth := 0; depth < maxTreeDepth && !v.IsNull(); depth++ {
		box := v.Key("MediaBox")
		if box.Len() == 4 {
			llx, lly := box.Index(0).Float64(), box.Index(1).Float64()
			urx, ury := box.Index(2).Float64(), box.Index(3).Float64()
			return urx - llx, ury - lly
		}
		v = v.Key("Parent")
	}
	return 0, 0
}
