// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

// Package documenttest builds small, valid PDF documents for tests. Each page
// gets its own MediaBox so that tests can tell pages apart after a merge.
package documenttest

import (
	"bytes"
	"fmt"
)

// PageHeight is the height of every generated page.
const PageHeight = 792

// NewPDF returns a PDF with one page per width, in order.
func NewPDF(widths ...float64) []byte {
	var buf bytes.Buffer
	n := len(widths)

	// Objects: 1 catalog, 2 pages, 3.. one per page, then one content stream per page.
	offsets := make([]int, 0, 2+2*n)

	buf.WriteString("%PDF-1.4\n")

	offsets = append(offsets, buf.Len())
	buf.WriteString("1 0 obj\n<</Type/Catalog/Pages 2 0 R>>\nendobj\n")

	kids := make([]byte, 0, 8*n)
	for i := 0; i < n; i++ {
		kids = fmt.Appendf(kids, "%d 0 R ", 3+i)
	}
	offsets = append(offsets, buf.Len())
	fmt.Fprintf(&buf, "2 0 obj\n<</Type/Pages/Kids[%s]/Count %d>>\nendobj\n", bytes.TrimSpace(kids), n)

	for i, w := range widths {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n<</Type/Page/Parent 2 0 R/MediaBox[0 0 %s %d]/Resources<<>>/Contents %d 0 R>>\nendobj\n",
			3+i, formatNumber(w), PageHeight, 3+n+i)
	}

	for i := range widths {
		content := fmt.Sprintf("0 0 m %d %d l S", 10+i, 10+i)
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n<</Length %d>>\nstream\n%s\nendstream\nendobj\n", 3+n+i, len(content), content)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<</Size %d/Root 1 0 R>>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)

	return buf.Bytes()
}

// Pages returns a PDF with count pages whose widths start at base and
// increase by one, e.g. Pages(100, 3) has widths 100, 101 and 102.
func Pages(base float64, count int) []byte {
	widths := make([]float64, count)
	for i := range widths {
		widths[i] = base + float64(i)
	}
	return NewPDF(widths...)
}

// Corrupt returns bytes that claim nothing but are not a PDF.
func Corrupt() []byte {
	return []byte("this is not a pdf document, just some text pretending to be one")
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%.2f", f)
}
