// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package documenttest

import (
	"bytes"
	"testing"
)

func TestNewPDF_Structure(t *testing.T) {
	data := NewPDF(100, 200)

	if !bytes.HasPrefix(data, []byte("%PDF-1.4\n")) {
		t.Errorf("missing header: %q", data[:16])
	}
	if !bytes.HasSuffix(data, []byte("%%EOF\n")) {
		t.Errorf("missing EOF marker")
	}
	if !bytes.Contains(data, []byte("/Count 2")) {
		t.Errorf("expected page count 2 in page tree")
	}
	if !bytes.Contains(data, []byte("/MediaBox[0 0 200 792]")) {
		t.Errorf("expected second page media box")
	}
}

func TestNewPDF_XrefOffsets(t *testing.T) {
	data := NewPDF(100)

	// Every "n" entry must point at the start of "<num> 0 obj".
	idx := bytes.Index(data, []byte("xref\n"))
	if idx < 0 {
		t.Fatal("xref section missing")
	}
	for num, want := range map[int]string{1: "1 0 obj", 2: "2 0 obj", 3: "3 0 obj", 4: "4 0 obj"} {
		obj := bytes.Index(data, []byte("\n"+want))
		if obj < 0 {
			t.Fatalf("object %d missing", num)
		}
		entry := []byte(padOffset(obj + 1))
		if !bytes.Contains(data[idx:], entry) {
			t.Errorf("xref entry for object %d (%s) missing", num, entry)
		}
	}
}

func padOffset(off int) string {
	s := []byte("0000000000")
	d := []byte{}
	for off > 0 {
		d = append([]byte{byte('0' + off%10)}, d...)
		off /= 10
	}
	copy(s[10-len(d):], d)
	return string(s) + " 00000 n"
}

func TestPages(t *testing.T) {
	data := Pages(300, 3)
	for _, w := range []string{"300", "301", "302"} {
		if !bytes.Contains(data, []byte("/MediaBox[0 0 "+w+" 792]")) {
			t.Errorf("missing page of width %s", w)
		}
	}
}
