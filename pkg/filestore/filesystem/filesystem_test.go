// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package filesystem_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/thesaasbook/pdf-tools/pkg/filestore"
	"github.com/thesaasbook/pdf-tools/pkg/filestore/filestoretest"
	"github.com/thesaasbook/pdf-tools/pkg/filestore/filesystem"
)

func TestFilesystemConformance(t *testing.T) {
	filestoretest.RunConformanceTests(t, func(t *testing.T) filestore.FileStore {
		store, err := filesystem.New(t.TempDir())
		if err != nil {
			t.Fatalf("filesystem.New: %v", err)
		}
		return store
	})
}

func TestNew_RequiresBaseDir(t *testing.T) {
	if _, err := filesystem.New(""); err == nil {
		t.Fatal("expected error for empty base dir")
	}
}

func TestLayout(t *testing.T) {
	base := t.TempDir()
	store, err := filesystem.New(base)
	if err != nil {
		t.Fatalf("filesystem.New: %v", err)
	}

	f := &filestore.File{
		ID:        "0b6f3c1e",
		Owner:     "ws-1",
		Filename:  "report.pdf",
		MimeType:  "application/pdf",
		Bytes:     4,
		Content:   []byte("%PDF"),
		CreatedAt: time.Now(),
	}
	if err := store.CreateFile(context.Background(), f); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	for _, name := range []string{"content", "metadata.json"} {
		if _, err := os.Stat(filepath.Join(base, f.Owner, f.ID, name)); err != nil {
			t.Errorf("expected %s on disk: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(base, f.Owner, f.ID, "content.tmp")); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
	owner, err := os.ReadFile(filepath.Join(base, "_index", f.ID))
	if err != nil || string(owner) != f.Owner {
		t.Errorf("index entry = %q, %v; want %q", owner, err, f.Owner)
	}
}

func TestListFiles_ReadsOnlyOwnerDir(t *testing.T) {
	base := t.TempDir()
	store, err := filesystem.New(base)
	if err != nil {
		t.Fatalf("filesystem.New: %v", err)
	}
	ctx := context.Background()

	for i, owner := range []string{"ws-1", "ws-2", "ws-1"} {
		f := &filestore.File{
			ID:        "file-" + string(rune('a'+i)),
			Owner:     owner,
			Filename:  "x.pdf",
			Content:   []byte("%PDF"),
			CreatedAt: time.Now(),
		}
		if err := store.CreateFile(ctx, f); err != nil {
			t.Fatalf("CreateFile: %v", err)
		}
	}

	// Files of other owners are not under the listed directory at all, so
	// corrupting them cannot affect the listing.
	if err := os.WriteFile(filepath.Join(base, "ws-2", "file-b", "metadata.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(filepath.Join(base, "ws-1"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("ws-1 dir holds %d entries, want 2", len(entries))
	}

	files, err := store.ListFiles(ctx, "ws-1")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 2 || files[0].ID != "file-a" || files[1].ID != "file-c" {
		t.Errorf("ListFiles(ws-1) = %+v", files)
	}

	for _, owner := range []string{"_index", "..", "ws-1/file-a"} {
		files, err := store.ListFiles(ctx, owner)
		if err != nil || len(files) != 0 {
			t.Errorf("ListFiles(%q) = %d files, %v; want none", owner, len(files), err)
		}
	}
}

func TestCreateFile_RejectsBadOwner(t *testing.T) {
	store, err := filesystem.New(t.TempDir())
	if err != nil {
		t.Fatalf("filesystem.New: %v", err)
	}
	for _, owner := range []string{"", "..", "a/b", "_index"} {
		f := &filestore.File{ID: "file-x", Owner: owner, Content: []byte("%PDF")}
		if err := store.CreateFile(context.Background(), f); err == nil {
			t.Errorf("CreateFile(owner=%q) succeeded, want error", owner)
		}
	}
}

func TestRejectsPathTraversal(t *testing.T) {
	store, err := filesystem.New(t.TempDir())
	if err != nil {
		t.Fatalf("filesystem.New: %v", err)
	}

	for _, id := range []string{"../escape", "..", "a/b"} {
		if _, err := store.GetFileContent(context.Background(), id); !errors.Is(err, filestore.ErrFileNotFound) {
			t.Errorf("GetFileContent(%q) = %v, want ErrFileNotFound", id, err)
		}
	}
}
