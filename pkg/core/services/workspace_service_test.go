// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/thesaasbook/pdf-tools/pkg/document"
	"github.com/thesaasbook/pdf-tools/pkg/document/documenttest"
	"github.com/thesaasbook/pdf-tools/pkg/filestore"
	filemem "github.com/thesaasbook/pdf-tools/pkg/filestore/memory"
	"github.com/thesaasbook/pdf-tools/pkg/observability/logging"
	wsmem "github.com/thesaasbook/pdf-tools/pkg/storage/memory"
	"github.com/thesaasbook/pdf-tools/pkg/workspace"
)

// countingMerger records calls and concatenates source names.
type countingMerger struct {
	mu    sync.Mutex
	calls int
	names [][]string
	err   error
}

func (m *countingMerger) Merge(_ context.Context, sources []document.Source) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	var names []string
	for _, s := range sources {
		names = append(names, s.Name)
	}
	m.names = append(m.names, names)
	if m.err != nil {
		return nil, m.err
	}
	return []byte(strings.Join(names, "+")), nil
}

// failingFiles fails CreateFile after n successful writes.
type failingFiles struct {
	filestore.FileStore
	n int
}

func (f *failingFiles) CreateFile(ctx context.Context, file *filestore.File) error {
	if f.n == 0 {
		return errors.New("disk full")
	}
	f.n--
	return f.FileStore.CreateFile(ctx, file)
}

type fixture struct {
	svc    *WorkspaceService
	store  *wsmem.Store
	files  filestore.FileStore
	merger *countingMerger
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  wsmem.New(),
		files:  filemem.New(),
		merger: &countingMerger{},
		now:    time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
	}
	f.svc = NewWorkspaceService(f.store, f.files, f.merger, nil, WorkspaceOptions{
		MaxFileBytes: 1024,
		TTL:          time.Hour,
		Now:          func() time.Time { return f.now },
	})
	return f
}

func pdfUpload(name string) Upload {
	return BytesUpload(name, workspace.PDFMimeType, documenttest.NewPDF(100, 101))
}

func entryNames(ws *workspace.Workspace) []string {
	names := make([]string, len(ws.Entries))
	for i, e := range ws.Entries {
		names[i] = e.Name
	}
	return names
}

func (f *fixture) open(t *testing.T) string {
	t.Helper()
	ws, err := f.svc.Open(context.Background(), "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return ws.ID
}

func (f *fixture) add(t *testing.T, id string, uploads ...Upload) *workspace.Workspace {
	t.Helper()
	ws, err := f.svc.Add(context.Background(), id, uploads)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return ws
}

func TestOpen_CreatesAndReuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ws, err := f.svc.Open(ctx, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if ws.ID == "" || len(ws.Entries) != 0 {
		t.Fatalf("unexpected new workspace: %+v", ws)
	}

	again, err := f.svc.Open(ctx, ws.ID)
	if err != nil {
		t.Fatalf("Open existing: %v", err)
	}
	if again.ID != ws.ID {
		t.Errorf("expected same workspace, got %s", again.ID)
	}

	unknown, err := f.svc.Open(ctx, "does-not-exist")
	if err != nil {
		t.Fatalf("Open unknown: %v", err)
	}
	if unknown.ID == "does-not-exist" || unknown.ID == ws.ID {
		t.Errorf("expected a fresh workspace for an unknown id, got %s", unknown.ID)
	}
}

func TestAdd_AppendsInOrderAndStoresBytes(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)

	f.add(t, id, pdfUpload("a.pdf"), pdfUpload("b.pdf"))
	ws := f.add(t, id, pdfUpload("c.pdf"))

	if got := strings.Join(entryNames(ws), ","); got != "a.pdf,b.pdf,c.pdf" {
		t.Fatalf("entries = %s", got)
	}
	for _, e := range ws.Entries {
		if e.Pages != 2 {
			t.Errorf("%s pages = %d, want 2", e.Name, e.Pages)
		}
		if _, err := f.files.GetFileContent(context.Background(), e.ID); err != nil {
			t.Errorf("blob for %s missing: %v", e.Name, err)
		}
	}
	if ws.Entries[0].ID == ws.Entries[1].ID {
		t.Error("entry IDs not unique")
	}
}

func TestAdd_Validation(t *testing.T) {
	tests := []struct {
		name    string
		uploads []Upload
		wantErr error
		wantMsg string
		want    []string
	}{
		{
			name:    "non-pdf only",
			uploads: []Upload{BytesUpload("notes.txt", "text/plain", []byte("hi"))},
			wantErr: workspace.ErrNoValidFiles,
			wantMsg: "Please upload valid PDF files.",
			want:    []string{"existing.pdf"},
		},
		{
			name: "non-pdf filtered",
			uploads: []Upload{
				BytesUpload("notes.txt", "text/plain", []byte("hi")),
				pdfUpload("new.pdf"),
			},
			want: []string{"existing.pdf", "new.pdf"},
		},
		{
			name: "oversize fails whole batch",
			uploads: []Upload{
				pdfUpload("ok.pdf"),
				BytesUpload("big.pdf", workspace.PDFMimeType, make([]byte, 2048)),
			},
			wantErr: workspace.ErrFileTooLarge,
			wantMsg: "Max file size is 1.0 KiB.",
			want:    []string{"existing.pdf"},
		},
		{
			name: "declared size understates content",
			uploads: []Upload{{
				Name:     "liar.pdf",
				MimeType: workspace.PDFMimeType,
				Size:     10,
				Open: func() (io.ReadCloser, error) {
					return io.NopCloser(strings.NewReader(strings.Repeat("x", 2048))), nil
				},
			}},
			wantErr: workspace.ErrFileTooLarge,
			wantMsg: "Max file size is 1.0 KiB.",
			want:    []string{"existing.pdf"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			id := f.open(t)
			f.add(t, id, pdfUpload("existing.pdf"))

			ws, err := f.svc.Add(context.Background(), id, tt.uploads)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got := strings.Join(entryNames(ws), ","); got != strings.Join(tt.want, ",") {
				t.Errorf("entries = %s, want %v", got, tt.want)
			}
			if ws.Error != tt.wantMsg {
				t.Errorf("Error = %q, want %q", ws.Error, tt.wantMsg)
			}

			files, _ := f.files.ListFiles(context.Background(), id)
			if len(files) != len(tt.want) {
				t.Errorf("stored %d blobs, want %d", len(files), len(tt.want))
			}
		})
	}
}

func TestAdd_SuccessClearsError(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)

	ws, _ := f.svc.Add(context.Background(), id, []Upload{BytesUpload("x.txt", "text/plain", nil)})
	if ws.Error == "" {
		t.Fatal("expected error to be recorded")
	}
	ws = f.add(t, id, pdfUpload("a.pdf"))
	if ws.Error != "" {
		t.Errorf("error not cleared: %q", ws.Error)
	}
}

func TestAdd_StoreFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	files := &failingFiles{FileStore: f.files, n: 1}
	f.svc = NewWorkspaceService(f.store, files, f.merger, nil, WorkspaceOptions{
		MaxFileBytes: 1024,
		Now:          func() time.Time { return f.now },
	})
	id := f.open(t)

	_, err := f.svc.Add(context.Background(), id, []Upload{pdfUpload("a.pdf"), pdfUpload("b.pdf")})
	if err == nil {
		t.Fatal("expected error")
	}

	ws, err := f.svc.Open(context.Background(), id)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(ws.Entries) != 0 {
		t.Errorf("list changed after failed add: %v", entryNames(ws))
	}
	stored, _ := f.files.ListFiles(context.Background(), id)
	if len(stored) != 0 {
		t.Errorf("blobs left behind: %d", len(stored))
	}
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.open(t)
	ws := f.add(t, id, pdfUpload("a.pdf"), pdfUpload("b.pdf"), pdfUpload("c.pdf"))
	removed := ws.Entries[1]

	ws, err := f.svc.Remove(ctx, id, removed.ID)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := strings.Join(entryNames(ws), ","); got != "a.pdf,c.pdf" {
		t.Errorf("entries = %s", got)
	}
	if _, err := f.files.GetFile(ctx, removed.ID); !errors.Is(err, filestore.ErrFileNotFound) {
		t.Errorf("blob not deleted: %v", err)
	}

	ws, err = f.svc.Remove(ctx, id, "missing")
	if err != nil || len(ws.Entries) != 2 {
		t.Errorf("removing unknown id changed state: %v %v", entryNames(ws), err)
	}
}

func TestMove(t *testing.T) {
	tests := []struct {
		index int
		dir   workspace.Direction
		want  string
	}{
		{1, workspace.Up, "b.pdf,a.pdf,c.pdf"},
		{1, workspace.Down, "a.pdf,c.pdf,b.pdf"},
		{0, workspace.Up, "a.pdf,b.pdf,c.pdf"},
		{2, workspace.Down, "a.pdf,b.pdf,c.pdf"},
		{7, workspace.Up, "a.pdf,b.pdf,c.pdf"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%s", tt.index, tt.dir), func(t *testing.T) {
			f := newFixture(t)
			id := f.open(t)
			f.add(t, id, pdfUpload("a.pdf"), pdfUpload("b.pdf"), pdfUpload("c.pdf"))

			ws, err := f.svc.Move(context.Background(), id, tt.index, tt.dir)
			if err != nil {
				t.Fatalf("Move: %v", err)
			}
			if got := strings.Join(entryNames(ws), ","); got != tt.want {
				t.Errorf("entries = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMerge_TooFewFilesSkipsMerger(t *testing.T) {
	for _, n := range []int{0, 1} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			f := newFixture(t)
			id := f.open(t)
			for i := 0; i < n; i++ {
				f.add(t, id, pdfUpload("a.pdf"))
			}

			res, ws, err := f.svc.Merge(context.Background(), id)
			if !errors.Is(err, workspace.ErrTooFewFiles) {
				t.Fatalf("err = %v", err)
			}
			if res != nil {
				t.Error("expected no result")
			}
			if ws.Error != "Please add at least 2 PDF files." {
				t.Errorf("Error = %q", ws.Error)
			}
			if f.merger.calls != 0 {
				t.Errorf("merger called %d times", f.merger.calls)
			}
		})
	}
}

func TestMerge_SuccessClearsList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.open(t)
	f.add(t, id, pdfUpload("a.pdf"), pdfUpload("b.pdf"), pdfUpload("c.pdf"))
	f.svc.Move(ctx, id, 2, workspace.Up)

	res, ws, err := f.svc.Merge(ctx, id)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if string(res.Content) != "a.pdf+c.pdf+b.pdf" {
		t.Errorf("merged in wrong order: %s", res.Content)
	}
	if want := fmt.Sprintf("merged_%d.pdf", f.now.UnixMilli()); res.Filename != want {
		t.Errorf("Filename = %s, want %s", res.Filename, want)
	}
	if len(ws.Entries) != 0 || ws.Merging || ws.Error != "" {
		t.Errorf("workspace not reset: %+v", ws)
	}
	stored, _ := f.files.ListFiles(ctx, id)
	if len(stored) != 0 {
		t.Errorf("blobs not cleared: %d", len(stored))
	}
}

func TestMerge_FailureKeepsList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.merger.err = fmt.Errorf("%w: bad xref", document.ErrMergeFailed)
	id := f.open(t)
	f.add(t, id, pdfUpload("a.pdf"), pdfUpload("b.pdf"))

	res, ws, err := f.svc.Merge(ctx, id)
	if !errors.Is(err, document.ErrMergeFailed) {
		t.Fatalf("err = %v", err)
	}
	if res != nil {
		t.Error("expected no partial output")
	}
	if got := strings.Join(entryNames(ws), ","); got != "a.pdf,b.pdf" {
		t.Errorf("entries = %s", got)
	}
	if ws.Error != workspace.MergeFailedMessage || ws.Merging {
		t.Errorf("unexpected state: error=%q merging=%v", ws.Error, ws.Merging)
	}
	if f.merger.calls != 1 {
		t.Errorf("merger called %d times, want exactly 1", f.merger.calls)
	}
}

func TestMerge_MissingBlobFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.open(t)
	ws := f.add(t, id, pdfUpload("a.pdf"), pdfUpload("b.pdf"))
	f.files.DeleteFile(ctx, ws.Entries[1].ID)

	_, ws, err := f.svc.Merge(ctx, id)
	if !errors.Is(err, document.ErrMergeFailed) {
		t.Fatalf("err = %v", err)
	}
	if f.merger.calls != 0 {
		t.Error("merger called despite unreadable input")
	}
	if ws.Error != workspace.MergeFailedMessage {
		t.Errorf("Error = %q", ws.Error)
	}
}

func TestMerge_RejectsWhileMerging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.open(t)
	f.add(t, id, pdfUpload("a.pdf"), pdfUpload("b.pdf"))

	ws, _ := f.store.Get(ctx, id)
	ws.Merging = true
	f.store.Save(ctx, ws)

	if _, _, err := f.svc.Merge(ctx, id); !errors.Is(err, workspace.ErrMergeInProgress) {
		t.Errorf("Merge err = %v", err)
	}
	if _, err := f.svc.Add(ctx, id, []Upload{pdfUpload("c.pdf")}); !errors.Is(err, workspace.ErrMergeInProgress) {
		t.Errorf("Add err = %v", err)
	}
	if f.merger.calls != 0 {
		t.Error("merger called during a running merge")
	}

	// a flag older than the merge timeout is stale
	f.now = f.now.Add(11 * time.Minute)
	if _, _, err := f.svc.Merge(ctx, id); err != nil {
		t.Errorf("stale flag blocked merge: %v", err)
	}
}

func TestMerge_InProgressErrorIsRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.open(t)
	ws := f.add(t, id, pdfUpload("a.pdf"), pdfUpload("b.pdf"))
	first := ws.Entries[0].ID

	ws, _ = f.store.Get(ctx, id)
	ws.Merging = true
	f.store.Save(ctx, ws)
	startedAt := ws.UpdatedAt

	actions := map[string]func() error{
		"merge":  func() error { _, _, err := f.svc.Merge(ctx, id); return err },
		"add":    func() error { _, err := f.svc.Add(ctx, id, []Upload{pdfUpload("c.pdf")}); return err },
		"remove": func() error { _, err := f.svc.Remove(ctx, id, first); return err },
		"move":   func() error { _, err := f.svc.Move(ctx, id, 0, workspace.Down); return err },
	}
	for name, action := range actions {
		t.Run(name, func(t *testing.T) {
			ws, _ := f.store.Get(ctx, id)
			ws.Error = ""
			f.store.Save(ctx, ws)
			f.now = f.now.Add(time.Second)

			if err := action(); !errors.Is(err, workspace.ErrMergeInProgress) {
				t.Fatalf("err = %v, want ErrMergeInProgress", err)
			}
			stored, _ := f.store.Get(ctx, id)
			if stored.Error != "A merge is already in progress." {
				t.Errorf("stored Error = %q", stored.Error)
			}
			if !stored.Merging {
				t.Error("Merging flag cleared by a rejected action")
			}
			if !stored.UpdatedAt.Equal(startedAt) {
				t.Errorf("UpdatedAt moved to %v; the stale-merge timer must not restart", stored.UpdatedAt)
			}
			if got := strings.Join(entryNames(stored), ","); got != "a.pdf,b.pdf" {
				t.Errorf("entries = %s", got)
			}
		})
	}

	// the first merge finishing clears the message
	ws, _ = f.store.Get(ctx, id)
	ws.Merging = false
	f.store.Save(ctx, ws)
	if _, ws, err := f.svc.Merge(ctx, id); err != nil || ws.Error != "" {
		t.Errorf("Merge = %v, Error %q", err, ws.Error)
	}
}

func TestMerge_LogsCarryWorkspace(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	f.svc.logger = logging.New(logging.Config{Level: "info", Format: "json", Output: &buf})
	id := f.open(t)
	f.add(t, id, pdfUpload("a.pdf"), pdfUpload("b.pdf"))
	buf.Reset()

	if _, _, err := f.svc.Merge(context.Background(), id); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	line := buf.String()
	if !strings.Contains(line, `"msg":"merged workspace"`) || !strings.Contains(line, `"workspace":"`+id+`"`) {
		t.Errorf("merge log = %s", line)
	}
}

func TestMerge_RealDocuments(t *testing.T) {
	f := newFixture(t)
	f.svc.merger = document.NewMerger(document.MergerOptions{MaxConcurrent: 1})
	f.svc.opts.MaxFileBytes = 1 << 20
	ctx := context.Background()
	id := f.open(t)

	f.add(t, id,
		BytesUpload("a.pdf", workspace.PDFMimeType, documenttest.Pages(100, 2)),
		BytesUpload("b.pdf", workspace.PDFMimeType, documenttest.Pages(200, 3)),
	)

	res, _, err := f.svc.Merge(ctx, id)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if res.Pages != 5 {
		t.Errorf("Pages = %d, want 5", res.Pages)
	}
}

func TestSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	oldID := f.open(t)
	f.add(t, oldID, pdfUpload("a.pdf"))

	f.now = f.now.Add(2 * time.Hour)
	freshID := f.open(t)
	f.add(t, freshID, pdfUpload("b.pdf"))

	removed, err := f.svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := f.store.Get(ctx, oldID); !errors.Is(err, workspace.ErrNotFound) {
		t.Errorf("expired workspace survived: %v", err)
	}
	if files, _ := f.files.ListFiles(ctx, oldID); len(files) != 0 {
		t.Errorf("expired blobs survived: %d", len(files))
	}
	if _, err := f.store.Get(ctx, freshID); err != nil {
		t.Errorf("fresh workspace removed: %v", err)
	}
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	id := f.open(t)
	f.add(t, id, pdfUpload("a.pdf"))

	ws, err := f.svc.Reject(context.Background(), id, workspace.ErrFileTooLarge)
	if !errors.Is(err, workspace.ErrFileTooLarge) {
		t.Fatalf("err = %v", err)
	}
	if ws.Error != "Max file size is 50MB." || len(ws.Entries) != 1 {
		t.Errorf("unexpected workspace: %+v", ws)
	}
}
