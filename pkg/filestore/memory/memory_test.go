// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/thesaasbook/pdf-tools/pkg/filestore"
	"github.com/thesaasbook/pdf-tools/pkg/filestore/filestoretest"
	"github.com/thesaasbook/pdf-tools/pkg/filestore/memory"
)

func TestMemoryConformance(t *testing.T) {
	filestoretest.RunConformanceTests(t, func(t *testing.T) filestore.FileStore {
		return memory.New()
	})
}

func TestCreateFile_CopiesContent(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	content := []byte("%PDF-1.4")
	if err := store.CreateFile(ctx, &filestore.File{ID: "f1", Owner: "ws", Content: content, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	content[0] = 'X'

	got, err := store.GetFileContent(ctx, "f1")
	if err != nil {
		t.Fatalf("GetFileContent: %v", err)
	}
	if string(got) != "%PDF-1.4" {
		t.Errorf("stored content changed with caller's slice: %q", got)
	}
}

func TestRegisteredAsMemoryProvider(t *testing.T) {
	store, err := filestore.Providers.New(context.Background(), "memory", nil)
	if err != nil {
		t.Fatalf("Providers.New: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Errorf("expected *memory.Store, got %T", store)
	}
}
