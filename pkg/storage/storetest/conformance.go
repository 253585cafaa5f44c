// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

// Package storetest provides a shared conformance test suite for
// workspace.Store implementations.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/thesaasbook/pdf-tools/pkg/workspace"
)

var baseTime = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func makeWorkspace(id string, ttl time.Duration) *workspace.Workspace {
	ws := workspace.New(id, baseTime, ttl)
	ws.Append(
		workspace.Entry{ID: id + "-e1", Name: "first.pdf", Size: 1024, MimeType: "application/pdf", Pages: 2, AddedAt: baseTime},
		workspace.Entry{ID: id + "-e2", Name: "second.pdf", Size: 2048, MimeType: "application/pdf", Pages: 3, AddedAt: baseTime.Add(time.Second)},
	)
	return ws
}

// RunConformanceTests exercises a Store implementation against the shared
// contract. newStore is called once per sub-test.
func RunConformanceTests(t *testing.T, newStore func(t *testing.T) workspace.Store) {
	t.Helper()

	t.Run("SaveAndGet", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		ws := makeWorkspace("ws-save", time.Hour)
		ws.Error = "Please upload valid PDF files."
		if err := store.Save(ctx, ws); err != nil {
			t.Fatalf("Save: %v", err)
		}

		got, err := store.Get(ctx, "ws-save")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.ID != ws.ID || got.Error != ws.Error || got.Merging {
			t.Errorf("unexpected workspace: %+v", got)
		}
		if len(got.Entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(got.Entries))
		}
		if got.Entries[0].ID != "ws-save-e1" || got.Entries[1].ID != "ws-save-e2" {
			t.Errorf("entry order not preserved: %+v", got.Entries)
		}
		if got.Entries[1].Pages != 3 || got.Entries[1].Size != 2048 || got.Entries[1].Name != "second.pdf" {
			t.Errorf("entry fields not preserved: %+v", got.Entries[1])
		}
		if !got.ExpiresAt.Equal(ws.ExpiresAt) || !got.CreatedAt.Equal(ws.CreatedAt) {
			t.Errorf("timestamps not preserved: created=%v expires=%v", got.CreatedAt, got.ExpiresAt)
		}
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		ws := makeWorkspace("ws-replace", time.Hour)
		if err := store.Save(ctx, ws); err != nil {
			t.Fatalf("Save: %v", err)
		}

		ws.Move(0, workspace.Down)
		ws.Merging = true
		ws.Touch(baseTime.Add(time.Minute), time.Hour)
		if err := store.Save(ctx, ws); err != nil {
			t.Fatalf("second Save: %v", err)
		}

		got, err := store.Get(ctx, "ws-replace")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Entries[0].ID != "ws-replace-e2" {
			t.Errorf("reordered list not stored: %+v", got.Entries)
		}
		if !got.Merging {
			t.Error("Merging flag not stored")
		}
		if !got.UpdatedAt.Equal(baseTime.Add(time.Minute)) {
			t.Errorf("UpdatedAt = %v", got.UpdatedAt)
		}
	})

	t.Run("EmptyEntries", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		ws := workspace.New("ws-empty", baseTime, time.Hour)
		if err := store.Save(ctx, ws); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, err := store.Get(ctx, "ws-empty")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Entries == nil || len(got.Entries) != 0 {
			t.Errorf("expected empty non-nil entries, got %#v", got.Entries)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		_, err := store.Get(context.Background(), "ws-missing")
		if !errors.Is(err, workspace.ErrNotFound) {
			t.Errorf("Get expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		if err := store.Save(ctx, makeWorkspace("ws-del", time.Hour)); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if err := store.Delete(ctx, "ws-del"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := store.Get(ctx, "ws-del"); !errors.Is(err, workspace.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got: %v", err)
		}
		if err := store.Delete(ctx, "ws-del"); err != nil {
			t.Errorf("deleting a missing workspace should not fail: %v", err)
		}
	})

	t.Run("ListExpired", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		for _, ws := range []*workspace.Workspace{
			makeWorkspace("ws-old", time.Minute),
			makeWorkspace("ws-new", 24*time.Hour),
			makeWorkspace("ws-older", time.Second),
		} {
			if err := store.Save(ctx, ws); err != nil {
				t.Fatalf("Save %s: %v", ws.ID, err)
			}
		}

		ids, err := store.ListExpired(ctx, baseTime.Add(time.Hour))
		if err != nil {
			t.Fatalf("ListExpired: %v", err)
		}
		if len(ids) != 2 || ids[0] != "ws-old" || ids[1] != "ws-older" {
			t.Errorf("ListExpired = %v, want [ws-old ws-older]", ids)
		}
	})
}
