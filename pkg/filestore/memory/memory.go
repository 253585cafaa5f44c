// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/thesaasbook/pdf-tools/pkg/filestore"
)

func init() {
	filestore.Providers.Register("memory", func(_ context.Context, _ map[string]string) (filestore.FileStore, error) {
		return New(), nil
	})
}

// compile-time check
var _ filestore.FileStore = (*Store)(nil)

// Store is an in-memory file store.
type Store struct {
	mu    sync.RWMutex
	files map[string]*filestore.File
}

// New creates a new in-memory file store.
func New() *Store {
	return &Store{
		files: make(map[string]*filestore.File),
	}
}

// CreateFile stores a new file.
func (s *Store) CreateFile(_ context.Context, file *filestore.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.files[file.ID]; exists {
		return fmt.Errorf("file %s already exists", file.ID)
	}

	cp := *file
	cp.Content = append([]byte(nil), file.Content...)
	s.files[file.ID] = &cp
	return nil
}

// GetFile returns file metadata (Content is nil).
func (s *Store) GetFile(_ context.Context, fileID string) (*filestore.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, exists := s.files[fileID]
	if !exists {
		return nil, fmt.Errorf("file %s: %w", fileID, filestore.ErrFileNotFound)
	}

	cp := *file
	cp.Content = nil
	return &cp, nil
}

// GetFileContent returns the raw file bytes.
func (s *Store) GetFileContent(_ context.Context, fileID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, exists := s.files[fileID]
	if !exists {
		return nil, fmt.Errorf("file %s: %w", fileID, filestore.ErrFileNotFound)
	}

	return file.Content, nil
}

// DeleteFile removes a file.
func (s *Store) DeleteFile(_ context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.files[fileID]; !exists {
		return fmt.Errorf("file %s: %w", fileID, filestore.ErrFileNotFound)
	}

	delete(s.files, fileID)
	return nil
}

// ListFiles returns the files owned by owner sorted by CreatedAt.
func (s *Store) ListFiles(_ context.Context, owner string) ([]*filestore.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*filestore.File
	for _, file := range s.files {
		if file.Owner != owner {
			continue
		}
		cp := *file
		cp.Content = nil
		out = append(out, &cp)
	}
	sortByCreated(out)
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close(_ context.Context) error {
	return nil
}

func sortByCreated(files []*filestore.File) {
	sort.Slice(files, func(i, j int) bool {
		if files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].ID < files[j].ID
		}
		return files[i].CreatedAt.Before(files[j].CreatedAt)
	})
}
