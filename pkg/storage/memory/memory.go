// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/thesaasbook/pdf-tools/pkg/workspace"
)

func init() {
	workspace.Providers.Register("memory", func(_ context.Context, _ map[string]string) (workspace.Store, error) {
		return New(), nil
	})
}

// compile-time check
var _ workspace.Store = (*Store)(nil)

// Store is an in-memory workspace store
type Store struct {
	mu         sync.RWMutex
	workspaces map[string]*workspace.Workspace
}

// New creates a new in-memory store
func New() *Store {
	return &Store{
		workspaces: make(map[string]*workspace.Workspace),
	}
}

// Get retrieves a workspace by ID
func (s *Store) Get(_ context.Context, id string) (*workspace.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws, exists := s.workspaces[id]
	if !exists {
		return nil, fmt.Errorf("workspace %s: %w", id, workspace.ErrNotFound)
	}
	return ws.Clone(), nil
}

// Save inserts or replaces a workspace
func (s *Store) Save(_ context.Context, ws *workspace.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.workspaces[ws.ID] = ws.Clone()
	return nil
}

// Delete removes a workspace
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.workspaces, id)
	return nil
}

// ListExpired returns the IDs of expired workspaces, sorted
func (s *Store) ListExpired(_ context.Context, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, ws := range s.workspaces {
		if ws.Expired(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Close is a no-op for the in-memory store
func (s *Store) Close() error {
	return nil
}
