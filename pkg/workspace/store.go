// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"time"

	"github.com/thesaasbook/pdf-tools/pkg/provider"
)

// Providers is the registry of workspace store backends. Import
// implementation packages with blank imports to register them:
//
//	import _ "github.com/thesaasbook/pdf-tools/pkg/storage/memory"
//	import _ "github.com/thesaasbook/pdf-tools/pkg/storage/sqlite"
//	import _ "github.com/thesaasbook/pdf-tools/pkg/storage/postgres"
var Providers = provider.NewRegistry[Store]("workspace_store")

// Store persists workspaces.
type Store interface {
	// Get returns the workspace or ErrNotFound.
	Get(ctx context.Context, id string) (*Workspace, error)
	// Save inserts or replaces the workspace.
	Save(ctx context.Context, ws *Workspace) error
	// Delete removes the workspace. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error
	// ListExpired returns the IDs of workspaces whose expiry is before now.
	ListExpired(ctx context.Context, now time.Time) ([]string, error)
	Close() error
}
