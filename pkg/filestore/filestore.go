// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package filestore

import (
	"context"
	"errors"
	"time"

	"github.com/thesaasbook/pdf-tools/pkg/provider"
)

// ErrFileNotFound is returned when a file does not exist.
var ErrFileNotFound = errors.New("file not found")

// Providers is the registry of file store backend implementations.
// Import implementation packages with blank imports to register them:
//
//	import _ "github.com/thesaasbook/pdf-tools/pkg/filestore/memory"
//	import _ "github.com/thesaasbook/pdf-tools/pkg/filestore/filesystem"
//	import _ "github.com/thesaasbook/pdf-tools/pkg/filestore/s3"
var Providers = provider.NewRegistry[FileStore]("file_store")

// File is an uploaded document held for a merge workspace.
type File struct {
	ID        string
	Owner     string // workspace ID
	Filename  string
	MimeType  string
	Bytes     int64
	Content   []byte // populated for CreateFile input; nil for GetFile output
	CreatedAt time.Time
}

// FileStore defines the interface for pluggable upload storage backends.
type FileStore interface {
	CreateFile(ctx context.Context, file *File) error
	GetFile(ctx context.Context, fileID string) (*File, error)
	GetFileContent(ctx context.Context, fileID string) ([]byte, error)
	DeleteFile(ctx context.Context, fileID string) error
	// ListFiles returns metadata of every file owned by owner, oldest first.
	ListFiles(ctx context.Context, owner string) ([]*File, error)
	Close(ctx context.Context) error
}
