// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/thesaasbook/pdf-tools/pkg/filestore"
)

func init() {
	filestore.Providers.Register("filesystem", func(_ context.Context, params map[string]string) (filestore.FileStore, error) {
		return New(params["base_dir"])
	})
}

// compile-time check
var _ filestore.FileStore = (*Store)(nil)

// fileMetadata is the on-disk representation stored in metadata.json.
type fileMetadata struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mime_type"`
	Bytes     int64     `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Store implements filestore.FileStore backed by a local filesystem.
//
// Layout:
//
//	<baseDir>/<owner>/<file_id>/content        raw file bytes
//	<baseDir>/<owner>/<file_id>/metadata.json  JSON metadata sidecar
//	<baseDir>/_index/<file_id>                 owner of the file
type Store struct {
	baseDir string
}

const indexDir = "_index"

// New creates a filesystem-backed Store, creating baseDir if it does not exist.
func New(baseDir string) (*Store, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("filesystem filestore: base_dir is required")
	}
	if err := os.MkdirAll(filepath.Join(baseDir, indexDir), 0o755); err != nil {
		return nil, fmt.Errorf("create base dir %s: %w", baseDir, err)
	}
	return &Store{baseDir: baseDir}, nil
}

// segment reports whether name is a single path element that stays inside baseDir.
func segment(name string) bool {
	return name != "" && name == filepath.Base(name) && name != "." && name != ".."
}

func (s *Store) indexPath(fileID string) (string, error) {
	if !segment(fileID) {
		return "", fmt.Errorf("file %q: %w", fileID, filestore.ErrFileNotFound)
	}
	return filepath.Join(s.baseDir, indexDir, fileID), nil
}

// dir resolves the directory of a file through its index entry.
func (s *Store) dir(fileID string) (string, error) {
	idx, err := s.indexPath(fileID)
	if err != nil {
		return "", err
	}
	owner, err := os.ReadFile(idx)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file %s: %w", fileID, filestore.ErrFileNotFound)
		}
		return "", fmt.Errorf("read index: %w", err)
	}
	if !segment(string(owner)) {
		return "", fmt.Errorf("file %s: corrupt index entry", fileID)
	}
	return filepath.Join(s.baseDir, string(owner), fileID), nil
}

// CreateFile writes the file content, metadata and index entry to disk atomically.
func (s *Store) CreateFile(_ context.Context, file *filestore.File) error {
	if !segment(file.Owner) || file.Owner == indexDir {
		return fmt.Errorf("filesystem filestore: invalid owner %q", file.Owner)
	}
	idx, err := s.indexPath(file.ID)
	if err != nil {
		return err
	}
	dir := filepath.Join(s.baseDir, file.Owner, file.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create file dir: %w", err)
	}

	// Write content atomically (temp file + rename)
	if err := writeAtomic(filepath.Join(dir, "content"), file.Content); err != nil {
		return fmt.Errorf("write content: %w", err)
	}

	meta := fileMetadata{
		ID:        file.ID,
		Owner:     file.Owner,
		Filename:  file.Filename,
		MimeType:  file.MimeType,
		Bytes:     file.Bytes,
		CreatedAt: file.CreatedAt,
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, "metadata.json"), metaBytes); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	// The index entry goes last so lookups never see a half-written file.
	if err := writeAtomic(idx, []byte(file.Owner)); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// GetFile returns file metadata (Content is nil).
func (s *Store) GetFile(_ context.Context, fileID string) (*filestore.File, error) {
	dir, err := s.dir(fileID)
	if err != nil {
		return nil, err
	}
	meta, err := readMetadata(dir, fileID)
	if err != nil {
		return nil, err
	}
	return meta.toFile(), nil
}

// GetFileContent returns the raw file bytes.
func (s *Store) GetFileContent(_ context.Context, fileID string) ([]byte, error) {
	dir, err := s.dir(fileID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "content"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file %s: %w", fileID, filestore.ErrFileNotFound)
		}
		return nil, fmt.Errorf("read content: %w", err)
	}
	return data, nil
}

// DeleteFile removes the index entry and the file directory.
func (s *Store) DeleteFile(_ context.Context, fileID string) error {
	dir, err := s.dir(fileID)
	if err != nil {
		return err
	}
	idx, _ := s.indexPath(fileID)
	if err := os.Remove(idx); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove index: %w", err)
	}
	return os.RemoveAll(dir)
}

// ListFiles returns the files owned by owner sorted by CreatedAt. Only the
// owner's directory is read.
func (s *Store) ListFiles(_ context.Context, owner string) ([]*filestore.File, error) {
	if !segment(owner) || owner == indexDir {
		return nil, nil
	}
	ownerDir := filepath.Join(s.baseDir, owner)
	entries, err := os.ReadDir(ownerDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read owner dir: %w", err)
	}

	var files []*filestore.File
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := readMetadata(filepath.Join(ownerDir, entry.Name()), entry.Name())
		if err != nil {
			continue // skip corrupt entries
		}
		files = append(files, meta.toFile())
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].ID < files[j].ID
		}
		return files[i].CreatedAt.Before(files[j].CreatedAt)
	})
	return files, nil
}

// Close is a no-op for the filesystem store.
func (s *Store) Close(_ context.Context) error {
	return nil
}

// readMetadata reads and unmarshals the metadata.json in dir.
func readMetadata(dir, fileID string) (*fileMetadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file %s: %w", fileID, filestore.ErrFileNotFound)
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var meta fileMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata for %s: %w", fileID, err)
	}
	return &meta, nil
}

func (m *fileMetadata) toFile() *filestore.File {
	return &filestore.File{
		ID:        m.ID,
		Owner:     m.Owner,
		Filename:  m.Filename,
		MimeType:  m.MimeType,
		Bytes:     m.Bytes,
		CreatedAt: m.CreatedAt,
	}
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
