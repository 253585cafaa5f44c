// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/thesaasbook/pdf-tools/pkg/core/config"
	"github.com/thesaasbook/pdf-tools/pkg/document"
	"github.com/thesaasbook/pdf-tools/pkg/filestore"
	"github.com/thesaasbook/pdf-tools/pkg/observability/logging"
	"github.com/thesaasbook/pdf-tools/pkg/workspace"
)

// WorkspaceOptions configures a WorkspaceService.
type WorkspaceOptions struct {
	MaxFileBytes int64
	TTL          time.Duration
	// MergeTimeout is how long a persisted Merging flag is honored. A flag
	// older than this is left over from an interrupted merge and ignored.
	MergeTimeout time.Duration
	Now          func() time.Time
}

// MergeResult is the output of a successful workspace merge.
type MergeResult struct {
	Filename string
	Content  []byte
	Pages    int
}

const lockStripes = 64

// WorkspaceService applies user actions to merge workspaces. Each action
// loads the workspace, changes it and saves it back; actions on the same
// workspace are serialized within the process.
type WorkspaceService struct {
	store  workspace.Store
	files  filestore.FileStore
	merger Merger
	logger *logging.Logger
	opts   WorkspaceOptions

	locks [lockStripes]sync.Mutex
}

// NewWorkspaceService creates a WorkspaceService.
func NewWorkspaceService(store workspace.Store, files filestore.FileStore, merger Merger, logger *logging.Logger, opts WorkspaceOptions) *WorkspaceService {
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = config.DefaultMaxFileBytes
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.MergeTimeout <= 0 {
		opts.MergeTimeout = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &WorkspaceService{
		store:  store,
		files:  files,
		merger: merger,
		logger: logger,
		opts:   opts,
	}
}

func (s *WorkspaceService) lock(id string) func() {
	h := fnv.New32a()
	h.Write([]byte(id))
	mu := &s.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// Open returns the workspace for id, creating and saving a fresh one when id
// is empty, unknown or expired.
func (s *WorkspaceService) Open(ctx context.Context, id string) (*workspace.Workspace, error) {
	if id != "" {
		unlock := s.lock(id)
		defer unlock()
	}
	return s.load(ctx, id)
}

func (s *WorkspaceService) load(ctx context.Context, id string) (*workspace.Workspace, error) {
	now := s.opts.Now()
	if id != "" {
		ws, err := s.store.Get(ctx, id)
		switch {
		case err == nil && !ws.Expired(now):
			s.clearStaleMerge(ws, now)
			return ws, nil
		case err == nil:
			if perr := s.purge(ctx, id); perr != nil {
				s.logger.Warn("purging expired workspace failed", "workspace", id, "error", perr)
			}
		case !errors.Is(err, workspace.ErrNotFound):
			return nil, fmt.Errorf("load workspace: %w", err)
		}
	}

	ws := workspace.New(uuid.NewString(), now, s.opts.TTL)
	if err := s.store.Save(ctx, ws); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	s.logger.Debug("created workspace", "workspace", ws.ID)
	return ws, nil
}

func (s *WorkspaceService) clearStaleMerge(ws *workspace.Workspace, now time.Time) {
	if ws.Merging && now.Sub(ws.UpdatedAt) > s.opts.MergeTimeout {
		s.logger.Warn("clearing stale merge flag", "workspace", ws.ID, "since", ws.UpdatedAt)
		ws.Merging = false
	}
}

func (s *WorkspaceService) save(ctx context.Context, ws *workspace.Workspace) error {
	ws.Touch(s.opts.Now(), s.opts.TTL)
	if err := s.store.Save(ctx, ws); err != nil {
		return fmt.Errorf("save workspace: %w", err)
	}
	return nil
}

// Add validates uploads and appends the accepted ones to the list. A
// validation failure is recorded on the workspace, saved, and returned
// alongside it; the list is unchanged in that case.
func (s *WorkspaceService) Add(ctx context.Context, id string, uploads []Upload) (*workspace.Workspace, error) {
	unlock := s.lock(id)
	defer unlock()

	ws, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws.Merging {
		return s.rejectBusy(ctx, ws)
	}

	candidates := make([]workspace.Candidate, len(uploads))
	for i, u := range uploads {
		candidates[i] = workspace.Candidate{Name: u.Name, MimeType: u.MimeType, Size: u.Size}
	}
	keep, verr := workspace.Accept(candidates, s.opts.MaxFileBytes)
	if verr != nil {
		return s.reject(ctx, ws, verr)
	}

	now := s.opts.Now()
	entries := make([]workspace.Entry, 0, len(keep))
	for _, i := range keep {
		u := uploads[i]
		data, err := u.read(s.opts.MaxFileBytes, workspace.FileTooLarge(s.opts.MaxFileBytes))
		if err == nil {
			entry := workspace.Entry{
				ID:       uuid.NewString(),
				Name:     u.Name,
				Size:     int64(len(data)),
				MimeType: u.MimeType,
				Pages:    document.PageCount(data),
				AddedAt:  now,
			}
			err = s.files.CreateFile(ctx, &filestore.File{
				ID:        entry.ID,
				Owner:     ws.ID,
				Filename:  entry.Name,
				MimeType:  entry.MimeType,
				Bytes:     entry.Size,
				Content:   data,
				CreatedAt: now,
			})
			if err == nil {
				entries = append(entries, entry)
				continue
			}
		}

		s.deleteBlobs(ctx, entries)
		if errors.Is(err, workspace.ErrFileTooLarge) {
			return s.reject(ctx, ws, err)
		}
		return nil, fmt.Errorf("store upload %s: %w", u.Name, err)
	}

	ws.Append(entries...)
	if err := s.save(ctx, ws); err != nil {
		s.deleteBlobs(ctx, entries)
		return nil, err
	}

	var total uint64
	for _, e := range entries {
		total += uint64(e.Size)
	}
	s.logger.Info("added files", "workspace", ws.ID, "files", len(entries), "size", humanize.IBytes(total))
	return ws, nil
}

// Reject records a validation error found before the uploads could be
// read, such as a request body over the upload limit.
func (s *WorkspaceService) Reject(ctx context.Context, id string, verr error) (*workspace.Workspace, error) {
	unlock := s.lock(id)
	defer unlock()

	ws, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.reject(ctx, ws, verr)
}

func (s *WorkspaceService) reject(ctx context.Context, ws *workspace.Workspace, verr error) (*workspace.Workspace, error) {
	ws.Fail(verr)
	if err := s.save(ctx, ws); err != nil {
		return nil, err
	}
	return ws, verr
}

// rejectBusy records ErrMergeInProgress on a merging workspace. The save
// leaves UpdatedAt alone, since the stale-merge timeout runs from it.
func (s *WorkspaceService) rejectBusy(ctx context.Context, ws *workspace.Workspace) (*workspace.Workspace, error) {
	ws.Fail(workspace.ErrMergeInProgress)
	if err := s.store.Save(ctx, ws); err != nil {
		return nil, fmt.Errorf("save workspace: %w", err)
	}
	return ws, workspace.ErrMergeInProgress
}

// Remove deletes the entry with entryID and its stored bytes. Unknown IDs
// are a no-op.
func (s *WorkspaceService) Remove(ctx context.Context, id, entryID string) (*workspace.Workspace, error) {
	unlock := s.lock(id)
	defer unlock()

	ws, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws.Merging {
		return s.rejectBusy(ctx, ws)
	}

	entry, ok := ws.Remove(entryID)
	if !ok {
		return ws, nil
	}
	if err := s.save(ctx, ws); err != nil {
		return nil, err
	}
	s.deleteBlobs(ctx, []workspace.Entry{entry})
	return ws, nil
}

// Move swaps the entry at index with its neighbor. Out-of-range moves are
// a no-op.
func (s *WorkspaceService) Move(ctx context.Context, id string, index int, dir workspace.Direction) (*workspace.Workspace, error) {
	unlock := s.lock(id)
	defer unlock()

	ws, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws.Merging {
		return s.rejectBusy(ctx, ws)
	}
	if !ws.Move(index, dir) {
		return ws, nil
	}
	if err := s.save(ctx, ws); err != nil {
		return nil, err
	}
	return ws, nil
}

// Merge combines the workspace's files in list order. With fewer than two
// files the workspace records ErrTooFewFiles and nothing is parsed. On
// success the list and its stored bytes are cleared. On a processing
// failure the list is kept, the generic failure message is recorded and the
// returned error wraps document.ErrMergeFailed.
func (s *WorkspaceService) Merge(ctx context.Context, id string) (*MergeResult, *workspace.Workspace, error) {
	ws, entries, err := s.beginMerge(ctx, id)
	if err != nil {
		return nil, ws, err
	}

	log := s.logger.With("workspace", ws.ID)
	start := s.opts.Now()
	out, mergeErr := s.mergeEntries(ctx, ws.ID, entries)
	if mergeErr != nil {
		log.Error("merge failed", "files", len(entries), "error", mergeErr)
	}

	ws, err = s.endMerge(ctx, ws.ID, mergeErr == nil)
	if err != nil {
		return nil, nil, err
	}
	if mergeErr != nil {
		return nil, ws, mergeErr
	}

	s.deleteBlobs(ctx, entries)

	result := &MergeResult{
		Filename: fmt.Sprintf("merged_%d.pdf", start.UnixMilli()),
		Content:  out,
		Pages:    document.PageCount(out),
	}
	log.Info("merged workspace",
		"files", len(entries),
		"pages", result.Pages,
		"size", humanize.IBytes(uint64(len(out))),
		"duration", s.opts.Now().Sub(start),
	)
	return result, ws, nil
}

func (s *WorkspaceService) beginMerge(ctx context.Context, id string) (*workspace.Workspace, []workspace.Entry, error) {
	unlock := s.lock(id)
	defer unlock()

	ws, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if ws.Merging {
		busy, err := s.rejectBusy(ctx, ws)
		return busy, nil, err
	}
	if err := ws.BeginMerge(); err != nil {
		if serr := s.save(ctx, ws); serr != nil {
			return nil, nil, serr
		}
		return ws, nil, err
	}
	if err := s.save(ctx, ws); err != nil {
		return nil, nil, err
	}
	return ws, append([]workspace.Entry(nil), ws.Entries...), nil
}

func (s *WorkspaceService) endMerge(ctx context.Context, id string, success bool) (*workspace.Workspace, error) {
	unlock := s.lock(id)
	defer unlock()

	// fresh context so a canceled request still leaves the Merging state
	ctx = context.WithoutCancel(ctx)
	ws, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	ws.EndMerge(success)
	if err := s.save(ctx, ws); err != nil {
		return nil, err
	}
	return ws, nil
}

func (s *WorkspaceService) mergeEntries(ctx context.Context, owner string, entries []workspace.Entry) ([]byte, error) {
	sources := make([]document.Source, 0, len(entries))
	for _, e := range entries {
		data, err := s.files.GetFileContent(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", document.ErrMergeFailed, e.Name, err)
		}
		sources = append(sources, document.Source{Name: e.Name, Content: data})
	}
	out, err := s.merger.Merge(ctx, sources)
	if err != nil {
		if !errors.Is(err, document.ErrMergeFailed) {
			err = fmt.Errorf("%w: %w", document.ErrMergeFailed, err)
		}
		return nil, err
	}
	return out, nil
}

func (s *WorkspaceService) deleteBlobs(ctx context.Context, entries []workspace.Entry) {
	for _, e := range entries {
		if err := s.files.DeleteFile(ctx, e.ID); err != nil && !errors.Is(err, filestore.ErrFileNotFound) {
			s.logger.Warn("deleting stored file failed", "file", e.ID, "error", err)
		}
	}
}

// purge removes a workspace and every file it owns.
func (s *WorkspaceService) purge(ctx context.Context, id string) error {
	files, err := s.files.ListFiles(ctx, id)
	if err != nil {
		return fmt.Errorf("list files of %s: %w", id, err)
	}
	for _, f := range files {
		if err := s.files.DeleteFile(ctx, f.ID); err != nil && !errors.Is(err, filestore.ErrFileNotFound) {
			return fmt.Errorf("delete file %s: %w", f.ID, err)
		}
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete workspace %s: %w", id, err)
	}
	return nil
}

// Sweep deletes expired workspaces and their files. It returns how many
// workspaces were removed.
func (s *WorkspaceService) Sweep(ctx context.Context) (int, error) {
	ids, err := s.store.ListExpired(ctx, s.opts.Now())
	if err != nil {
		return 0, fmt.Errorf("list expired workspaces: %w", err)
	}

	removed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		unlock := s.lock(id)
		err := s.purge(ctx, id)
		unlock()
		if err != nil {
			s.logger.Warn("sweeping workspace failed", "workspace", id, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("swept expired workspaces", "count", removed)
	}
	return removed, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *WorkspaceService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("workspace sweep failed", "error", err)
			}
		}
	}
}
