// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/thesaasbook/pdf-tools/pkg/document"
	"github.com/thesaasbook/pdf-tools/pkg/observability/logging"
	"github.com/thesaasbook/pdf-tools/pkg/workspace"
)

// ErrNoUploads is returned by MergeUploads when nothing was uploaded.
var ErrNoUploads = errors.New("No files uploaded")

// Merger combines documents in order. *document.Merger implements it.
type Merger interface {
	Merge(ctx context.Context, sources []document.Source) ([]byte, error)
}

// MergeService runs stateless merges: every call brings its own files and
// nothing is kept between calls.
type MergeService struct {
	merger       Merger
	logger       *logging.Logger
	maxFileBytes int64
}

// NewMergeService creates a MergeService. maxFileBytes of zero disables the
// per-file limit.
func NewMergeService(merger Merger, logger *logging.Logger, maxFileBytes int64) *MergeService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &MergeService{
		merger:       merger,
		logger:       logger,
		maxFileBytes: maxFileBytes,
	}
}

// MergeUploads merges uploads in the order given. A single upload is passed
// through the merger like any other list. Errors are ErrNoUploads,
// an error matching workspace.ErrFileTooLarge, or a wrapped document.ErrMergeFailed.
func (s *MergeService) MergeUploads(ctx context.Context, uploads []Upload) ([]byte, error) {
	if len(uploads) == 0 {
		return nil, ErrNoUploads
	}

	sources := make([]document.Source, 0, len(uploads))
	var total int64
	for _, u := range uploads {
		if s.maxFileBytes > 0 && u.Size > s.maxFileBytes {
			return nil, workspace.FileTooLarge(s.maxFileBytes)
		}
		data, err := u.read(s.maxFileBytes, workspace.FileTooLarge(s.maxFileBytes))
		if err != nil {
			if errors.Is(err, workspace.ErrFileTooLarge) {
				return nil, err
			}
			s.logger.Error("reading upload failed", "file", u.Name, "error", err)
			return nil, fmt.Errorf("%w: %w", document.ErrMergeFailed, err)
		}
		total += int64(len(data))
		sources = append(sources, document.Source{Name: u.Name, Content: data})
	}

	out, err := s.merger.Merge(ctx, sources)
	if err != nil {
		s.logger.Error("merge failed", "files", len(sources), "error", err)
		return nil, err
	}

	s.logger.Info("merged uploads",
		"files", len(sources),
		"input", humanize.IBytes(uint64(total)),
		"output", humanize.IBytes(uint64(len(out))),
	)
	return out, nil
}
