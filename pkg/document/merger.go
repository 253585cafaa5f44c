// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/semaphore"
)

var disableConfigDir sync.Once

// MergerOptions configures a Merger.
type MergerOptions struct {
	// MaxConcurrent bounds how many merges run at once in this process.
	// Zero means runtime.NumCPU().
	MaxConcurrent int
	// ObjectStreams makes the output use compressed xref and object streams.
	// Off by default so that the output opens in older readers.
	ObjectStreams bool
}

// Merger concatenates the pages of several PDF documents into one.
type Merger struct {
	sem           *semaphore.Weighted
	objectStreams bool
}

// NewMerger creates a Merger.
func NewMerger(opts MergerOptions) *Merger {
	// pdfcpu otherwise creates a config directory under the user's home.
	disableConfigDir.Do(api.DisableConfigDir)

	n := opts.MaxConcurrent
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return &Merger{
		sem:           semaphore.NewWeighted(int64(n)),
		objectStreams: opts.ObjectStreams,
	}
}

func (m *Merger) configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = m.objectStreams
	conf.WriteXRefStream = m.objectStreams
	return conf
}

// Merge parses every source in order, appends all of its pages to a new
// document and returns the serialized result. Any failure aborts the whole
// merge and is reported wrapped in ErrMergeFailed; no partial output is
// returned.
//
// The context only governs waiting for a merge slot. Once the library call
// starts it runs to completion.
func (m *Merger) Merge(ctx context.Context, sources []Source) ([]byte, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for merge slot: %w", err)
	}
	defer m.sem.Release(1)

	readers := make([]io.ReadSeeker, 0, len(sources))
	for _, src := range sources {
		if len(src.Content) == 0 {
			return nil, fmt.Errorf("%w: %s: empty file", ErrMergeFailed, src.Name)
		}
		readers = append(readers, bytes.NewReader(src.Content))
	}

	out, err := m.mergeRaw(readers)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMergeFailed, err)
	}
	return out, nil
}

// mergeRaw calls into pdfcpu, converting panics from malformed input
// into errors.
func (m *Merger) mergeRaw(readers []io.ReadSeeker) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()

	var buf bytes.Buffer
	if err := api.MergeRaw(readers, &buf, false, m.configuration()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate reports whether content parses as a PDF document.
func (m *Merger) Validate(content []byte) error {
	if err := api.Validate(bytes.NewReader(content), m.configuration()); err != nil {
		return fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return nil
}
