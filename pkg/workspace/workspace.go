// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

// Package workspace holds the state of one visitor's merge workspace: the
// ordered file list, the merge-in-progress flag and the last error message.
//
// A Workspace is a plain value. It performs no I/O; the services layer loads
// it from a Store, applies one operation and saves it back.
package workspace

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// PDFMimeType is the only content type accepted into a workspace.
const PDFMimeType = "application/pdf"

// MinMergeFiles is the smallest file list that can be merged.
const MinMergeFiles = 2

// Validation errors. Their messages are shown to the user as-is.
var (
	ErrNoValidFiles    = errors.New("Please upload valid PDF files.")
	ErrFileTooLarge    = errors.New("Max file size is 50MB.")
	ErrTooFewFiles     = errors.New("Please add at least 2 PDF files.")
	ErrMergeInProgress = errors.New("A merge is already in progress.")
)

// FileTooLarge returns an error for a file over limit. It matches
// ErrFileTooLarge under errors.Is and its message names the limit.
func FileTooLarge(limit int64) error {
	return &sizeLimitError{limit: limit}
}

type sizeLimitError struct {
	limit int64
}

func (e *sizeLimitError) Error() string {
	return fmt.Sprintf("Max file size is %s.", FormatLimit(e.limit))
}

func (e *sizeLimitError) Is(target error) bool {
	return target == ErrFileTooLarge
}

// FormatLimit renders a byte limit for users: whole mebibytes as "50MB",
// anything else in IEC units.
func FormatLimit(limit int64) string {
	const mib = 1 << 20
	if limit >= mib && limit%mib == 0 {
		return fmt.Sprintf("%dMB", limit/mib)
	}
	return humanize.IBytes(uint64(limit))
}

// ErrNotFound is returned by stores for unknown or expired workspaces.
var ErrNotFound = errors.New("workspace not found")

// MergeFailedMessage is shown when a merge fails for any processing reason.
const MergeFailedMessage = "Something went wrong while merging."

// Direction is a reorder direction.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection converts a form value into a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case Up, Down:
		return Direction(s), true
	}
	return "", false
}

// Entry is one uploaded file in the list. The bytes live in the file store
// under the entry ID.
type Entry struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	MimeType string    `json:"mime_type"`
	Pages    int       `json:"pages,omitempty"` // 0 when unknown
	AddedAt  time.Time `json:"added_at"`
}

// Candidate is a file offered for addition, before validation.
type Candidate struct {
	Name     string
	MimeType string
	Size     int64
}

// Workspace is the merge state of one visitor.
type Workspace struct {
	ID        string
	Entries   []Entry
	Merging   bool
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// New creates an empty workspace.
func New(id string, now time.Time, ttl time.Duration) *Workspace {
	return &Workspace{
		ID:        id,
		Entries:   []Entry{},
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Clone returns a deep copy.
func (w *Workspace) Clone() *Workspace {
	cp := *w
	cp.Entries = append([]Entry(nil), w.Entries...)
	if cp.Entries == nil {
		cp.Entries = []Entry{}
	}
	return &cp
}

// Touch records a modification and extends the expiry.
func (w *Workspace) Touch(now time.Time, ttl time.Duration) {
	w.UpdatedAt = now
	w.ExpiresAt = now.Add(ttl)
}

// Expired reports whether the workspace has passed its expiry.
func (w *Workspace) Expired(now time.Time) bool {
	return !w.ExpiresAt.IsZero() && now.After(w.ExpiresAt)
}

// Accept validates candidates for addition and returns the indexes of the
// ones to keep, in order. Candidates that are not PDFs are dropped; if none
// remain the result is ErrNoValidFiles. Any kept candidate over maxBytes
// fails the whole batch with FileTooLarge(maxBytes). Accept does not modify w.
func Accept(candidates []Candidate, maxBytes int64) ([]int, error) {
	var keep []int
	for i, c := range candidates {
		if c.MimeType == PDFMimeType {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return nil, ErrNoValidFiles
	}
	for _, i := range keep {
		if candidates[i].Size > maxBytes {
			return nil, FileTooLarge(maxBytes)
		}
	}
	return keep, nil
}

// Append adds entries to the end of the list and clears the error.
func (w *Workspace) Append(entries ...Entry) {
	w.Entries = append(w.Entries, entries...)
	w.Error = ""
}

// Fail records a user-facing error message.
func (w *Workspace) Fail(err error) {
	w.Error = err.Error()
}

// Remove deletes the entry with the given ID and reports whether it existed.
func (w *Workspace) Remove(id string) (Entry, bool) {
	for i, e := range w.Entries {
		if e.ID == id {
			w.Entries = append(w.Entries[:i:i], w.Entries[i+1:]...)
			return e, true
		}
	}
	return Entry{}, false
}

// Move swaps the entry at index with its neighbor in the given direction.
// Out-of-range moves are no-ops; the result reports whether anything moved.
func (w *Workspace) Move(index int, dir Direction) bool {
	target := index + 1
	if dir == Up {
		target = index - 1
	}
	if index < 0 || index >= len(w.Entries) || target < 0 || target >= len(w.Entries) {
		return false
	}
	w.Entries[index], w.Entries[target] = w.Entries[target], w.Entries[index]
	return true
}

// BeginMerge moves the workspace into the Merging state. It fails without
// changing anything but the error message when a merge is already running
// or the list is too short.
func (w *Workspace) BeginMerge() error {
	if w.Merging {
		return ErrMergeInProgress
	}
	if len(w.Entries) < MinMergeFiles {
		w.Fail(ErrTooFewFiles)
		return ErrTooFewFiles
	}
	w.Merging = true
	w.Error = ""
	return nil
}

// EndMerge leaves the Merging state. On success the list is cleared; on
// failure it is kept and the generic failure message is recorded.
func (w *Workspace) EndMerge(success bool) {
	w.Merging = false
	if success {
		w.Entries = []Entry{}
		w.Error = ""
		return
	}
	w.Error = MergeFailedMessage
}

// CanMerge reports whether the merge action should be offered.
func (w *Workspace) CanMerge() bool {
	return !w.Merging && len(w.Entries) >= MinMergeFiles
}

// TotalPages sums the known page counts.
func (w *Workspace) TotalPages() int {
	n := 0
	for _, e := range w.Entries {
		n += e.Pages
	}
	return n
}
