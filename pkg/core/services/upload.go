// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Upload is a file offered to a merge, before its bytes are read.
type Upload struct {
	Name     string
	MimeType string // declared by the client
	Size     int64  // declared by the client
	Open     func() (io.ReadCloser, error)
}

// BytesUpload wraps in-memory content.
func BytesUpload(name, mimeType string, content []byte) Upload {
	return Upload{
		Name:     name,
		MimeType: mimeType,
		Size:     int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

// FileUpload wraps a local file. The content type is assumed to be PDF.
func FileUpload(path string) (Upload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Upload{}, err
	}
	if info.IsDir() {
		return Upload{}, fmt.Errorf("%s is a directory", path)
	}
	return Upload{
		Name:     filepath.Base(path),
		MimeType: "application/pdf",
		Size:     info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// read returns the upload's bytes. When limit is positive, content larger
// than limit fails with errTooLarge regardless of the declared size.
func (u Upload) read(limit int64, errTooLarge error) ([]byte, error) {
	rc, err := u.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", u.Name, err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u.Name, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, errTooLarge
	}
	return data, nil
}
