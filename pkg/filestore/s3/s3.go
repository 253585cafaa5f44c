// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/thesaasbook/pdf-tools/pkg/filestore"
)

func init() {
	filestore.Providers.Register("s3", func(ctx context.Context, params map[string]string) (filestore.FileStore, error) {
		return New(ctx, Options{
			Bucket:   params["bucket"],
			Region:   params["region"],
			Prefix:   params["prefix"],
			Endpoint: params["endpoint"],
		})
	})
}

// compile-time check
var _ filestore.FileStore = (*Store)(nil)

// Options configures the S3 backend.
type Options struct {
	Bucket   string // required
	Region   string // e.g. "us-east-1"
	Prefix   string // key prefix, e.g. "uploads/"
	Endpoint string // custom endpoint for MinIO compatibility
}

// fileMetadata is the JSON sidecar stored alongside each file in S3.
type fileMetadata struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mime_type"`
	Bytes     int64     `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Store implements filestore.FileStore backed by S3 (or MinIO).
//
// Object layout:
//
//	<prefix><owner>/<file_id>/content
//	<prefix><owner>/<file_id>/metadata.json
//	<prefix>_index/<file_id>   owner name, for lookups by file ID
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// New creates an S3-backed Store.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 filestore: bucket is required")
	}

	optFns := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s3Opts := []func(*s3.Options){}
	if opts.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true // required for MinIO
		})
	}

	return &Store{
		client: s3.NewFromConfig(cfg, s3Opts...),
		bucket: opts.Bucket,
		prefix: opts.Prefix,
	}, nil
}

func (s *Store) ownerPrefix(owner string) string {
	return s.prefix + owner + "/"
}

func (s *Store) contentKey(owner, fileID string) string {
	return s.ownerPrefix(owner) + fileID + "/content"
}

func (s *Store) metadataKey(owner, fileID string) string {
	return s.ownerPrefix(owner) + fileID + "/metadata.json"
}

func (s *Store) indexKey(fileID string) string {
	return s.prefix + "_index/" + fileID
}

// CreateFile uploads content, metadata.json and the index entry.
func (s *Store) CreateFile(ctx context.Context, file *filestore.File) error {
	if file.Owner == "" || strings.Contains(file.Owner, "/") {
		return fmt.Errorf("s3 filestore: invalid owner %q", file.Owner)
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

	puts := []struct {
		key, contentType string
		body             []byte
	}{
		{s.contentKey(file.Owner, file.ID), file.MimeType, file.Content},
		{s.metadataKey(file.Owner, file.ID), "application/json", metaBytes},
		{s.indexKey(file.ID), "text/plain", []byte(file.Owner)},
	}
	for _, p := range puts {
		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(p.key),
			Body:        bytes.NewReader(p.body),
			ContentType: aws.String(p.contentType),
		})
		if err != nil {
			return fmt.Errorf("put %s: %w", p.key, err)
		}
	}
	return nil
}

// GetFile returns file metadata (Content is nil).
func (s *Store) GetFile(ctx context.Context, fileID string) (*filestore.File, error) {
	owner, err := s.lookupOwner(ctx, fileID)
	if err != nil {
		return nil, err
	}
	meta, err := s.readMetadata(ctx, owner, fileID)
	if err != nil {
		return nil, err
	}
	return meta.toFile(), nil
}

// GetFileContent returns the raw file bytes from S3.
func (s *Store) GetFileContent(ctx context.Context, fileID string) ([]byte, error) {
	owner, err := s.lookupOwner(ctx, fileID)
	if err != nil {
		return nil, err
	}
	data, err := s.getObject(ctx, s.contentKey(owner, fileID))
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("file %s: %w", fileID, filestore.ErrFileNotFound)
		}
		return nil, fmt.Errorf("get content: %w", err)
	}
	return data, nil
}

// DeleteFile removes the content, metadata and index objects.
func (s *Store) DeleteFile(ctx context.Context, fileID string) error {
	owner, err := s.lookupOwner(ctx, fileID)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &s3types.Delete{
			Objects: []s3types.ObjectIdentifier{
				{Key: aws.String(s.contentKey(owner, fileID))},
				{Key: aws.String(s.metadataKey(owner, fileID))},
				{Key: aws.String(s.indexKey(fileID))},
			},
			Quiet: aws.Bool(true),
		},
	})
	if err != nil {
		return fmt.Errorf("delete objects: %w", err)
	}
	return nil
}

// ListFiles lists the files under the owner's prefix sorted by CreatedAt.
func (s *Store) ListFiles(ctx context.Context, owner string) ([]*filestore.File, error) {
	var fileIDs []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(s.ownerPrefix(owner)),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, cp := range page.CommonPrefixes {
			// "<prefix><owner>/<file_id>/"
			id := strings.TrimPrefix(aws.ToString(cp.Prefix), s.ownerPrefix(owner))
			id = strings.TrimSuffix(id, "/")
			if id != "" {
				fileIDs = append(fileIDs, id)
			}
		}
	}

	// Fetch metadata concurrently with a semaphore
	const maxConcurrency = 10
	sem := make(chan struct{}, maxConcurrency)
	var (
		mu       sync.Mutex
		files    []*filestore.File
		fetchErr error
		wg       sync.WaitGroup
	)
	for _, id := range fileIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(fileID string) {
			defer wg.Done()
			defer func() { <-sem }()

			meta, err := s.readMetadata(ctx, owner, fileID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if fetchErr == nil && !errors.Is(err, filestore.ErrFileNotFound) {
					fetchErr = err
				}
				return
			}
			files = append(files, meta.toFile())
		}(id)
	}
	wg.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].ID < files[j].ID
		}
		return files[i].CreatedAt.Before(files[j].CreatedAt)
	})
	return files, nil
}

// Close is a no-op for the S3 store.
func (s *Store) Close(_ context.Context) error {
	return nil
}

func (s *Store) lookupOwner(ctx context.Context, fileID string) (string, error) {
	data, err := s.getObject(ctx, s.indexKey(fileID))
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("file %s: %w", fileID, filestore.ErrFileNotFound)
		}
		return "", fmt.Errorf("get index: %w", err)
	}
	return string(data), nil
}

// readMetadata fetches and unmarshals metadata.json from S3.
func (s *Store) readMetadata(ctx context.Context, owner, fileID string) (*fileMetadata, error) {
	data, err := s.getObject(ctx, s.metadataKey(owner, fileID))
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("file %s: %w", fileID, filestore.ErrFileNotFound)
		}
		return nil, fmt.Errorf("get metadata: %w", err)
	}

	var meta fileMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", fileID, err)
	}
	return &meta, nil
}

func (s *Store) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
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

// isNotFound checks whether the error indicates a missing S3 object.
func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	// Some S3-compatible services return a generic "NotFound" status.
	return strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "NotFound")
}
