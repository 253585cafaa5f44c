// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

// Command pdfmerge merges local PDF files in argument order:
//
//	pdfmerge -o out.pdf a.pdf b.pdf c.pdf
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"

	"github.com/thesaasbook/pdf-tools/pkg/core/services"
	"github.com/thesaasbook/pdf-tools/pkg/document"
	"github.com/thesaasbook/pdf-tools/pkg/observability/logging"
	"github.com/thesaasbook/pdf-tools/pkg/workspace"
)

type options struct {
	Output        string `short:"o" long:"output" default:"merged.pdf" description:"Output file"`
	ObjectStreams bool   `long:"object-streams" description:"Write compressed object and xref streams"`
	Verbose       bool   `short:"v" long:"verbose" description:"Log progress"`
	Args          struct {
		Files []string `positional-arg-name:"FILE"`
	} `positional-args:"yes"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[OPTIONS] FILE FILE..."
	if _, err := parser.Parse(); err != nil {
		var fe *flags.Error
		if errors.As(err, &fe) && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if err := run(context.Background(), opts); err != nil {
		fmt.Fprintln(os.Stderr, "pdfmerge:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	if len(opts.Args.Files) < workspace.MinMergeFiles {
		return workspace.ErrTooFewFiles
	}

	logger := logging.Discard()
	if opts.Verbose {
		logger = logging.New(logging.Config{Level: "info", Format: "text", Output: os.Stderr})
	}

	uploads := make([]services.Upload, 0, len(opts.Args.Files))
	for _, path := range opts.Args.Files {
		u, err := services.FileUpload(path)
		if err != nil {
			return err
		}
		uploads = append(uploads, u)
	}

	merger := document.NewMerger(document.MergerOptions{MaxConcurrent: 1, ObjectStreams: opts.ObjectStreams})
	out, err := services.NewMergeService(merger, logger, 0).MergeUploads(ctx, uploads)
	if err != nil {
		if errors.Is(err, document.ErrMergeFailed) {
			if bad := firstInvalid(merger, opts.Args.Files); bad != nil {
				return bad
			}
		}
		return err
	}

	if err := os.WriteFile(opts.Output, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.Output, err)
	}
	fmt.Printf("%s: %d pages, %s\n", opts.Output, document.PageCount(out), humanize.IBytes(uint64(len(out))))
	return nil
}

// firstInvalid names the first input that does not parse as a PDF.
func firstInvalid(merger *document.Merger, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := merger.Validate(data); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}
