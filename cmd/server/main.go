// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	httpAdapter "github.com/thesaasbook/pdf-tools/pkg/adapters/http"
	"github.com/thesaasbook/pdf-tools/pkg/core/config"
	"github.com/thesaasbook/pdf-tools/pkg/core/services"
	"github.com/thesaasbook/pdf-tools/pkg/document"
	"github.com/thesaasbook/pdf-tools/pkg/filestore"
	"github.com/thesaasbook/pdf-tools/pkg/observability/logging"
	"github.com/thesaasbook/pdf-tools/pkg/workspace"

	// file store backends
	_ "github.com/thesaasbook/pdf-tools/pkg/filestore/filesystem"
	_ "github.com/thesaasbook/pdf-tools/pkg/filestore/memory"
	_ "github.com/thesaasbook/pdf-tools/pkg/filestore/s3"

	// workspace store backends
	_ "github.com/thesaasbook/pdf-tools/pkg/storage/memory"
	_ "github.com/thesaasbook/pdf-tools/pkg/storage/postgres"
	_ "github.com/thesaasbook/pdf-tools/pkg/storage/sqlite"
)

var (
	// Version is set via ldflags during build
	Version   = "dev"
	BuildTime = "unknown"
)

type options struct {
	Config  string `short:"c" long:"config" default:"config.yaml" description:"Path to configuration file"`
	Port    int    `short:"p" long:"port" description:"HTTP port to listen on (overrides config)"`
	Version bool   `long:"version" description:"Print version and exit"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		var fe *flags.Error
		if errors.As(err, &fe) && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if opts.Version {
		fmt.Printf("PDF Tools Server\nVersion: %s\nBuild Time: %s\n", Version, BuildTime)
		os.Exit(0)
	}

	// Load configuration
	cfg, found, err := config.LoadOrDefault(opts.Config)
	if err != nil {
		logging.New(logging.Config{}).Error("Failed to load config", "path", opts.Config, "error", err)
		os.Exit(1)
	}
	if opts.Port != 0 {
		cfg.Server.Port = opts.Port
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logger.Info("Starting PDF Tools Server",
		"version", Version,
		"build_time", BuildTime)
	if !found {
		logger.Warn("Config file not found, using defaults", "path", opts.Config)
	}

	initCtx := context.Background()

	// Initialize upload storage
	files, err := filestore.Providers.New(initCtx, cfg.FileStore.Type, cfg.FileStoreParams())
	if err != nil {
		logger.Error("Failed to initialize file store", "type", cfg.FileStore.Type, "error", err)
		os.Exit(1)
	}
	defer files.Close(context.Background())
	logger.Info("Initialized file store", "type", cfg.FileStore.Type)

	// Initialize workspace storage
	workspaces, err := workspace.Providers.New(initCtx, cfg.WorkspaceStore.Type, cfg.WorkspaceStoreParams())
	if err != nil {
		logger.Error("Failed to initialize workspace store", "type", cfg.WorkspaceStore.Type, "error", err)
		os.Exit(1)
	}
	defer workspaces.Close()
	logger.Info("Initialized workspace store", "type", cfg.WorkspaceStore.Type)

	merger := document.NewMerger(document.MergerOptions{
		MaxConcurrent: cfg.Merge.MaxConcurrent,
		ObjectStreams: cfg.Merge.ObjectStreams,
	})
	logger.Info("Initialized merger", "max_concurrent", cfg.Merge.MaxConcurrent)

	// Initialize services
	workspaceService := services.NewWorkspaceService(workspaces, files, merger, logger, services.WorkspaceOptions{
		MaxFileBytes: cfg.Merge.MaxFileBytes,
		TTL:          cfg.WorkspaceStore.TTL,
		MergeTimeout: cfg.Server.Timeout,
	})
	mergeService := services.NewMergeService(merger, logger, cfg.Merge.EndpointMaxFileBytes)

	// Initialize HTTP adapter
	handler := httpAdapter.New(logger, workspaceService, mergeService, httpAdapter.Options{
		BaseURL:        cfg.Site.BaseURL,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		MaxFileBytes:   cfg.Merge.MaxFileBytes,
		WorkspaceTTL:   cfg.WorkspaceStore.TTL,
		SecureCookies:  cfg.Server.SecureCookies,
	})
	logger.Info("Initialized HTTP adapter")

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go workspaceService.RunSweeper(ctx, cfg.WorkspaceStore.SweepInterval)

	// Start server in goroutine
	go func() {
		logger.Info("Server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	logger.Info("Shutdown signal received")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("Server stopped gracefully")
}
