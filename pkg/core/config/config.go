// Copyright PDF Tools Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultMaxFileBytes is the per-file upload limit of the merge workspace (50 MiB).
const DefaultMaxFileBytes int64 = 50 * 1024 * 1024

// Config represents the main configuration
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Logging        LoggingConfig        `yaml:"logging"`
	Merge          MergeConfig          `yaml:"merge"`
	FileStore      FileStoreConfig      `yaml:"file_store"`
	WorkspaceStore WorkspaceStoreConfig `yaml:"workspace_store"`
	Site           SiteConfig           `yaml:"site"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"` // whole multipart body
	SecureCookies  bool          `yaml:"secure_cookies"`   // set when served over HTTPS
}

// LoggingConfig contains logger configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// MergeConfig contains merge limits
type MergeConfig struct {
	MaxFileBytes int64 `yaml:"max_file_bytes"` // workspace per-file limit
	// EndpointMaxFileBytes applies the per-file limit to POST /api/merge too.
	// Zero leaves the endpoint unlimited per file.
	EndpointMaxFileBytes int64 `yaml:"endpoint_max_file_bytes"`
	MaxConcurrent        int   `yaml:"max_concurrent"`
	ObjectStreams        bool  `yaml:"object_streams"` // write xref/object streams in output
}

// FileStoreConfig contains upload blob storage configuration
type FileStoreConfig struct {
	Type       string `yaml:"type"`     // "memory" (default), "filesystem" or "s3"
	BaseDir    string `yaml:"base_dir"` // filesystem
	S3Bucket   string `yaml:"s3_bucket"`
	S3Region   string `yaml:"s3_region"`
	S3Prefix   string `yaml:"s3_prefix"`
	S3Endpoint string `yaml:"s3_endpoint"` // MinIO and other S3-compatible services
}

// WorkspaceStoreConfig contains merge workspace state storage configuration
type WorkspaceStoreConfig struct {
	Type string        `yaml:"type"` // "memory" (default), "sqlite" or "postgres"
	DSN  string        `yaml:"dsn"`
	TTL  time.Duration `yaml:"ttl"`
	// SweepInterval controls how often expired workspaces are purged.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// SiteConfig contains public site settings
type SiteConfig struct {
	BaseURL string `yaml:"base_url"`
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path like Load. A missing file is not an error: the
// defaults are returned and found is false. Any other failure, including a
// file that does not validate, is returned as is.
func LoadOrDefault(path string) (cfg *Config, found bool, err error) {
	cfg, err = Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}
	cfg = Default()
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			Timeout:        120 * time.Second,
			MaxUploadBytes: 512 * 1024 * 1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Merge: MergeConfig{
			MaxFileBytes:  DefaultMaxFileBytes,
			MaxConcurrent: runtime.NumCPU(),
		},
		FileStore: FileStoreConfig{
			Type: "memory",
		},
		WorkspaceStore: WorkspaceStoreConfig{
			Type:          "memory",
			TTL:           24 * time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Site: SiteConfig{
			BaseURL: "https://tools.thesaasbook.com",
		},
	}
	applyEnv(cfg)
	return cfg
}

// Validate checks for settings that cannot work together.
func (c *Config) Validate() error {
	switch c.FileStore.Type {
	case "memory":
	case "filesystem":
		if c.FileStore.BaseDir == "" {
			return fmt.Errorf("file_store: base_dir is required for the filesystem store")
		}
	case "s3":
		if c.FileStore.S3Bucket == "" {
			return fmt.Errorf("file_store: s3_bucket is required for the s3 store")
		}
	default:
		return fmt.Errorf("file_store: unknown type %q", c.FileStore.Type)
	}

	switch c.WorkspaceStore.Type {
	case "memory":
	case "sqlite", "postgres":
		if c.WorkspaceStore.DSN == "" {
			return fmt.Errorf("workspace_store: dsn is required for the %s store", c.WorkspaceStore.Type)
		}
	default:
		return fmt.Errorf("workspace_store: unknown type %q", c.WorkspaceStore.Type)
	}

	if c.Merge.MaxFileBytes <= 0 {
		return fmt.Errorf("merge: max_file_bytes must be positive")
	}
	return nil
}

// FileStoreParams returns the provider parameters for the configured file store.
func (c *Config) FileStoreParams() map[string]string {
	return map[string]string{
		"base_dir": c.FileStore.BaseDir,
		"bucket":   c.FileStore.S3Bucket,
		"region":   c.FileStore.S3Region,
		"prefix":   c.FileStore.S3Prefix,
		"endpoint": c.FileStore.S3Endpoint,
	}
}

// WorkspaceStoreParams returns the provider parameters for the configured workspace store.
func (c *Config) WorkspaceStoreParams() map[string]string {
	return map[string]string{
		"dsn": c.WorkspaceStore.DSN,
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("PDFTOOLS_BASE_URL"); v != "" {
		cfg.Site.BaseURL = v
	}

	// File store env overrides
	if v := os.Getenv("FILE_STORE_TYPE"); v != "" {
		cfg.FileStore.Type = v
	}
	if v := os.Getenv("FILE_STORE_BASE_DIR"); v != "" {
		cfg.FileStore.BaseDir = v
	}
	if v := os.Getenv("FILE_STORE_S3_BUCKET"); v != "" {
		cfg.FileStore.S3Bucket = v
	}
	if v := os.Getenv("FILE_STORE_S3_REGION"); v != "" {
		cfg.FileStore.S3Region = v
	}
	if v := os.Getenv("FILE_STORE_S3_ENDPOINT"); v != "" {
		cfg.FileStore.S3Endpoint = v
	}

	// Workspace store env overrides
	if v := os.Getenv("WORKSPACE_STORE_TYPE"); v != "" {
		cfg.WorkspaceStore.Type = v
	}
	if v := os.Getenv("WORKSPACE_STORE_DSN"); v != "" {
		cfg.WorkspaceStore.DSN = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "memory"
	}
	if cfg.WorkspaceStore.Type == "" {
		cfg.WorkspaceStore.Type = "memory"
	}
	if cfg.WorkspaceStore.TTL <= 0 {
		cfg.WorkspaceStore.TTL = 24 * time.Hour
	}
	if cfg.WorkspaceStore.SweepInterval <= 0 {
		cfg.WorkspaceStore.SweepInterval = 10 * time.Minute
	}
	if cfg.Merge.MaxConcurrent <= 0 {
		cfg.Merge.MaxConcurrent = runtime.NumCPU()
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
}
