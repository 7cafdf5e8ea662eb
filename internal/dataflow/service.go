// Package dataflow stores rendered configuration files on a local directory,
// in memory or in an S3-compatible bucket.
package dataflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/flexinfer/nemsgen/internal/metrics"
	"github.com/flexinfer/nemsgen/internal/tracing"
)

// ErrNotFound is returned when an artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// Metadata keys set on artifact references.
const (
	MetaLinkMode = "link_mode"

	LinkSymlink = "symlink"
	LinkCopy    = "copy"
	LinkAlias   = "alias"
)

const contentType = "text/plain; charset=utf-8"

// ArtifactRef represents a reference to a stored file.
type ArtifactRef struct {
	// URI is the full artifact location (e.g., "s3://bucket/path/nems.configure")
	URI string `json:"uri"`

	// ContentType is the MIME type
	ContentType string `json:"content_type,omitempty"`

	// Size in bytes
	Size int64 `json:"size,omitempty"`

	// Checksum (SHA256)
	Checksum string `json:"checksum,omitempty"`

	// CreatedAt timestamp
	CreatedAt time.Time `json:"created_at,omitempty"`

	// Metadata
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Backend defines the storage backend interface.
type Backend interface {
	// Name identifies the backend in logs and metrics
	Name() string

	// URI returns the location a path is stored at
	URI(path string) string

	// Put stores data and returns an artifact reference
	Put(ctx context.Context, path string, data io.Reader, contentType string) (*ArtifactRef, error)

	// Get retrieves data for an artifact
	Get(ctx context.Context, ref *ArtifactRef) (io.ReadCloser, error)

	// Exists reports whether path is stored
	Exists(ctx context.Context, path string) (bool, error)

	// Link makes path refer to the already stored target
	Link(ctx context.Context, path, target string) (*ArtifactRef, error)

	// Delete removes an artifact
	Delete(ctx context.Context, ref *ArtifactRef) error

	// List lists artifacts with a prefix
	List(ctx context.Context, prefix string) ([]*ArtifactRef, error)

	// PresignGet generates a presigned URL for download
	PresignGet(ctx context.Context, ref *ArtifactRef, expiry time.Duration) (string, error)
}

// Config holds dataflow service configuration.
type Config struct {
	// Backend type: "local", "memory", "s3", "minio"
	Type string

	// Directory is the output directory of the local backend
	Directory string

	// S3/MinIO configuration
	Endpoint        string
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool

	// PathPrefix is prepended to all object keys
	PathPrefix string

	// Batch groups the files of one write. Bucket backends get a random
	// batch when empty.
	Batch string

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Type:      "local",
		Directory: ".",
	}
}

// Service writes configuration files through a backend. It implements
// nems.Sink.
type Service struct {
	backend Backend
	batch   string
	logger  *slog.Logger
}

// New creates a new dataflow service.
func New(cfg *Config) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var backend Backend
	batch := cfg.Batch
	switch cfg.Type {
	case "local", "":
		local, err := NewLocalBackend(cfg.Directory)
		if err != nil {
			return nil, fmt.Errorf("create local backend: %w", err)
		}
		backend = local
	case "memory":
		backend = NewMemoryBackend()
	case "s3", "minio":
		s3Backend, err := NewS3Backend(&S3Config{
			Endpoint:        cfg.Endpoint,
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			UseSSL:          cfg.UseSSL,
			PathPrefix:      cfg.PathPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("create s3 backend: %w", err)
		}
		backend = s3Backend
		if batch == "" {
			batch = uuid.NewString()
		}
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}

	return NewWithBackend(backend, batch, cfg.Logger), nil
}

// NewWithBackend wraps an existing backend.
func NewWithBackend(backend Backend, batch string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, batch: batch, logger: logger}
}

// Backend returns the underlying backend.
func (s *Service) Backend() Backend { return s.backend }

// Batch returns the batch prefix, or "" when files are stored unprefixed.
func (s *Service) Batch() string { return s.batch }

// FilePath returns the backend path for a file name.
func (s *Service) FilePath(name string) string {
	if s.batch == "" {
		return name
	}
	return path.Join(s.batch, name)
}

// WriteFile stores content under name. An existing file is skipped with a
// warning unless overwrite is set, in which case it is replaced with a
// warning.
func (s *Service) WriteFile(ctx context.Context, name string, content []byte, overwrite bool) (loc string, err error) {
	ctx, span := tracing.Start(ctx, "dataflow.WriteFile",
		attribute.String("file", name),
		attribute.String("backend", s.backend.Name()))
	defer func() { tracing.End(span, err) }()

	p := s.FilePath(name)
	uri := s.backend.URI(p)

	exists, err := s.backend.Exists(ctx, p)
	if err != nil {
		metrics.FilesWrittenTotal.WithLabelValues(s.backend.Name(), "error").Inc()
		return "", fmt.Errorf("check %s: %w", uri, err)
	}
	result := "written"
	if exists {
		if !overwrite {
			s.logger.Warn("skipping existing file", "path", uri, "stale", s.stale(ctx, name, content))
			metrics.FilesWrittenTotal.WithLabelValues(s.backend.Name(), "skipped").Inc()
			return uri, nil
		}
		s.logger.Warn("overwriting existing file", "path", uri)
		result = "overwritten"
	}

	ref, err := s.backend.Put(ctx, p, bytes.NewReader(content), contentType)
	if err != nil {
		metrics.FilesWrittenTotal.WithLabelValues(s.backend.Name(), "error").Inc()
		return "", err
	}
	metrics.FilesWrittenTotal.WithLabelValues(s.backend.Name(), result).Inc()
	metrics.BytesWrittenTotal.WithLabelValues(s.backend.Name()).Add(float64(ref.Size))
	s.logger.Debug("wrote file", "path", ref.URI, "bytes", ref.Size)
	return ref.URI, nil
}

// MirrorFile makes mirror refer to the stored file name. Backends that
// cannot link fall back to a copy, which is logged as a warning.
func (s *Service) MirrorFile(ctx context.Context, name, mirror string, overwrite bool) (loc string, err error) {
	ctx, span := tracing.Start(ctx, "dataflow.MirrorFile",
		attribute.String("file", name),
		attribute.String("mirror", mirror))
	defer func() { tracing.End(span, err) }()

	target := s.FilePath(name)
	p := s.FilePath(mirror)
	uri := s.backend.URI(p)

	exists, err := s.backend.Exists(ctx, p)
	if err != nil {
		return "", fmt.Errorf("check %s: %w", uri, err)
	}
	if exists {
		if !overwrite {
			s.logger.Warn("skipping existing file", "path", uri)
			metrics.FilesWrittenTotal.WithLabelValues(s.backend.Name(), "skipped").Inc()
			return uri, nil
		}
		s.logger.Warn("overwriting existing file", "path", uri)
		if err := s.backend.Delete(ctx, &ArtifactRef{URI: uri}); err != nil {
			return "", fmt.Errorf("remove %s: %w", uri, err)
		}
	}

	ref, err := s.backend.Link(ctx, p, target)
	if err != nil {
		metrics.FilesWrittenTotal.WithLabelValues(s.backend.Name(), "error").Inc()
		return "", err
	}
	if ref.Metadata[MetaLinkMode] == LinkCopy {
		s.logger.Warn("could not create symbolic link, copied instead",
			"path", ref.URI,
			"reason", ref.Metadata["link_error"])
		metrics.MirrorFallbacksTotal.WithLabelValues(s.backend.Name()).Inc()
	}
	metrics.FilesWrittenTotal.WithLabelValues(s.backend.Name(), "written").Inc()
	return ref.URI, nil
}

// ReadFile returns the stored content of name.
func (s *Service) ReadFile(ctx context.Context, name string) ([]byte, error) {
	rc, err := s.backend.Get(ctx, &ArtifactRef{URI: s.backend.URI(s.FilePath(name))})
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// List returns the files of the current batch.
func (s *Service) List(ctx context.Context) ([]*ArtifactRef, error) {
	prefix := ""
	if s.batch != "" {
		prefix = s.batch + "/"
	}
	return s.backend.List(ctx, prefix)
}

// Download is a presigned link to one stored file.
type Download struct {
	Name string
	URL  string
}

// DownloadURLs presigns every file of the current batch.
func (s *Service) DownloadURLs(ctx context.Context, expiry time.Duration) ([]Download, error) {
	refs, err := s.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list batch: %w", err)
	}
	downloads := make([]Download, 0, len(refs))
	for _, ref := range refs {
		name := path.Base(filepath.ToSlash(ref.URI))
		url, err := s.backend.PresignGet(ctx, ref, expiry)
		if err != nil {
			return nil, fmt.Errorf("presign %s: %w", name, err)
		}
		downloads = append(downloads, Download{Name: name, URL: url})
	}
	return downloads, nil
}

// stale reports whether the stored copy of name differs from content.
// Unreadable files count as stale.
func (s *Service) stale(ctx context.Context, name string, content []byte) bool {
	existing, err := s.ReadFile(ctx, name)
	if err != nil {
		s.logger.Debug("could not read existing file", "file", name, "error", err)
		return true
	}
	return !bytes.Equal(existing, content)
}
