package dataflow

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryBackend provides an in-memory storage backend for testing and
// rendering without side effects.
type MemoryBackend struct {
	mu        sync.RWMutex
	artifacts map[string]*memoryArtifact
}

type memoryArtifact struct {
	ref  *ArtifactRef
	data []byte
}

// NewMemoryBackend creates a new in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		artifacts: make(map[string]*memoryArtifact),
	}
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) URI(path string) string {
	return "memory://" + path
}

func (m *MemoryBackend) Put(ctx context.Context, path string, data io.Reader, contentType string) (*ArtifactRef, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	hash := sha256.Sum256(content)
	ref := &ArtifactRef{
		URI:         m.URI(path),
		ContentType: contentType,
		Size:        int64(len(content)),
		Checksum:    hex.EncodeToString(hash[:]),
		CreatedAt:   time.Now().UTC(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[path] = &memoryArtifact{ref: ref, data: content}
	return copyRef(ref), nil
}

func (m *MemoryBackend) Get(ctx context.Context, ref *ArtifactRef) (io.ReadCloser, error) {
	path := strings.TrimPrefix(ref.URI, "memory://")

	m.mu.RLock()
	defer m.mu.RUnlock()
	artifact, ok := m.artifacts[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref.URI)
	}
	return io.NopCloser(bytes.NewReader(artifact.data)), nil
}

func (m *MemoryBackend) Exists(ctx context.Context, path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.artifacts[path]
	return ok, nil
}

// Link stores path as an alias sharing target's content.
func (m *MemoryBackend) Link(ctx context.Context, path, target string) (*ArtifactRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	artifact, ok := m.artifacts[target]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, m.URI(target))
	}
	ref := copyRef(artifact.ref)
	ref.URI = m.URI(path)
	ref.Metadata = map[string]string{MetaLinkMode: LinkAlias}
	m.artifacts[path] = &memoryArtifact{ref: ref, data: artifact.data}
	return copyRef(ref), nil
}

func (m *MemoryBackend) Delete(ctx context.Context, ref *ArtifactRef) error {
	path := strings.TrimPrefix(ref.URI, "memory://")

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.artifacts, path)
	return nil
}

func (m *MemoryBackend) List(ctx context.Context, prefix string) ([]*ArtifactRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var refs []*ArtifactRef
	for path, artifact := range m.artifacts {
		if strings.HasPrefix(path, prefix) {
			refs = append(refs, copyRef(artifact.ref))
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].URI < refs[j].URI })
	return refs, nil
}

func (m *MemoryBackend) PresignGet(ctx context.Context, ref *ArtifactRef, expiry time.Duration) (string, error) {
	return "", fmt.Errorf("presigned URLs not supported for memory backend")
}

func copyRef(ref *ArtifactRef) *ArtifactRef {
	c := *ref
	if ref.Metadata != nil {
		c.Metadata = make(map[string]string, len(ref.Metadata))
		for k, v := range ref.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
