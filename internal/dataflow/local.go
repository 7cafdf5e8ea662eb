package dataflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalBackend stores files under a directory on the local filesystem.
type LocalBackend struct {
	root string

	// symlink is replaceable so tests can force the copy fallback.
	symlink func(oldname, newname string) error
}

// NewLocalBackend creates the output directory if needed. A leading "~" is
// expanded, and a path naming an existing file resolves to its parent.
func NewLocalBackend(dir string) (*LocalBackend, error) {
	if dir == "" {
		dir = "."
	}
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("expand home: %w", err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &LocalBackend{root: abs, symlink: os.Symlink}, nil
}

// Root returns the absolute output directory.
func (b *LocalBackend) Root() string { return b.root }

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) URI(path string) string {
	return filepath.Join(b.root, filepath.FromSlash(path))
}

func (b *LocalBackend) Put(ctx context.Context, path string, data io.Reader, contentType string) (*ArtifactRef, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}

	full := b.URI(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	// Remove first so an existing symlink is replaced rather than followed.
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("replace %s: %w", full, err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}

	hash := sha256.Sum256(content)
	return &ArtifactRef{
		URI:         full,
		ContentType: contentType,
		Size:        int64(len(content)),
		Checksum:    hex.EncodeToString(hash[:]),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (b *LocalBackend) Get(ctx context.Context, ref *ArtifactRef) (io.ReadCloser, error) {
	f, err := os.Open(ref.URI)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref.URI)
	}
	return f, err
}

func (b *LocalBackend) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Lstat(b.URI(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Link creates a relative symbolic link from path to target, copying target
// when the link cannot be created.
func (b *LocalBackend) Link(ctx context.Context, path, target string) (*ArtifactRef, error) {
	full := b.URI(path)
	targetFull := b.URI(target)

	info, err := os.Stat(targetFull)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, targetFull)
		}
		return nil, err
	}

	rel, err := filepath.Rel(filepath.Dir(full), targetFull)
	if err != nil {
		rel = targetFull
	}
	linkErr := b.symlink(rel, full)
	if linkErr == nil {
		return &ArtifactRef{
			URI:       full,
			Size:      info.Size(),
			CreatedAt: time.Now().UTC(),
			Metadata:  map[string]string{MetaLinkMode: LinkSymlink},
		}, nil
	}

	src, err := os.Open(targetFull)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	ref, err := b.Put(ctx, path, src, "")
	if err != nil {
		return nil, fmt.Errorf("copy after failed link (%v): %w", linkErr, err)
	}
	ref.Metadata = map[string]string{
		MetaLinkMode: LinkCopy,
		"link_error": linkErr.Error(),
	}
	return ref, nil
}

func (b *LocalBackend) Delete(ctx context.Context, ref *ArtifactRef) error {
	if err := os.Remove(ref.URI); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (b *LocalBackend) List(ctx context.Context, prefix string) ([]*ArtifactRef, error) {
	var refs []*ArtifactRef
	err := filepath.WalkDir(b.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.root, p)
		if err != nil {
			return err
		}
		if !strings.HasPrefix(filepath.ToSlash(rel), prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		refs = append(refs, &ArtifactRef{
			URI:       p,
			Size:      info.Size(),
			CreatedAt: info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", b.root, err)
	}
	return refs, nil
}

func (b *LocalBackend) PresignGet(ctx context.Context, ref *ArtifactRef, expiry time.Duration) (string, error) {
	return "", fmt.Errorf("presigned URLs not supported for local backend")
}
