// Package local stores blobs as files under a root directory.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	svccfg "github.com/MahdiBaghbani/fileshare-go/internal/frameworks/service/cfg"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/blob"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/logutil"
)

func init() {
	blob.Register("local", func(conf map[string]any, log *slog.Logger) (blob.Store, error) {
		var c Config
		if err := svccfg.Decode(conf, &c); err != nil {
			return nil, fmt.Errorf("decode local blob config: %w", err)
		}
		return New(c, log)
	})
}

// Config is the [blob.drivers.local] table.
type Config struct {
	Root string `mapstructure:"root"`
}

func (c *Config) ApplyDefaults() {
	if c.Root == "" {
		c.Root = filepath.Join(".fileshare", "blobs")
	}
}

// Store writes each blob to <root>/<key>.
type Store struct {
	root string
	log  *slog.Logger
}

// New creates the root directory if needed.
func New(c Config, log *slog.Logger) (*Store, error) {
	c.ApplyDefaults()
	if err := os.MkdirAll(c.Root, 0o700); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Store{root: c.Root, log: logutil.NoopIfNil(log)}, nil
}

func (s *Store) Name() string { return "local" }

// path maps a key to a file below root. Keys must be clean relative
// slash-separated paths.
func (s *Store) path(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") || path.Clean(key) != key || key == "." || strings.HasPrefix(key, "../") || key == ".." {
		return "", fmt.Errorf("%w: %q", blob.ErrInvalidKey, key)
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, _ string) error {
	dst, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	n, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if err != nil {
		return fail(fmt.Errorf("write blob: %w", err))
	}
	if size >= 0 && n != size {
		return fail(fmt.Errorf("write blob: got %d bytes, expected %d", n, size))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("sync blob: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename blob: %w", err)
	}
	return nil
}

func (s *Store) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// Ping checks that the root is still a writable directory.
func (s *Store) Ping(context.Context) error {
	f, err := os.CreateTemp(s.root, ".ping-*")
	if err != nil {
		return fmt.Errorf("blob root not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func (s *Store) Close() error { return nil }

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
