// Package cachestore implements named cache generations on a billy filesystem.
package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"go.trai.ch/shellcache/internal/core/domain"
	"go.trai.ch/shellcache/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	generationFile = "generation.json"
	entriesDir     = "entries"
	entryExt       = ".entry"
)

var _ ports.CacheStorage = (*Storage)(nil)

type generationMeta struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Storage implements ports.CacheStorage. Each generation is a directory
// holding a generation.json and one file per entry.
type Storage struct {
	fs    billy.Filesystem
	codec *codec
	now   func() time.Time

	mu sync.Mutex
}

// Option configures a Storage.
type Option func(*options)

type options struct {
	compress bool
	now      func() time.Time
}

// WithCompression stores entry bodies zstd-compressed when enabled.
func WithCompression(enabled bool) Option {
	return func(o *options) {
		o.compress = enabled
	}
}

// WithClock overrides the clock used for creation and storage timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New creates a Storage rooted at the given filesystem.
func New(fsys billy.Filesystem, opts ...Option) (*Storage, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	c, err := newCodec(o.compress)
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrCacheOpenFailed.Error())
	}

	return &Storage{
		fs:    fsys,
		codec: c,
		now:   o.now,
	}, nil
}

// NewOS creates a Storage persisted under dir, creating it if needed.
func NewOS(dir string, opts ...Option) (*Storage, error) {
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheOpenFailed.Error()), "dir", dir)
	}
	return New(osfs.New(dir), opts...)
}

// Close releases the compression codec.
func (s *Storage) Close() error {
	s.codec.close()
	return nil
}

// Open returns the generation called name, creating it when absent.
func (s *Storage) Open(ctx context.Context, name string) (ports.Cache, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := generationDir(name)
	meta, err := s.readGeneration(dir)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheOpenFailed.Error()), "cache", name)
	}
	if meta != nil {
		if meta.Name != name {
			return nil, zerr.With(zerr.With(domain.ErrCacheOpenFailed, "cache", name), "conflict", meta.Name)
		}
		return newGeneration(s, name, dir), nil
	}

	if err := s.fs.MkdirAll(s.fs.Join(dir, entriesDir), domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheOpenFailed.Error()), "cache", name)
	}

	data, err := json.Marshal(generationMeta{Name: name, CreatedAt: s.now().UTC()})
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrCacheOpenFailed.Error())
	}
	if err := writeAtomic(s.fs, s.fs.Join(dir, generationFile), data); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheOpenFailed.Error()), "cache", name)
	}

	return newGeneration(s, name, dir), nil
}

// Has reports whether a generation called name exists.
func (s *Storage) Has(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.readGeneration(generationDir(name))
	if err != nil {
		return false, zerr.With(zerr.Wrap(err, domain.ErrCacheReadFailed.Error()), "cache", name)
	}
	return meta != nil && meta.Name == name, nil
}

// Keys lists generation names, oldest first.
func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	infos, err := s.fs.ReadDir("/")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, zerr.Wrap(err, domain.ErrCacheReadFailed.Error())
	}

	gens := make([]generationMeta, 0, len(infos))
	for _, info := range infos {
		if !info.IsDir() {
			continue
		}
		meta, err := s.readGeneration(info.Name())
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheReadFailed.Error()), "dir", info.Name())
		}
		if meta != nil {
			gens = append(gens, *meta)
		}
	}

	slices.SortFunc(gens, func(a, b generationMeta) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})

	names := make([]string, len(gens))
	for i, g := range gens {
		names[i] = g.Name
	}
	return names, nil
}

// Delete removes the generation called name and reports whether it existed.
func (s *Storage) Delete(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := generationDir(name)
	meta, err := s.readGeneration(dir)
	if err != nil {
		return false, zerr.With(zerr.Wrap(err, domain.ErrCacheDeleteFailed.Error()), "cache", name)
	}
	if meta == nil || meta.Name != name {
		return false, nil
	}

	if err := util.RemoveAll(s.fs, dir); err != nil {
		return false, zerr.With(zerr.Wrap(err, domain.ErrCacheDeleteFailed.Error()), "cache", name)
	}
	return true, nil
}

// readGeneration returns the metadata of dir, or nil if it is not a generation.
func (s *Storage) readGeneration(dir string) (*generationMeta, error) {
	data, err := util.ReadFile(s.fs, s.fs.Join(dir, generationFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var meta generationMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// generationDir maps a generation name to its directory.
func generationDir(name string) string {
	return "g" + strconv.FormatUint(xxhash.Sum64String(name), 16)
}

// writeAtomic writes data to a temporary file next to name and renames it into place.
func writeAtomic(fsys billy.Filesystem, name string, data []byte) error {
	tmp, err := fsys.TempFile(path.Dir(name), path.Base(name)+".tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fsys.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = fsys.Remove(tmpName)
		return err
	}

	if err := fsys.Rename(tmpName, name); err != nil {
		_ = fsys.Remove(tmpName)
		return err
	}
	return nil
}
