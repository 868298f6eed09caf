package cachestore

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v5/util"
	"go.trai.ch/shellcache/internal/core/domain"
	"go.trai.ch/shellcache/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Cache = (*generation)(nil)

// generation is a handle on one named cache. Handles are cheap and hold no
// open files, so every operation can use its own.
type generation struct {
	s    *Storage
	name string
	dir  string
}

func newGeneration(s *Storage, name, dir string) *generation {
	return &generation{s: s, name: name, dir: dir}
}

// Match returns the entry stored for req, or nil when there is none.
func (g *generation) Match(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !req.IsGet() {
		return nil, nil
	}

	meta, body, err := g.read(g.entryPath(req.Identity()))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheReadFailed.Error()), "url", req.Identity())
	}
	if meta == nil || !meta.matches(req) {
		return nil, nil
	}

	return &domain.Response{
		Status: meta.Status,
		Header: meta.Header.Clone(),
		Body:   body,
		Type:   meta.Type,
		URL:    meta.RespURL,
	}, nil
}

// Put stores resp under the identity of req, replacing any previous entry.
func (g *generation) Put(ctx context.Context, req *domain.Request, resp *domain.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	identity := req.Identity()

	if !req.IsGet() {
		return zerr.With(zerr.With(domain.ErrUnsupportedMethod, "method", req.Method), "url", identity)
	}
	if resp.Status == http.StatusPartialContent {
		return zerr.With(zerr.With(domain.ErrUncacheableResponse, "status", resp.Status), "url", identity)
	}

	names, ok := varyHeaders(resp.Header)
	if !ok {
		return zerr.With(zerr.With(domain.ErrUncacheableResponse, "vary", "*"), "url", identity)
	}

	var vary map[string]string
	if len(names) > 0 {
		vary = make(map[string]string, len(names))
		for _, name := range names {
			vary[name] = req.Header.Get(name)
		}
	}

	meta := &entryMeta{
		URL:      identity,
		Vary:     vary,
		Status:   resp.Status,
		Header:   resp.Header.Clone(),
		Type:     resp.Type,
		RespURL:  resp.URL,
		StoredAt: g.s.now().UTC(),
	}

	data, err := g.s.codec.encodeEntry(meta, resp.Body)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "url", identity)
	}

	g.s.mu.Lock()
	defer g.s.mu.Unlock()

	if _, err := g.s.fs.Stat(g.s.fs.Join(g.dir, generationFile)); err != nil {
		return zerr.With(zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "cache", g.name), "url", identity)
	}

	if err := writeAtomic(g.s.fs, g.entryPath(identity), data); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "url", identity)
	}
	return nil
}

// Keys lists the stored requests, oldest write first.
func (g *generation) Keys(ctx context.Context) ([]*domain.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := g.s.fs.Join(g.dir, entriesDir)
	infos, err := g.s.fs.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*domain.Request{}, nil
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheReadFailed.Error()), "cache", g.name)
	}

	metas := make([]*entryMeta, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), entryExt) {
			continue
		}
		meta, _, err := g.read(g.s.fs.Join(dir, info.Name()))
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheReadFailed.Error()), "cache", g.name)
		}
		if meta != nil {
			metas = append(metas, meta)
		}
	}

	slices.SortFunc(metas, func(a, b *entryMeta) int {
		if c := a.StoredAt.Compare(b.StoredAt); c != 0 {
			return c
		}
		return strings.Compare(a.URL, b.URL)
	})

	reqs := make([]*domain.Request, 0, len(metas))
	for _, meta := range metas {
		req, err := domain.NewRequest(meta.URL)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheReadFailed.Error()), "cache", g.name)
		}
		for name, value := range meta.Vary {
			req.Header.Set(name, value)
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// Delete removes the entry for req and reports whether it existed.
func (g *generation) Delete(ctx context.Context, req *domain.Request) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !req.IsGet() {
		return false, nil
	}

	name := g.entryPath(req.Identity())
	if err := g.s.fs.Remove(name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, zerr.With(zerr.Wrap(err, domain.ErrCacheDeleteFailed.Error()), "url", req.Identity())
	}
	return true, nil
}

func (g *generation) entryPath(identity string) string {
	return g.s.fs.Join(g.dir, entriesDir, entryKey(identity)+entryExt)
}

// read loads an entry file. A missing file yields a nil meta.
func (g *generation) read(name string) (*entryMeta, []byte, error) {
	data, err := util.ReadFile(g.s.fs, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return g.s.codec.decodeEntry(data)
}
