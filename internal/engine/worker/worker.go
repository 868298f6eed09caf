// Package worker implements the offline caching policy of the app shell:
// precache on install, drop stale generations on activate, network-first
// navigations and stale-while-revalidate assets.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.trai.ch/shellcache/internal/core/domain"
	"go.trai.ch/shellcache/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

var _ ports.Worker = (*Worker)(nil)

// Worker is one version of the caching policy, bound to a single cache generation.
type Worker struct {
	manifest *domain.Manifest
	caches   ports.CacheStorage
	network  ports.Fetcher
	logger   ports.Logger
	tracer   ports.Tracer
}

// New creates a worker for manifest.
func New(
	manifest *domain.Manifest,
	caches ports.CacheStorage,
	network ports.Fetcher,
	logger ports.Logger,
	tracer ports.Tracer,
) *Worker {
	return &Worker{
		manifest: manifest,
		caches:   caches,
		network:  network,
		logger:   logger,
		tracer:   tracer,
	}
}

// CacheName returns the generation this worker reads and writes.
func (w *Worker) CacheName() string {
	return w.manifest.CacheName
}

// Install provisions the cache generation and asks to skip waiting.
func (w *Worker) Install(event *domain.InstallEvent) {
	event.SkipWaiting()
	event.WaitUntil(w.precache)
}

// Activate deletes every other generation, then claims all clients.
func (w *Worker) Activate(event *domain.ActivateEvent) {
	event.WaitUntil(func(ctx context.Context) error {
		if err := w.dropStale(ctx); err != nil {
			return err
		}
		event.Claim()
		return nil
	})
}

// Fetch routes GET requests to the navigation or asset policy.
// Other methods are left to the network.
func (w *Worker) Fetch(event *domain.FetchEvent) {
	req := event.Request
	if !req.IsGet() {
		return
	}

	var respond domain.Responder
	if req.IsNavigation() {
		respond = func(ctx context.Context) (*domain.Response, error) {
			return w.networkFirst(ctx, event)
		}
	} else {
		respond = func(ctx context.Context) (*domain.Response, error) {
			return w.staleWhileRevalidate(ctx, event)
		}
	}

	if err := event.RespondWith(respond); err != nil {
		w.logger.Error(err)
	}
}

// precache fetches every manifest URL with reload semantics and stores the
// responses only after all of them came back OK.
func (w *Worker) precache(ctx context.Context) (err error) {
	name := w.manifest.CacheName

	ctx, span := w.tracer.Start(ctx, "install")
	defer span.End()
	span.SetAttribute("cache.name", name)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
	}()

	urls, err := w.manifest.Resolve()
	if err != nil {
		return zerr.Wrap(err, domain.ErrInstallFailed.Error())
	}

	reqs := make([]*domain.Request, len(urls))
	resps := make([]*domain.Response, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		reqs[i] = newRequest(u)
		g.Go(func() error {
			resp, err := w.network.Fetch(gctx, reqs[i], ports.FetchOptions{Reload: true})
			if err != nil {
				return zerr.With(err, "url", u.String())
			}
			if !resp.OK() {
				return zerr.With(zerr.With(domain.ErrBadResponseStatus, "url", u.String()), "status", resp.Status)
			}
			resps[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrInstallFailed.Error()), "cache", name)
	}

	cache, err := w.caches.Open(ctx, name)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrInstallFailed.Error()), "cache", name)
	}
	for i, req := range reqs {
		if err := cache.Put(ctx, req, resps[i]); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrInstallFailed.Error()), "cache", name)
		}
	}

	span.SetAttribute("cache.entries", len(reqs))
	w.logger.Info(fmt.Sprintf("precached %d assets into %s", len(reqs), name))
	return nil
}

// dropStale deletes every generation whose name differs from the current one.
func (w *Worker) dropStale(ctx context.Context) (err error) {
	name := w.manifest.CacheName

	ctx, span := w.tracer.Start(ctx, "activate")
	defer span.End()
	span.SetAttribute("cache.name", name)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
	}()

	keys, err := w.caches.Keys(ctx)
	if err != nil {
		return zerr.Wrap(err, domain.ErrActivateFailed.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		if key == name {
			continue
		}
		g.Go(func() error {
			if _, err := w.caches.Delete(gctx, key); err != nil {
				return zerr.With(err, "cache", key)
			}
			w.logger.Info("removed stale cache " + key)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return zerr.Wrap(err, domain.ErrActivateFailed.Error())
	}
	return nil
}

// newRequest builds a bare GET request the way the worker issues its own fetches.
func newRequest(u *url.URL) *domain.Request {
	return &domain.Request{
		Method: http.MethodGet,
		URL:    u,
		Header: make(http.Header),
		Mode:   domain.ModeCORS,
	}
}

// attempt runs fn and logs instead of returning its error.
func (w *Worker) attempt(fn func() error) {
	if err := fn(); err != nil {
		w.logger.Warn(err.Error())
	}
}
