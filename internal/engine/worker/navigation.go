package worker

import (
	"context"

	"go.trai.ch/shellcache/internal/core/domain"
	"go.trai.ch/shellcache/internal/core/ports"
)

// networkFirst serves a navigation from the network and refreshes the cache
// with it. When the network is unreachable it falls back to the cached
// document, then the cached shell, then the offline page.
func (w *Worker) networkFirst(ctx context.Context, event *domain.FetchEvent) (*domain.Response, error) {
	req := event.Request

	ctx, span := w.tracer.Start(ctx, "fetch.navigation")
	defer span.End()
	span.SetAttribute("http.url", req.URL.String())

	// Opened before the fetch: a refresh must not re-create a generation that
	// activation removed in the meantime.
	cache, openErr := w.caches.Open(ctx, w.manifest.CacheName)
	if openErr != nil {
		w.logger.Warn(openErr.Error())
	}

	fresh, err := w.network.Fetch(ctx, req, ports.FetchOptions{})
	if err == nil {
		span.SetAttribute("shellcache.source", "network")
		if cache != nil {
			copied := fresh.Clone()
			event.WaitUntil(func(ctx context.Context) error {
				w.attempt(func() error { return cache.Put(ctx, req, copied) })
				return nil
			})
		}
		return fresh, nil
	}
	w.logger.Warn("navigation offline, serving from cache: " + req.URL.String())

	if cache == nil {
		span.RecordError(openErr)
		span.SetAttribute("shellcache.source", "offline")
		return domain.NewOfflinePage(), nil
	}

	if cached, _ := cache.Match(ctx, req); cached != nil {
		span.SetAttribute("shellcache.source", "cache")
		return cached, nil
	}

	if shellURL, err := w.manifest.ShellURL(); err == nil {
		if shell, _ := cache.Match(ctx, newRequest(shellURL)); shell != nil {
			span.SetAttribute("shellcache.source", "shell")
			return shell, nil
		}
	}

	span.SetAttribute("shellcache.source", "offline")
	return domain.NewOfflinePage(), nil
}
