package worker

import (
	"context"

	"go.trai.ch/shellcache/internal/core/domain"
	"go.trai.ch/shellcache/internal/core/ports"
)

// staleWhileRevalidate answers from the cache when it can and refreshes the
// entry from the network in the background. Without a cached copy it waits for
// the network, and without either it answers 503 Offline.
func (w *Worker) staleWhileRevalidate(ctx context.Context, event *domain.FetchEvent) (*domain.Response, error) {
	req := event.Request

	ctx, span := w.tracer.Start(ctx, "fetch.asset")
	defer span.End()
	span.SetAttribute("http.url", req.URL.String())

	var cached *domain.Response
	cache, err := w.caches.Open(ctx, w.manifest.CacheName)
	if err == nil {
		cached, err = cache.Match(ctx, req)
	}
	if err != nil {
		w.logger.Warn(err.Error())
	}

	fresh := make(chan *domain.Response, 1)
	event.WaitUntil(func(ctx context.Context) error {
		w.revalidate(ctx, cache, req, fresh)
		return nil
	})

	if cached != nil {
		span.SetAttribute("shellcache.source", "cache")
		return cached, nil
	}

	select {
	case resp := <-fresh:
		if resp != nil {
			span.SetAttribute("shellcache.source", "network")
			return resp, nil
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	span.SetAttribute("shellcache.source", "offline")
	return domain.NewOfflineResponse(), nil
}

// revalidate fetches req, hands the result to out and stores a copy in cache
// when the response is OK or opaque. out receives nil when the network is
// unreachable. A nil cache skips the store.
func (w *Worker) revalidate(ctx context.Context, cache ports.Cache, req *domain.Request, out chan<- *domain.Response) {
	ctx, span := w.tracer.Start(ctx, "fetch.revalidate")
	defer span.End()
	span.SetAttribute("http.url", req.URL.String())

	resp, err := w.network.Fetch(ctx, req, ports.FetchOptions{})
	if err != nil {
		span.SetAttribute("shellcache.offline", true)
		out <- nil
		return
	}
	span.SetAttribute("http.status_code", resp.Status)

	if !resp.OK() && resp.Type != domain.ResponseOpaque {
		out <- resp
		return
	}

	copied := resp.Clone()
	out <- resp
	if cache != nil {
		w.attempt(func() error { return cache.Put(ctx, req, copied) })
	}
}
