package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"go.trai.ch/shellcache/internal/adapters/proxy"     //nolint:depguard // Wired in app layer
	"go.trai.ch/shellcache/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/shellcache/internal/adapters/watcher"   //nolint:depguard // Wired in app layer
	"go.trai.ch/shellcache/internal/core/domain"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// ServeOptions configures the Serve method.
type ServeOptions struct {
	ConfigOptions
	// Watch re-registers the worker when the configuration file changes.
	Watch bool
}

// Serve runs the caching proxy until ctx is done.
//
//nolint:cyclop // orchestration function
func (a *App) Serve(ctx context.Context, opts ServeOptions) error {
	// 1. Load configuration
	cfg, err := a.config(opts.ConfigOptions)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// 2. Bind the listener so the scope carries the real port
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", cfg.Listen)
	if err != nil {
		return errors.Join(domain.ErrServerFailed, zerr.With(err, "listen", cfg.Listen))
	}
	cfg.Listen = ln.Addr().String()

	rt, err := a.open(cfg)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer rt.close()

	// 3. Route spans into the bridge
	tp := telemetry.Setup(a.bridge)
	defer func() {
		_ = tp.Shutdown(context.WithoutCancel(ctx))
	}()

	// 4. Bring up the worker
	current, err := a.restore(ctx, rt)
	if err != nil {
		a.logger.Warn(err.Error())
	}
	if !current {
		if err := a.register(ctx, rt, cfg.Manifest()); err != nil {
			// Serve whatever is active, or pass through to the origin.
			a.logger.Error(err)
		}
	}

	handler := proxy.New(rt.host, rt.caches, a.logger, cfg.ScopeURL(),
		proxy.WithStats(a.bridge.Stats),
		proxy.WithClientHeader(cfg.ClientHeader),
	)
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// 5. Serve, watch and shut down together
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("serving " + cfg.ScopeURL().String() + " from " + cfg.Origin)
		if a.ready != nil {
			a.ready(ln.Addr().String())
		}
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Join(domain.ErrServerFailed, err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn(err.Error())
		}
		return rt.host.Shutdown(shutdownCtx)
	})

	if opts.Watch {
		g.Go(func() error {
			return a.watch(ctx, rt, opts.ConfigOptions)
		})
	}

	return g.Wait()
}

// watch re-registers the worker each time the configuration file settles
// with a different manifest.
func (a *App) watch(ctx context.Context, rt *runtime, opts ConfigOptions) error {
	path := opts.ConfigPath
	if path == "" {
		path = domain.ConfigFileName
	}

	w, err := a.watchers()
	if err != nil {
		return err
	}
	defer func() {
		_ = w.Stop()
	}()

	if err := w.Start(ctx, path); err != nil {
		return err
	}

	var mu sync.Mutex
	applied := rt.cfg.Manifest()
	reload := func([]string) {
		mu.Lock()
		defer mu.Unlock()

		next, err := a.config(opts)
		if err != nil {
			a.logger.Error(err)
			return
		}
		manifest := next.Manifest()
		manifest.Scope = applied.Scope
		if sameManifest(applied, manifest) {
			a.logger.Debug("configuration changed, manifest unchanged")
			return
		}

		a.logger.Info("configuration changed, installing " + manifest.CacheName)
		if err := a.register(ctx, rt, manifest); err != nil {
			a.logger.Error(err)
			return
		}
		applied = manifest
	}

	d := watcher.NewDebouncer(a.debounceWindow, reload)
	defer d.Stop()

	for range w.Events() {
		d.Add(path)
	}
	return nil
}

func sameManifest(a, b *domain.Manifest) bool {
	return a.CacheName == b.CacheName && a.Shell == b.Shell && slices.Equal(a.URLs, b.URLs)
}
