// Package app implements the application layer for shellcache.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.trai.ch/shellcache/internal/adapters/cachestore" //nolint:depguard // Wired in app layer
	"go.trai.ch/shellcache/internal/adapters/fetcher"    //nolint:depguard // Wired in app layer
	"go.trai.ch/shellcache/internal/adapters/registry"   //nolint:depguard // Wired in app layer
	"go.trai.ch/shellcache/internal/adapters/telemetry"  //nolint:depguard // Wired in app layer
	"go.trai.ch/shellcache/internal/adapters/watcher"    //nolint:depguard // Wired in app layer
	"go.trai.ch/shellcache/internal/core/domain"
	"go.trai.ch/shellcache/internal/core/ports"
	"go.trai.ch/shellcache/internal/engine/host"
	"go.trai.ch/shellcache/internal/engine/worker"
	"go.trai.ch/zerr"
)

// App represents the main application logic.
type App struct {
	configLoader  ports.ConfigLoader
	logger        ports.Logger
	workers       *worker.Factory
	caches        cachestore.Factory
	network       fetcher.Factory
	registrations registry.Factory
	watchers      watcher.Factory
	bridge        *telemetry.Bridge

	now            func() time.Time
	debounceWindow time.Duration
	ready          func(addr string)
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	logger ports.Logger,
	workers *worker.Factory,
	caches cachestore.Factory,
	network fetcher.Factory,
	registrations registry.Factory,
	watchers watcher.Factory,
	bridge *telemetry.Bridge,
) *App {
	return &App{
		configLoader:   loader,
		logger:         logger,
		workers:        workers,
		caches:         caches,
		network:        network,
		registrations:  registrations,
		watchers:       watchers,
		bridge:         bridge,
		now:            time.Now,
		debounceWindow: watcher.DefaultDebounceWindow,
	}
}

// WithClock overrides the clock used for registration timestamps.
func (a *App) WithClock(now func() time.Time) *App {
	a.now = now
	return a
}

// WithDebounceWindow overrides the quiet period before a config edit is applied.
func (a *App) WithDebounceWindow(d time.Duration) *App {
	a.debounceWindow = d
	return a
}

// WithReady registers a callback invoked with the bound address once the proxy listens.
func (a *App) WithReady(fn func(addr string)) *App {
	a.ready = fn
	return a
}

// ConfigOptions selects and overrides the configuration.
type ConfigOptions struct {
	// ConfigPath is the configuration file. Empty means ./shellcache.yaml.
	ConfigPath string
	// Origin overrides the upstream origin.
	Origin string
	// Listen overrides the proxy listen address.
	Listen string
}

// config loads the configuration and applies command line overrides.
func (a *App) config(opts ConfigOptions) (*domain.Config, error) {
	cfg, err := a.configLoader.Load(opts.ConfigPath)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}
	if opts.Origin != "" {
		cfg.Origin = opts.Origin
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}
	return cfg, nil
}

// runtime holds the adapters bound to one configuration.
type runtime struct {
	cfg           *domain.Config
	caches        *cachestore.Storage
	network       *fetcher.Fetcher
	registrations *registry.Store
	host          *host.Host
}

func (a *App) open(cfg *domain.Config) (*runtime, error) {
	origin, err := cfg.OriginURL()
	if err != nil {
		return nil, err
	}

	caches, err := a.caches(cfg.CacheDir, cachestore.WithCompression(cfg.Compress))
	if err != nil {
		return nil, err
	}

	registrations, err := a.registrations(registry.PathFor(cfg.CacheDir))
	if err != nil {
		_ = caches.Close()
		return nil, err
	}

	network := a.network(cfg.ScopeURL(), origin, cfg.FetchTimeout)
	return &runtime{
		cfg:           cfg,
		caches:        caches,
		network:       network,
		registrations: registrations,
		host:          host.New(network, a.logger),
	}, nil
}

func (r *runtime) close() {
	_ = r.caches.Close()
}

// workerFor builds the worker version described by manifest.
func (a *App) workerFor(rt *runtime, manifest *domain.Manifest) *worker.Worker {
	return a.workers.New(manifest, rt.caches, rt.network)
}

// restore resumes the recorded version when its cache generation survived.
// It reports whether that version matches the configured one.
func (a *App) restore(ctx context.Context, rt *runtime) (bool, error) {
	reg, err := rt.registrations.Get()
	if err != nil || reg == nil {
		return false, err
	}

	exists, err := rt.caches.Has(ctx, reg.Active)
	if err != nil {
		return false, err
	}
	if !exists {
		a.logger.Warn(fmt.Sprintf("cache %s of the recorded version is gone", reg.Active))
		return false, nil
	}

	rt.host.Restore(reg.Active, a.workerFor(rt, rt.cfg.Manifest().WithCacheName(reg.Active)))
	a.logger.Debug("restored version " + reg.Active)
	return reg.Active == rt.cfg.CacheName, nil
}

// register installs manifest as a new version and records it once active.
// A version whose activation reported an error is still recorded.
func (a *App) register(ctx context.Context, rt *runtime, manifest *domain.Manifest) error {
	err := rt.host.Register(ctx, manifest.CacheName, a.workerFor(rt, manifest))
	if errors.Is(err, domain.ErrInstallFailed) {
		return err
	}

	active := rt.host.Active()
	if active == nil || active.Name != manifest.CacheName {
		return err
	}
	if putErr := rt.registrations.Put(domain.Registration{
		Active:      active.Name,
		ActivatedAt: a.now().UTC(),
	}); putErr != nil {
		return errors.Join(err, putErr)
	}
	return err
}

// Install precaches the configured version and activates it, removing every
// other cache generation.
func (a *App) Install(ctx context.Context, opts ConfigOptions) error {
	cfg, err := a.config(opts)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	rt, err := a.open(cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	tp := telemetry.Setup(a.bridge)
	defer func() {
		_ = tp.Shutdown(context.WithoutCancel(ctx))
	}()

	if err := a.register(ctx, rt, cfg.Manifest()); err != nil {
		return err
	}
	a.logger.Info("installed " + cfg.CacheName)
	return nil
}
