package app

import (
	"context"
	"errors"

	"go.trai.ch/shellcache/internal/adapters/cachestore" //nolint:depguard // Wired in app layer
	"go.trai.ch/shellcache/internal/adapters/registry"   //nolint:depguard // Wired in app layer
	"go.trai.ch/shellcache/internal/core/domain"
	"go.trai.ch/zerr"
)

// CleanOptions configures the CleanCaches method.
type CleanOptions struct {
	ConfigOptions
	// All removes the active generation too and forgets the registration.
	All bool
}

// ListCaches reports every cache generation on disk, oldest first.
func (a *App) ListCaches(ctx context.Context, opts ConfigOptions) ([]domain.GenerationInfo, error) {
	caches, registrations, err := a.openStorage(opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = caches.Close()
	}()

	active := activeName(registrations)

	names, err := caches.Keys(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]domain.GenerationInfo, 0, len(names))
	for _, name := range names {
		cache, err := caches.Open(ctx, name)
		if err != nil {
			return nil, err
		}
		keys, err := cache.Keys(ctx)
		if err != nil {
			return nil, err
		}
		infos = append(infos, domain.GenerationInfo{
			Name:    name,
			Entries: len(keys),
			Active:  name == active,
		})
	}
	return infos, nil
}

// CleanCaches deletes every generation other than the active one. With All
// set it deletes everything and forgets the registration. Without All and
// without a recorded active version it deletes nothing.
func (a *App) CleanCaches(ctx context.Context, opts CleanOptions) error {
	caches, registrations, err := a.openStorage(opts.ConfigOptions)
	if err != nil {
		return err
	}
	defer func() {
		_ = caches.Close()
	}()

	active := activeName(registrations)
	if active == "" && !opts.All {
		return domain.ErrNoActiveVersion
	}

	names, err := caches.Keys(ctx)
	if err != nil {
		return err
	}

	var errs error
	for _, name := range names {
		if name == active && !opts.All {
			continue
		}
		if _, err := caches.Delete(ctx, name); err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		a.logger.Info("removed cache " + name)
	}

	if opts.All {
		if err := registrations.Clear(); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

// openStorage opens the cache directory and registration record without
// requiring a usable origin.
func (a *App) openStorage(opts ConfigOptions) (*cachestore.Storage, *registry.Store, error) {
	cfg, err := a.config(opts)
	if err != nil {
		return nil, nil, err
	}

	caches, err := a.caches(cfg.CacheDir, cachestore.WithCompression(cfg.Compress))
	if err != nil {
		return nil, nil, err
	}

	registrations, err := a.registrations(registry.PathFor(cfg.CacheDir))
	if err != nil {
		_ = caches.Close()
		return nil, nil, zerr.With(err, "dir", cfg.CacheDir)
	}
	return caches, registrations, nil
}

func activeName(registrations *registry.Store) string {
	reg, err := registrations.Get()
	if err != nil || reg == nil {
		return ""
	}
	return reg.Active
}
