// Package config provides the configuration loader for shellcache.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/shellcache/internal/core/domain"
	"go.trai.ch/shellcache/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.ConfigLoader = (*FileConfigLoader)(nil)

// FileConfigLoader implements ports.ConfigLoader using a YAML file.
type FileConfigLoader struct {
	logger ports.Logger
}

// NewLoader creates a FileConfigLoader.
func NewLoader(logger ports.Logger) *FileConfigLoader {
	return &FileConfigLoader{logger: logger}
}

// Load reads the configuration at path. With an empty path it looks for
// shellcache.yaml in the working directory and uses the defaults when that
// file does not exist.
func (l *FileConfigLoader) Load(path string) (*domain.Config, error) {
	if path != "" {
		return Load(path)
	}

	cfg, err := Load(domain.ConfigFileName)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("no " + domain.ConfigFileName + " found, using defaults")
		return domain.DefaultConfig(), nil
	}
	return cfg, err
}

// Load reads a configuration file from the given path and layers it over the defaults.
// A relative cacheDir is resolved against the directory of the file.
func Load(path string) (*domain.Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Join(fs.ErrNotExist, zerr.With(domain.ErrConfigReadFailed, "path", path))
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", path)
	}

	var file Configfile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "path", path)
	}

	cfg := domain.DefaultConfig()
	if file.Origin != "" {
		cfg.Origin = file.Origin
	}
	if file.Scope != "" {
		cfg.ScopePath = file.Scope
	}
	if file.Listen != "" {
		cfg.Listen = file.Listen
	}
	if file.Version != "" {
		cfg.CacheName = file.Version
	}
	if file.Precache != nil {
		cfg.Precache = file.Precache
	}
	if file.Shell != "" {
		cfg.Shell = file.Shell
	}
	if file.ClientHeader != "" {
		cfg.ClientHeader = file.ClientHeader
	}
	if file.Compress != nil {
		cfg.Compress = *file.Compress
	}

	if file.FetchTimeout != "" {
		timeout, err := time.ParseDuration(file.FetchTimeout)
		if err != nil || timeout < 0 {
			return nil, zerr.With(domain.ErrInvalidTimeout, "fetchTimeout", file.FetchTimeout)
		}
		cfg.FetchTimeout = timeout
	}

	dir := filepath.Dir(path)
	if file.CacheDir != "" {
		cfg.CacheDir = file.CacheDir
	}
	if !filepath.IsAbs(cfg.CacheDir) {
		cfg.CacheDir = filepath.Join(dir, cfg.CacheDir)
	}

	return cfg, nil
}
