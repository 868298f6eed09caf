package ports

import "go.trai.ch/shellcache/internal/core/domain"

// ConfigLoader defines the interface for loading the proxy configuration.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads the configuration file at path. An empty path looks for
	// shellcache.yaml in the working directory and falls back to defaults.
	Load(path string) (*domain.Config, error)
}
