package worker

import (
	"go.trai.ch/shellcache/internal/core/domain"
	"go.trai.ch/shellcache/internal/core/ports"
)

// Factory builds workers that share the process-wide logger and tracer.
type Factory struct {
	logger ports.Logger
	tracer ports.Tracer
}

// NewFactory creates a Factory.
func NewFactory(logger ports.Logger, tracer ports.Tracer) *Factory {
	return &Factory{logger: logger, tracer: tracer}
}

// New creates a worker for manifest backed by caches and network.
func (f *Factory) New(manifest *domain.Manifest, caches ports.CacheStorage, network ports.Fetcher) *Worker {
	return New(manifest, caches, network, f.logger, f.tracer)
}
