package ports

import (
	"context"

	"go.trai.ch/shellcache/internal/core/domain"
)

//go:generate mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks

// CacheStorage holds named cache generations.
type CacheStorage interface {
	// Open returns the generation with the given name, creating it if absent.
	Open(ctx context.Context, name string) (Cache, error)
	// Has reports whether a generation with the given name exists.
	Has(ctx context.Context, name string) (bool, error)
	// Keys lists generation names in creation order.
	Keys(ctx context.Context) ([]string, error)
	// Delete removes a generation and reports whether it existed.
	Delete(ctx context.Context, name string) (bool, error)
}

// Cache is a single generation mapping request identities to responses.
type Cache interface {
	// Match returns the stored response for req, or nil when there is none.
	Match(ctx context.Context, req *domain.Request) (*domain.Response, error)
	// Put stores resp under the identity of req, replacing any previous entry.
	Put(ctx context.Context, req *domain.Request, resp *domain.Response) error
	// Keys lists the stored requests in insertion order.
	Keys(ctx context.Context) ([]*domain.Request, error)
	// Delete removes the entry for req and reports whether it existed.
	Delete(ctx context.Context, req *domain.Request) (bool, error)
}
