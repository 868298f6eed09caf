package ports

import (
	"context"

	"go.trai.ch/shellcache/internal/core/domain"
)

// FetchOptions tunes a single network fetch.
type FetchOptions struct {
	// Reload bypasses intermediate HTTP caches.
	Reload bool
}

// Fetcher performs network requests.
//
//go:generate mockgen -source=fetcher.go -destination=mocks/mock_fetcher.go -package=mocks
type Fetcher interface {
	// Fetch sends req to the network. HTTP error statuses resolve normally;
	// an error is returned only when no response was received.
	Fetch(ctx context.Context, req *domain.Request, opts FetchOptions) (*domain.Response, error)
}
