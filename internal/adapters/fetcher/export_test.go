package fetcher

import (
	"net/http"
	"net/url"
)

// NewFetcherWithClient exports newFetcherWithClient for testing.
func NewFetcherWithClient(scope, origin *url.URL, client *http.Client) *Fetcher {
	return newFetcherWithClient(scope, origin, client)
}
