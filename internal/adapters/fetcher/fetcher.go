// Package fetcher implements the Fetcher port over net/http, mapping the
// proxy's scope onto the upstream origin.
package fetcher

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.trai.ch/shellcache/internal/core/domain"
	"go.trai.ch/shellcache/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Fetcher = (*Fetcher)(nil)

// hopHeaders are connection-scoped and never forwarded or stored.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Fetcher implements ports.Fetcher. Requests addressed to the scope are sent
// to the origin; any other URL is fetched as is.
type Fetcher struct {
	scope      *url.URL
	origin     *url.URL
	httpClient *http.Client
}

// New creates a Fetcher with the given client timeout. Zero means no timeout.
func New(scope, origin *url.URL, timeout time.Duration) *Fetcher {
	return newFetcherWithClient(scope, origin, &http.Client{Timeout: timeout})
}

// newFetcherWithClient creates a Fetcher with a custom http client (used for testing).
func newFetcherWithClient(scope, origin *url.URL, client *http.Client) *Fetcher {
	return &Fetcher{
		scope:      scope,
		origin:     origin,
		httpClient: client,
	}
}

// Fetch sends req upstream and buffers the response.
func (f *Fetcher) Fetch(ctx context.Context, req *domain.Request, opts ports.FetchOptions) (*domain.Response, error) {
	target, sameOrigin := f.target(req.URL)

	var body io.Reader = http.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrInvalidURL.Error()), "url", target.String())
	}
	copyHeader(httpReq.Header, req.Header)
	// Let the transport negotiate gzip so stored bodies are always decoded.
	httpReq.Header.Del("Accept-Encoding")
	if opts.Reload {
		httpReq.Header.Set("Cache-Control", "no-cache")
		httpReq.Header.Set("Pragma", "no-cache")
	}

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrNetworkFailed.Error()), "url", target.String())
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrNetworkFailed.Error()), "url", target.String())
	}

	header := make(http.Header, len(resp.Header))
	copyHeader(header, resp.Header)
	header.Del("Content-Length")

	return &domain.Response{
		Status: resp.StatusCode,
		Header: header,
		Body:   data,
		Type:   responseType(sameOrigin, req.Mode),
		URL:    req.URL.String(),
	}, nil
}

// target maps a URL inside the scope onto the origin.
func (f *Fetcher) target(u *url.URL) (*url.URL, bool) {
	if f.scope == nil || f.origin == nil || !domain.SameOrigin(u, f.scope) {
		return u, false
	}

	rel := u.Path
	if strings.HasPrefix(rel, f.scope.Path) {
		rel = rel[len(f.scope.Path):]
	}

	t := *f.origin
	t.Path = strings.TrimSuffix(f.origin.Path, "/") + "/" + strings.TrimPrefix(rel, "/")
	t.RawPath = ""
	t.RawQuery = u.RawQuery
	t.Fragment = ""
	t.RawFragment = ""
	return &t, true
}

func responseType(sameOrigin bool, mode domain.RequestMode) domain.ResponseType {
	switch {
	case sameOrigin:
		return domain.ResponseBasic
	case mode == domain.ModeNoCORS:
		return domain.ResponseOpaque
	default:
		return domain.ResponseCORS
	}
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		dst[k] = append([]string(nil), vv...)
	}
	for _, h := range hopHeaders {
		dst.Del(h)
	}
}
