// Package proxy exposes the host as an HTTP reverse proxy. Every request
// becomes a fetch event; the worker's answer is written back to the client.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.trai.ch/shellcache/internal/core/domain"
	"go.trai.ch/shellcache/internal/core/ports"
)

// DefaultMaxBodyBytes caps request bodies forwarded upstream.
const DefaultMaxBodyBytes = 32 << 20

// Dispatcher routes intercepted requests to the controlling worker version.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *domain.Request) (*domain.Response, error)
	Status() domain.HostStatus
}

// Status is the document served on the status path.
type Status struct {
	domain.HostStatus
	Spans map[string]int64 `json:"spans,omitempty"`
}

// Handler implements http.Handler.
type Handler struct {
	host         Dispatcher
	caches       ports.CacheStorage
	stats        func() map[string]int64
	logger       ports.Logger
	scope        *url.URL
	clientHeader string
	maxBodyBytes int64
}

// Option configures a Handler.
type Option func(*Handler)

// WithStats adds span tallies to the status document.
func WithStats(stats func() map[string]int64) Option {
	return func(h *Handler) {
		h.stats = stats
	}
}

// WithMaxBodyBytes overrides the request body limit.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		h.maxBodyBytes = n
	}
}

// WithClientHeader sets the request header that identifies a client.
func WithClientHeader(name string) Option {
	return func(h *Handler) {
		h.clientHeader = name
	}
}

// New creates a Handler serving scope.
func New(host Dispatcher, caches ports.CacheStorage, logger ports.Logger, scope *url.URL, opts ...Option) *Handler {
	h := &Handler{
		host:         host,
		caches:       caches,
		logger:       logger,
		scope:        scope,
		clientHeader: domain.DefaultClientHeader,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == domain.StatusPath {
		h.serveStatus(w, r)
		return
	}

	start := time.Now()

	req, err := h.convert(w, r)
	if err != nil {
		h.logger.Warn(err.Error())
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	resp, err := h.host.Dispatch(r.Context(), req)
	if err != nil {
		h.logger.Warn(err.Error())
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	status := writeResponse(w, r, resp)
	h.logger.Debug(fmt.Sprintf("%s %s %d %s", r.Method, r.URL.RequestURI(), status, time.Since(start).Round(time.Millisecond)))
}

// convert builds a domain request addressed to the proxy's scope origin.
func (h *Handler) convert(w http.ResponseWriter, r *http.Request) (*domain.Request, error) {
	u := &url.URL{Scheme: h.scope.Scheme, Host: h.scope.Host}
	ref, err := url.ParseRequestURI(r.URL.RequestURI())
	if err != nil {
		return nil, err
	}
	u.Path = ref.Path
	u.RawPath = ref.RawPath
	u.RawQuery = ref.RawQuery

	header := r.Header.Clone()
	header.Del(h.clientHeader)

	req := &domain.Request{
		Method:   r.Method,
		URL:      u,
		Header:   header,
		Mode:     domain.ParseRequestMode(r.Header.Get("Sec-Fetch-Mode")),
		ClientID: r.Header.Get(h.clientHeader),
	}

	if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodHead {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
		if err != nil {
			return nil, err
		}
		req.Body = body
	}
	return req, nil
}

// writeResponse copies resp to w and returns the status written.
func writeResponse(w http.ResponseWriter, r *http.Request, resp *domain.Response) int {
	status := resp.Status
	if status < http.StatusContinue {
		status = http.StatusBadGateway
	}

	header := w.Header()
	for k, vv := range resp.Header {
		header[k] = append([]string(nil), vv...)
	}
	header.Del("Transfer-Encoding")
	header.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.WriteHeader(status)

	if r.Method != http.MethodHead {
		_, _ = w.Write(resp.Body)
	}
	return status
}

func (h *Handler) serveStatus(w http.ResponseWriter, r *http.Request) {
	status := Status{HostStatus: h.host.Status()}

	names, err := h.caches.Keys(r.Context())
	if err != nil {
		h.logger.Warn(err.Error())
	}
	status.Generations = names

	if h.stats != nil {
		status.Spans = h.stats()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(status); err != nil {
		h.logger.Warn(err.Error())
	}
}
