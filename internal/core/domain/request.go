package domain

import (
	"net/http"
	"net/url"
	"strings"

	"go.trai.ch/zerr"
)

// RequestMode mirrors the fetch mode a browser attaches to a request.
type RequestMode string

const (
	// ModeNavigate marks a top-level document load.
	ModeNavigate RequestMode = "navigate"
	// ModeSameOrigin marks a request restricted to the page's origin.
	ModeSameOrigin RequestMode = "same-origin"
	// ModeNoCORS marks a cross-origin request whose response is opaque.
	ModeNoCORS RequestMode = "no-cors"
	// ModeCORS marks a cross-origin request subject to CORS checks.
	ModeCORS RequestMode = "cors"
)

// ParseRequestMode maps a Sec-Fetch-Mode header value to a RequestMode.
// Unknown or empty values yield ModeNoCORS, the default for subresources.
func ParseRequestMode(s string) RequestMode {
	switch RequestMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeNavigate:
		return ModeNavigate
	case ModeSameOrigin:
		return ModeSameOrigin
	case ModeCORS:
		return ModeCORS
	default:
		return ModeNoCORS
	}
}

// Request is an intercepted outgoing request.
type Request struct {
	Method   string
	URL      *url.URL
	Header   http.Header
	Mode     RequestMode
	ClientID string
	Body     []byte
}

// NewRequest creates a GET request for the given absolute URL.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() {
		return nil, zerr.With(ErrInvalidURL, "url", rawURL)
	}
	return &Request{
		Method: http.MethodGet,
		URL:    u,
		Header: make(http.Header),
		Mode:   ModeNoCORS,
	}, nil
}

// IsGet reports whether the request uses the GET method.
func (r *Request) IsGet() bool {
	return r.Method == "" || strings.EqualFold(r.Method, http.MethodGet)
}

// IsNavigation reports whether the request loads a document.
// Either the mode is navigate or the Accept header asks for HTML.
func (r *Request) IsNavigation() bool {
	if r.Mode == ModeNavigate {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// Identity returns the cache key of the request: its URL without the fragment.
func (r *Request) Identity() string {
	return Identity(r.URL)
}

// WithURL returns a shallow copy of the request pointed at another URL.
// The header is copied so the new request can be modified independently.
func (r *Request) WithURL(u *url.URL) *Request {
	c := *r
	c.URL = u
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	return &c
}

// Identity strips the fragment from u and returns its string form.
func Identity(u *url.URL) string {
	if u == nil {
		return ""
	}
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}

// SameOrigin reports whether a and b share scheme and host.
func SameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}
