package domain

import (
	"bytes"
	"net/http"
	"strconv"
)

// ResponseType classifies a response by how it was obtained.
type ResponseType string

const (
	// ResponseBasic is a same-origin response.
	ResponseBasic ResponseType = "basic"
	// ResponseCORS is a cross-origin response fetched in cors mode.
	ResponseCORS ResponseType = "cors"
	// ResponseOpaque is a cross-origin response fetched in no-cors mode.
	ResponseOpaque ResponseType = "opaque"
	// ResponseDefault is a response constructed locally.
	ResponseDefault ResponseType = "default"
)

// OfflineBody is the body of the synthetic asset fallback.
const OfflineBody = "Offline"

// offlinePage is served for navigations when neither the network nor the cache can answer.
const offlinePage = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Offline</title>
</head>
<body>
<h1>Offline</h1>
<p>This page is not available offline yet. Reconnect and reload.</p>
</body>
</html>
`

// Response is a network or cached response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	Type   ResponseType
	URL    string
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status <= 299
}

// Clone returns a deep copy of the response.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	return &Response{
		Status: r.Status,
		Header: r.Header.Clone(),
		Body:   bytes.Clone(r.Body),
		Type:   r.Type,
		URL:    r.URL,
	}
}

// NewOfflineResponse returns the 503 response served for assets that
// are neither cached nor reachable.
func NewOfflineResponse() *Response {
	return newSynthetic(http.StatusServiceUnavailable, "text/plain; charset=utf-8", []byte(OfflineBody))
}

// NewOfflinePage returns the 503 document served for navigations that
// have no network response, no cached copy and no cached shell.
func NewOfflinePage() *Response {
	return newSynthetic(http.StatusServiceUnavailable, "text/html; charset=utf-8", []byte(offlinePage))
}

func newSynthetic(status int, contentType string, body []byte) *Response {
	h := make(http.Header)
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	h.Set("Cache-Control", "no-store")
	return &Response{
		Status: status,
		Header: h,
		Body:   body,
		Type:   ResponseDefault,
	}
}
