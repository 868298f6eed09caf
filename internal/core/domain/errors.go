package domain

import "go.trai.ch/zerr"

var (
	// ErrInstallFailed is returned when a worker version could not provision its cache generation.
	ErrInstallFailed = zerr.New("install failed")

	// ErrActivateFailed is returned when the cleanup of stale cache generations failed.
	ErrActivateFailed = zerr.New("activate failed")

	// ErrBadResponseStatus is returned when a precache request resolves with a non-OK status.
	ErrBadResponseStatus = zerr.New("bad response status")

	// ErrNetworkFailed is returned when a request could not reach the origin at all.
	ErrNetworkFailed = zerr.New("network request failed")

	// ErrInvalidURL is returned when a manifest entry or request URL cannot be parsed.
	ErrInvalidURL = zerr.New("invalid url")

	// ErrCacheOpenFailed is returned when a cache generation cannot be opened or created.
	ErrCacheOpenFailed = zerr.New("failed to open cache")

	// ErrCacheReadFailed is returned when a cache entry or generation listing cannot be read.
	ErrCacheReadFailed = zerr.New("failed to read cache")

	// ErrCacheWriteFailed is returned when a cache entry cannot be stored.
	ErrCacheWriteFailed = zerr.New("failed to write cache")

	// ErrCacheDeleteFailed is returned when a cache entry or generation cannot be removed.
	ErrCacheDeleteFailed = zerr.New("failed to delete cache")

	// ErrUnsupportedMethod is returned when a non-GET request is stored in a cache.
	ErrUnsupportedMethod = zerr.New("only GET requests can be cached")

	// ErrUncacheableResponse is returned for partial responses and responses varying on every header.
	ErrUncacheableResponse = zerr.New("response cannot be cached")

	// ErrAlreadyResponded is returned when RespondWith is called twice for one fetch event.
	ErrAlreadyResponded = zerr.New("fetch event already has a response")

	// ErrNoResponse is returned when a fetch handler resolved without producing a response.
	ErrNoResponse = zerr.New("fetch handler produced no response")

	// ErrNoActiveVersion is returned when an operation needs an active worker version and none exists.
	ErrNoActiveVersion = zerr.New("no active worker version")

	// ErrConfigReadFailed is returned when the configuration file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the configuration file is not valid YAML.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrMissingOrigin is returned when no upstream origin was configured.
	ErrMissingOrigin = zerr.New("missing origin, set 'origin' in shellcache.yaml or pass --origin")

	// ErrInvalidOrigin is returned when the configured origin is not an absolute http(s) URL.
	ErrInvalidOrigin = zerr.New("origin must be an absolute http or https url")

	// ErrInvalidTimeout is returned when fetchTimeout is not a valid duration.
	ErrInvalidTimeout = zerr.New("invalid fetch timeout")

	// ErrEmptyCacheName is returned when the configured version is blank.
	ErrEmptyCacheName = zerr.New("cache name must not be empty")

	// ErrRegistrationReadFailed is returned when the persisted registration cannot be read.
	ErrRegistrationReadFailed = zerr.New("failed to read registration")

	// ErrRegistrationWriteFailed is returned when the registration cannot be persisted.
	ErrRegistrationWriteFailed = zerr.New("failed to write registration")

	// ErrServerFailed is returned when the proxy server stops with an error.
	ErrServerFailed = zerr.New("proxy server failed")
)
