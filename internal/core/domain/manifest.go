package domain

import (
	"net/url"
	"slices"

	"go.trai.ch/zerr"
)

// DefaultCacheName is the cache generation written by the bundled app shell version.
const DefaultCacheName = "photobackup-cache-v1"

// DefaultShell is the document served for navigations when offline and uncached.
const DefaultShell = "./index.html"

// DefaultPrecacheURLs lists the app shell and icon assets fetched on install.
var DefaultPrecacheURLs = []string{
	"./",
	"./index.html",
	"./manifest.webmanifest",
	"./icons/favicon-32.png",
	"./icons/icon-192.png",
	"./icons/icon-512.png",
	"./icons/icon-512-maskable.png",
	"./icons/apple-touch-icon.png",
	"./icons/icon.svg",
	"./icons/icon-maskable.svg",
}

// Manifest describes one worker version: its cache generation and the
// assets it provisions.
type Manifest struct {
	CacheName string
	Scope     *url.URL
	URLs      []string
	Shell     string
}

// NewManifest builds a manifest for scope using the bundled defaults.
func NewManifest(scope *url.URL) *Manifest {
	return &Manifest{
		CacheName: DefaultCacheName,
		Scope:     scope,
		URLs:      slices.Clone(DefaultPrecacheURLs),
		Shell:     DefaultShell,
	}
}

// Resolve returns the precache entries as absolute URLs in manifest order.
func (m *Manifest) Resolve() ([]*url.URL, error) {
	out := make([]*url.URL, 0, len(m.URLs))
	for _, raw := range m.URLs {
		u, err := m.resolve(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// ShellURL returns the absolute URL of the shell document.
func (m *Manifest) ShellURL() (*url.URL, error) {
	return m.resolve(m.Shell)
}

// WithCacheName returns a copy of the manifest bound to another generation.
func (m *Manifest) WithCacheName(name string) *Manifest {
	c := *m
	c.CacheName = name
	c.URLs = slices.Clone(m.URLs)
	return &c
}

func (m *Manifest) resolve(raw string) (*url.URL, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, ErrInvalidURL.Error()), "url", raw)
	}
	if m.Scope == nil {
		if !ref.IsAbs() {
			return nil, zerr.With(ErrInvalidURL, "url", raw)
		}
		return ref, nil
	}
	return m.Scope.ResolveReference(ref), nil
}
