package domain

import (
	"net"
	"net/url"
	"strings"
	"time"

	"go.trai.ch/zerr"
)

// Config is the resolved runtime configuration.
type Config struct {
	CacheName    string
	Origin       string
	ScopePath    string
	Listen       string
	CacheDir     string
	Precache     []string
	Shell        string
	FetchTimeout time.Duration
	ClientHeader string
	Compress     bool
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		CacheName:    DefaultCacheName,
		ScopePath:    "/",
		Listen:       DefaultListenAddr,
		CacheDir:     DefaultCachesPath(),
		Precache:     append([]string(nil), DefaultPrecacheURLs...),
		Shell:        DefaultShell,
		ClientHeader: DefaultClientHeader,
		Compress:     true,
	}
}

// Validate checks the fields a proxy cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.CacheName) == "" {
		return ErrEmptyCacheName
	}
	if c.Origin == "" {
		return ErrMissingOrigin
	}
	if _, err := c.OriginURL(); err != nil {
		return err
	}
	return nil
}

// OriginURL parses the upstream origin.
func (c *Config) OriginURL() (*url.URL, error) {
	u, err := url.Parse(c.Origin)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, ErrInvalidOrigin.Error()), "origin", c.Origin)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, zerr.With(ErrInvalidOrigin, "origin", c.Origin)
	}
	return u, nil
}

// ScopeURL returns the absolute URL clients use to reach the proxy.
// An empty listen host maps to localhost.
func (c *Config) ScopeURL() *url.URL {
	host := c.Listen
	if h, port, err := net.SplitHostPort(c.Listen); err == nil && h == "" {
		host = net.JoinHostPort("localhost", port)
	}

	path := c.ScopePath
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}

	return &url.URL{Scheme: "http", Host: host, Path: path}
}

// Manifest returns the precache manifest for this configuration.
func (c *Config) Manifest() *Manifest {
	return &Manifest{
		CacheName: c.CacheName,
		Scope:     c.ScopeURL(),
		URLs:      append([]string(nil), c.Precache...),
		Shell:     c.Shell,
	}
}

// Registration is the persisted record of the active worker version.
type Registration struct {
	Active      string    `json:"active"`
	ActivatedAt time.Time `json:"activatedAt"`
}

// HostStatus is a snapshot of the registration state.
type HostStatus struct {
	Active            string   `json:"active,omitempty"`
	Waiting           string   `json:"waiting,omitempty"`
	ControlledClients int      `json:"controlledClients"`
	KnownClients      int      `json:"knownClients"`
	Generations       []string `json:"generations,omitempty"`
}

// GenerationInfo summarises one cache generation on disk.
type GenerationInfo struct {
	Name    string
	Entries int
	Active  bool
}
