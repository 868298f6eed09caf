package app_test

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/shellcache/internal/adapters/cachestore"
	"go.trai.ch/shellcache/internal/adapters/fetcher"
	"go.trai.ch/shellcache/internal/adapters/proxy"
	"go.trai.ch/shellcache/internal/adapters/registry"
	"go.trai.ch/shellcache/internal/adapters/telemetry"
	"go.trai.ch/shellcache/internal/app"
	"go.trai.ch/shellcache/internal/core/domain"
	"go.trai.ch/shellcache/internal/core/ports"
	"go.trai.ch/shellcache/internal/core/ports/mocks"
	"go.trai.ch/shellcache/internal/engine/worker"
	"go.uber.org/mock/gomock"
)

// fakeLoader hands out copies of a configuration that tests can swap.
type fakeLoader struct {
	mu  sync.Mutex
	cfg *domain.Config
}

func (l *fakeLoader) Load(string) (*domain.Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := *l.cfg
	c.Precache = slices.Clone(l.cfg.Precache)
	return &c, nil
}

func (l *fakeLoader) update(fn func(*domain.Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.cfg)
}

// fakeWatcher emits events pushed by the test until its context ends.
type fakeWatcher struct {
	events chan ports.WatchEvent
	once   sync.Once
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{events: make(chan ports.WatchEvent, 4)}
}

func (w *fakeWatcher) Start(ctx context.Context, _ string) error {
	go func() {
		<-ctx.Done()
		w.close()
	}()
	return nil
}

func (w *fakeWatcher) Stop() error {
	w.close()
	return nil
}

func (w *fakeWatcher) close() {
	w.once.Do(func() { close(w.events) })
}

func (w *fakeWatcher) Events() iter.Seq[ports.WatchEvent] {
	return func(yield func(ports.WatchEvent) bool) {
		for ev := range w.events {
			if !yield(ev) {
				return
			}
		}
	}
}

// newOrigin serves a tiny app shell.
func newOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html>root</html>")
	})
	mux.HandleFunc("/index.html", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html>shell</html>")
	})
	mux.HandleFunc("/app.js", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/javascript")
		_, _ = io.WriteString(w, "console.log('app')")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

type harness struct {
	app     *app.App
	loader  *fakeLoader
	watcher *fakeWatcher
	cfg     *domain.Config
}

func newHarness(t *testing.T, origin string) *harness {
	t.Helper()

	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any()).AnyTimes()
	log.EXPECT().Info(gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any()).AnyTimes()
	log.EXPECT().Error(gomock.Any()).AnyTimes()

	cfg := domain.DefaultConfig()
	cfg.Origin = origin
	cfg.Listen = freeAddr(t)
	cfg.CacheDir = filepath.Join(t.TempDir(), domain.StateDirName, domain.CachesDirName)
	cfg.Precache = []string{"./", "./index.html"}

	loader := &fakeLoader{cfg: cfg}
	fw := newFakeWatcher()

	a := app.New(
		loader,
		log,
		worker.NewFactory(log, telemetry.NewNoOpTracer()),
		cachestore.NewOS,
		fetcher.New,
		registry.NewStore,
		func() (ports.Watcher, error) { return fw, nil },
		telemetry.NewBridge(),
	).WithDebounceWindow(10 * time.Millisecond)

	return &harness{app: a, loader: loader, watcher: fw, cfg: cfg}
}

// serve runs the proxy in the background and returns its base URL.
func (h *harness) serve(t *testing.T, opts app.ServeOptions) (string, func() error) {
	t.Helper()

	ready := make(chan string, 1)
	h.app.WithReady(func(addr string) { ready <- addr })

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- h.app.Serve(ctx, opts)
	}()

	select {
	case addr := <-ready:
		return "http://" + addr, func() error {
			cancel()
			return <-done
		}
	case err := <-done:
		cancel()
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(10 * time.Second):
		cancel()
		t.Fatal("proxy did not start")
	}
	return "", nil
}

func get(t *testing.T, url string, navigate bool) (int, string) {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set(domain.DefaultClientHeader, "tab-1")
	if navigate {
		req.Header.Set("Sec-Fetch-Mode", "navigate")
		req.Header.Set("Accept", "text/html")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestApp_Install(t *testing.T) {
	origin := newOrigin(t)
	h := newHarness(t, origin.URL)
	ctx := t.Context()

	stale, err := cachestore.NewOS(h.cfg.CacheDir)
	require.NoError(t, err)
	_, err = stale.Open(ctx, "photobackup-cache-v0")
	require.NoError(t, err)
	require.NoError(t, stale.Close())

	require.NoError(t, h.app.Install(ctx, app.ConfigOptions{}))

	infos, err := h.app.ListCaches(ctx, app.ConfigOptions{})
	require.NoError(t, err)
	assert.Equal(t, []domain.GenerationInfo{
		{Name: domain.DefaultCacheName, Entries: 2, Active: true},
	}, infos)

	assert.FileExists(t, registry.PathFor(h.cfg.CacheDir))
}

func TestApp_InstallFailure(t *testing.T) {
	origin := newOrigin(t)
	h := newHarness(t, origin.URL)
	h.loader.update(func(c *domain.Config) {
		c.Precache = append(c.Precache, "./missing.png")
	})

	err := h.app.Install(t.Context(), app.ConfigOptions{})
	require.ErrorIs(t, err, domain.ErrInstallFailed)
	assert.NoFileExists(t, registry.PathFor(h.cfg.CacheDir))

	infos, err := h.app.ListCaches(t.Context(), app.ConfigOptions{})
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestApp_InstallRequiresOrigin(t *testing.T) {
	h := newHarness(t, "")
	err := h.app.Install(t.Context(), app.ConfigOptions{})
	require.ErrorIs(t, err, domain.ErrMissingOrigin)
}

func TestApp_CleanCaches(t *testing.T) {
	origin := newOrigin(t)
	h := newHarness(t, origin.URL)
	ctx := t.Context()

	require.NoError(t, h.app.Install(ctx, app.ConfigOptions{}))

	extra, err := cachestore.NewOS(h.cfg.CacheDir)
	require.NoError(t, err)
	_, err = extra.Open(ctx, "scratch")
	require.NoError(t, err)
	require.NoError(t, extra.Close())

	require.NoError(t, h.app.CleanCaches(ctx, app.CleanOptions{}))
	infos, err := h.app.ListCaches(ctx, app.ConfigOptions{})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, domain.DefaultCacheName, infos[0].Name)

	require.NoError(t, h.app.CleanCaches(ctx, app.CleanOptions{All: true}))
	infos, err = h.app.ListCaches(ctx, app.ConfigOptions{})
	require.NoError(t, err)
	assert.Empty(t, infos)
	assert.NoFileExists(t, registry.PathFor(h.cfg.CacheDir))
}

func TestApp_CleanCachesWithoutActiveVersion(t *testing.T) {
	origin := newOrigin(t)
	h := newHarness(t, origin.URL)
	ctx := t.Context()

	scratch, err := cachestore.NewOS(h.cfg.CacheDir)
	require.NoError(t, err)
	_, err = scratch.Open(ctx, "scratch")
	require.NoError(t, err)
	require.NoError(t, scratch.Close())

	err = h.app.CleanCaches(ctx, app.CleanOptions{})
	require.ErrorIs(t, err, domain.ErrNoActiveVersion)

	infos, err := h.app.ListCaches(ctx, app.ConfigOptions{})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "scratch", infos[0].Name)

	require.NoError(t, h.app.CleanCaches(ctx, app.CleanOptions{All: true}))
	infos, err = h.app.ListCaches(ctx, app.ConfigOptions{})
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestApp_ServeOnlineThenOffline(t *testing.T) {
	origin := newOrigin(t)
	h := newHarness(t, origin.URL)

	base, stop := h.serve(t, app.ServeOptions{})

	status, body := get(t, base+"/", true)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "<html>root</html>", body)

	status, body = get(t, base+"/app.js", false)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "console.log('app')", body)

	origin.Close()

	status, body = get(t, base+"/", true)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "<html>root</html>", body)

	status, body = get(t, base+"/albums/7", true)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "<html>shell</html>", body)

	status, body = get(t, base+"/never-seen.css", false)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, domain.OfflineBody, body)

	resp, err := http.Get(base + domain.StatusPath) //nolint:noctx // test request
	require.NoError(t, err)
	var doc proxy.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	resp.Body.Close()
	assert.Equal(t, domain.DefaultCacheName, doc.Active)
	assert.Equal(t, []string{domain.DefaultCacheName}, doc.Generations)
	assert.Equal(t, 1, doc.ControlledClients)

	require.NoError(t, stop())
}

func TestApp_ServeRestoresRecordedVersion(t *testing.T) {
	origin := newOrigin(t)
	h := newHarness(t, origin.URL)

	require.NoError(t, h.app.Install(t.Context(), app.ConfigOptions{}))
	origin.Close()

	base, stop := h.serve(t, app.ServeOptions{})

	status, body := get(t, base+"/", true)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "<html>root</html>", body)

	require.NoError(t, stop())
}

func TestApp_ServeWithoutAnyVersion(t *testing.T) {
	origin := newOrigin(t)
	h := newHarness(t, origin.URL)
	origin.Close()

	base, stop := h.serve(t, app.ServeOptions{})

	status, _ := get(t, base+"/", true)
	assert.Equal(t, http.StatusBadGateway, status)

	require.NoError(t, stop())
}

func TestApp_ServeWatchInstallsNewVersion(t *testing.T) {
	origin := newOrigin(t)
	h := newHarness(t, origin.URL)

	base, stop := h.serve(t, app.ServeOptions{Watch: true})

	h.loader.update(func(c *domain.Config) { c.CacheName = "photobackup-cache-v2" })
	h.watcher.events <- ports.WatchEvent{Path: domain.ConfigFileName, Operation: ports.OpWrite}

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + domain.StatusPath) //nolint:noctx // test request
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var doc proxy.Status
		if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
			return false
		}
		return doc.Active == "photobackup-cache-v2" && slices.Equal(doc.Generations, []string{"photobackup-cache-v2"})
	}, 10*time.Second, 20*time.Millisecond)

	require.NoError(t, stop())

	data, err := os.ReadFile(registry.PathFor(h.cfg.CacheDir))
	require.NoError(t, err)
	assert.Contains(t, string(data), "photobackup-cache-v2")
}
