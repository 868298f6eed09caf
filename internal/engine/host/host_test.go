package host_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/shellcache/internal/adapters/cachestore"
	"go.trai.ch/shellcache/internal/adapters/telemetry"
	"go.trai.ch/shellcache/internal/core/domain"
	"go.trai.ch/shellcache/internal/core/ports"
	"go.trai.ch/shellcache/internal/core/ports/mocks"
	"go.trai.ch/shellcache/internal/engine/host"
	"go.trai.ch/shellcache/internal/engine/worker"
	"go.uber.org/mock/gomock"
)

func newRequest(t *testing.T, raw, client string, mode domain.RequestMode) *domain.Request {
	t.Helper()
	req, err := domain.NewRequest(raw)
	require.NoError(t, err)
	req.ClientID = client
	req.Mode = mode
	return req
}

func quietLogger(ctrl *gomock.Controller) *mocks.MockLogger {
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Info(gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any()).AnyTimes()
	log.EXPECT().Debug(gomock.Any()).AnyTimes()
	return log
}

// installs configures w to succeed on install, optionally skipping waiting,
// and to claim clients on activate.
func installs(w *mocks.MockWorker, skipWaiting bool) {
	w.EXPECT().Install(gomock.Any()).Do(func(ev *domain.InstallEvent) {
		if skipWaiting {
			ev.SkipWaiting()
		}
	})
	w.EXPECT().Activate(gomock.Any()).Do(func(ev *domain.ActivateEvent) {
		ev.WaitUntil(func(context.Context) error {
			ev.Claim()
			return nil
		})
	}).MaxTimes(1)
}

func respondsWith(w *mocks.MockWorker, body string) *gomock.Call {
	return w.EXPECT().Fetch(gomock.Any()).Do(func(ev *domain.FetchEvent) {
		_ = ev.RespondWith(func(context.Context) (*domain.Response, error) {
			return &domain.Response{Status: http.StatusOK, Header: http.Header{}, Body: []byte(body)}, nil
		})
	})
}

func TestHost_RegisterActivatesFirstVersion(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := host.New(mocks.NewMockFetcher(ctrl), quietLogger(ctrl))

	w := mocks.NewMockWorker(ctrl)
	installs(w, false)

	require.NoError(t, h.Register(t.Context(), "v1", w))

	require.NotNil(t, h.Active())
	assert.Equal(t, "v1", h.Active().Name)
	assert.Equal(t, host.StateActivated, h.Active().State())
	assert.Nil(t, h.Waiting())
}

func TestHost_InstallFailureKeepsActive(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := host.New(mocks.NewMockFetcher(ctrl), quietLogger(ctrl))

	v1 := mocks.NewMockWorker(ctrl)
	installs(v1, true)
	require.NoError(t, h.Register(t.Context(), "v1", v1))

	v2 := mocks.NewMockWorker(ctrl)
	v2.EXPECT().Install(gomock.Any()).Do(func(ev *domain.InstallEvent) {
		ev.SkipWaiting()
		ev.WaitUntil(func(context.Context) error {
			return domain.ErrBadResponseStatus
		})
	})

	err := h.Register(t.Context(), "v2", v2)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInstallFailed)
	assert.Equal(t, "v1", h.Active().Name)
	assert.Nil(t, h.Waiting())
}

func TestHost_WaitsWhileClientsAreControlled(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := host.New(mocks.NewMockFetcher(ctrl), quietLogger(ctrl))
	ctx := t.Context()

	v1 := mocks.NewMockWorker(ctrl)
	installs(v1, false)
	require.NoError(t, h.Register(ctx, "v1", v1))

	respondsWith(v1, "from v1").Times(2)
	_, err := h.Dispatch(ctx, newRequest(t, "http://localhost:8787/", "tab-1", domain.ModeNavigate))
	require.NoError(t, err)
	assert.Equal(t, 1, h.Status().ControlledClients)

	v2 := mocks.NewMockWorker(ctrl)
	installs(v2, false)
	require.NoError(t, h.Register(ctx, "v2", v2))

	assert.Equal(t, "v1", h.Active().Name)
	require.NotNil(t, h.Waiting())
	assert.Equal(t, "v2", h.Waiting().Name)
	assert.Equal(t, host.StateInstalled, h.Waiting().State())

	resp, err := h.Dispatch(ctx, newRequest(t, "http://localhost:8787/app.js", "tab-1", domain.ModeNoCORS))
	require.NoError(t, err)
	assert.Equal(t, "from v1", string(resp.Body))

	require.NoError(t, h.ActivateWaiting(ctx))
	assert.Equal(t, "v2", h.Active().Name)

	respondsWith(v2, "from v2")
	resp, err = h.Dispatch(ctx, newRequest(t, "http://localhost:8787/app.js", "tab-1", domain.ModeNoCORS))
	require.NoError(t, err)
	assert.Equal(t, "from v2", string(resp.Body))
	require.NoError(t, h.Shutdown(ctx))
}

func TestHost_SkipWaitingReplacesActive(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := host.New(mocks.NewMockFetcher(ctrl), quietLogger(ctrl))
	ctx := t.Context()

	v1 := mocks.NewMockWorker(ctrl)
	installs(v1, true)
	require.NoError(t, h.Register(ctx, "v1", v1))
	old := h.Active()

	respondsWith(v1, "from v1")
	_, err := h.Dispatch(ctx, newRequest(t, "http://localhost:8787/", "tab-1", domain.ModeNavigate))
	require.NoError(t, err)

	v2 := mocks.NewMockWorker(ctrl)
	installs(v2, true)
	require.NoError(t, h.Register(ctx, "v2", v2))

	assert.Equal(t, "v2", h.Active().Name)
	assert.Equal(t, host.StateRedundant, old.State())
	assert.Equal(t, 1, h.Status().ControlledClients)
	require.NoError(t, h.Shutdown(ctx))
}

func TestHost_UnclaimedClientsFallBackToNetwork(t *testing.T) {
	ctrl := gomock.NewController(t)
	network := mocks.NewMockFetcher(ctrl)
	h := host.New(network, quietLogger(ctrl))
	ctx := t.Context()

	v1 := mocks.NewMockWorker(ctrl)
	installs(v1, true)
	require.NoError(t, h.Register(ctx, "v1", v1))

	respondsWith(v1, "from v1")
	_, err := h.Dispatch(ctx, newRequest(t, "http://localhost:8787/", "tab-1", domain.ModeNavigate))
	require.NoError(t, err)

	v2 := mocks.NewMockWorker(ctrl)
	v2.EXPECT().Install(gomock.Any()).Do(func(ev *domain.InstallEvent) { ev.SkipWaiting() })
	v2.EXPECT().Activate(gomock.Any())
	require.NoError(t, h.Register(ctx, "v2", v2))

	req := newRequest(t, "http://localhost:8787/app.js", "tab-1", domain.ModeNoCORS)
	network.EXPECT().Fetch(gomock.Any(), req, gomock.Any()).
		Return(&domain.Response{Status: http.StatusOK, Body: []byte("network")}, nil)

	resp, err := h.Dispatch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "network", string(resp.Body))
	assert.Equal(t, 0, h.Status().ControlledClients)
	require.NoError(t, h.Shutdown(ctx))
}

func TestHost_ForgetsLeastRecentlySeenClients(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := host.New(mocks.NewMockFetcher(ctrl), quietLogger(ctrl)).WithMaxClients(2)
	ctx := t.Context()

	v1 := mocks.NewMockWorker(ctrl)
	installs(v1, true)
	require.NoError(t, h.Register(ctx, "v1", v1))

	respondsWith(v1, "from v1").Times(4)
	for _, tab := range []string{"tab-1", "tab-2", "tab-3"} {
		_, err := h.Dispatch(ctx, newRequest(t, "http://localhost:8787/", tab, domain.ModeNavigate))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, h.Status().KnownClients)
	assert.Equal(t, 2, h.Status().ControlledClients)

	// tab-1 was forgotten and is assigned to the active version again.
	resp, err := h.Dispatch(ctx, newRequest(t, "http://localhost:8787/app.js", "tab-1", domain.ModeNoCORS))
	require.NoError(t, err)
	assert.Equal(t, "from v1", string(resp.Body))
	assert.Equal(t, 2, h.Status().KnownClients)
	require.NoError(t, h.Shutdown(ctx))
}

func TestHost_StateReadableDuringRegistration(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := host.New(mocks.NewMockFetcher(ctrl), quietLogger(ctrl))
	ctx := t.Context()

	v1 := mocks.NewMockWorker(ctrl)
	installs(v1, true)
	require.NoError(t, h.Register(ctx, "v1", v1))
	first := h.Active()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Go(func() {
		for {
			select {
			case <-stop:
				return
			default:
				_ = first.State()
			}
		}
	})

	v2 := mocks.NewMockWorker(ctrl)
	installs(v2, true)
	require.NoError(t, h.Register(ctx, "v2", v2))
	close(stop)
	wg.Wait()

	assert.Equal(t, host.StateRedundant, first.State())
	assert.Equal(t, host.StateActivated, h.Active().State())
}

func TestHost_ActivateErrorStillPromotes(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := host.New(mocks.NewMockFetcher(ctrl), quietLogger(ctrl))

	w := mocks.NewMockWorker(ctrl)
	w.EXPECT().Install(gomock.Any())
	w.EXPECT().Activate(gomock.Any()).Do(func(ev *domain.ActivateEvent) {
		ev.WaitUntil(func(context.Context) error { return domain.ErrCacheDeleteFailed })
	})

	err := h.Register(t.Context(), "v1", w)
	require.ErrorIs(t, err, domain.ErrActivateFailed)
	assert.Equal(t, "v1", h.Active().Name)
}

func TestHost_DispatchWithoutController(t *testing.T) {
	ctrl := gomock.NewController(t)
	network := mocks.NewMockFetcher(ctrl)
	h := host.New(network, quietLogger(ctrl))

	req := newRequest(t, "http://localhost:8787/", "", domain.ModeNavigate)
	network.EXPECT().Fetch(gomock.Any(), req, gomock.Any()).Return(nil, domain.ErrNetworkFailed)

	_, err := h.Dispatch(t.Context(), req)
	require.ErrorIs(t, err, domain.ErrNetworkFailed)
}

func TestHost_DispatchUnhandledGoesToNetwork(t *testing.T) {
	ctrl := gomock.NewController(t)
	network := mocks.NewMockFetcher(ctrl)
	h := host.New(network, quietLogger(ctrl))
	ctx := t.Context()

	w := mocks.NewMockWorker(ctrl)
	installs(w, true)
	w.EXPECT().Fetch(gomock.Any())
	require.NoError(t, h.Register(ctx, "v1", w))

	req := newRequest(t, "http://localhost:8787/upload", "tab-1", domain.ModeSameOrigin)
	req.Method = http.MethodPost
	network.EXPECT().Fetch(gomock.Any(), req, gomock.Any()).
		Return(&domain.Response{Status: http.StatusCreated}, nil)

	resp, err := h.Dispatch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
	require.NoError(t, h.Shutdown(ctx))
}

func TestHost_DispatchNilResponse(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := host.New(mocks.NewMockFetcher(ctrl), quietLogger(ctrl))
	ctx := t.Context()

	w := mocks.NewMockWorker(ctrl)
	installs(w, true)
	w.EXPECT().Fetch(gomock.Any()).Do(func(ev *domain.FetchEvent) {
		_ = ev.RespondWith(func(context.Context) (*domain.Response, error) { return nil, nil })
	})
	require.NoError(t, h.Register(ctx, "v1", w))

	_, err := h.Dispatch(ctx, newRequest(t, "http://localhost:8787/", "", domain.ModeNavigate))
	require.ErrorContains(t, err, domain.ErrNoResponse.Error())
	require.NoError(t, h.Shutdown(ctx))
}

func TestHost_ShutdownWaitsForDeferredWork(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := host.New(mocks.NewMockFetcher(ctrl), quietLogger(ctrl))
	ctx := t.Context()

	release := make(chan struct{})
	finished := make(chan struct{})

	w := mocks.NewMockWorker(ctrl)
	installs(w, true)
	w.EXPECT().Fetch(gomock.Any()).Do(func(ev *domain.FetchEvent) {
		_ = ev.RespondWith(func(context.Context) (*domain.Response, error) {
			return &domain.Response{Status: http.StatusOK}, nil
		})
		ev.WaitUntil(func(context.Context) error {
			<-release
			close(finished)
			return errors.New("late failure")
		})
	})
	require.NoError(t, h.Register(ctx, "v1", w))

	_, err := h.Dispatch(ctx, newRequest(t, "http://localhost:8787/", "", domain.ModeNavigate))
	require.NoError(t, err)

	expired, cancel := context.WithCancel(ctx)
	cancel()
	require.ErrorIs(t, h.Shutdown(expired), context.Canceled)

	close(release)
	require.NoError(t, h.Shutdown(ctx))
	<-finished
}

func TestHost_Restore(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := host.New(mocks.NewMockFetcher(ctrl), quietLogger(ctrl))

	w := mocks.NewMockWorker(ctrl)
	h.Restore("v1", w)

	assert.Equal(t, "v1", h.Active().Name)
	assert.Equal(t, host.StateActivated, h.Active().State())
	assert.Equal(t, domain.HostStatus{Active: "v1"}, h.Status())
}

// heldNetwork answers every request with 200 but holds requests for one path
// until released.
type heldNetwork struct {
	path    string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newHeldNetwork(path string) *heldNetwork {
	return &heldNetwork{
		path:    path,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (n *heldNetwork) Fetch(ctx context.Context, req *domain.Request, _ ports.FetchOptions) (*domain.Response, error) {
	if req.URL.Path == n.path {
		n.once.Do(func() { close(n.entered) })
		select {
		case <-n.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &domain.Response{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": {"text/html"}},
		Body:   []byte("fresh " + req.URL.Path),
		Type:   domain.ResponseBasic,
	}, nil
}

func TestHost_ActivationRemovesGenerationOfInFlightRequests(t *testing.T) {
	tests := []struct {
		name string
		mode domain.RequestMode
		path string
	}{
		{name: "asset", mode: domain.ModeCORS, path: "/app.js"},
		{name: "navigation", mode: domain.ModeNavigate, path: "/albums"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			log := quietLogger(ctrl)
			log.EXPECT().Error(gomock.Any()).AnyTimes()

			caches, err := cachestore.New(memfs.New())
			require.NoError(t, err)

			scope, err := url.Parse("http://localhost:8787/")
			require.NoError(t, err)
			network := newHeldNetwork(tt.path)
			h := host.New(network, log)

			versionFor := func(name string) *worker.Worker {
				manifest := domain.NewManifest(scope).WithCacheName(name)
				manifest.URLs = []string{"./"}
				return worker.New(manifest, caches, network, log, telemetry.NewNoOpTracer())
			}

			require.NoError(t, h.Register(t.Context(), "v1", versionFor("v1")))

			req := newRequest(t, "http://localhost:8787"+tt.path, "tab", tt.mode)
			done := make(chan *domain.Response, 1)
			go func() {
				resp, err := h.Dispatch(t.Context(), req)
				assert.NoError(t, err)
				done <- resp
			}()
			<-network.entered

			require.NoError(t, h.Register(t.Context(), "v2", versionFor("v2")))
			assert.Equal(t, "v2", h.Active().Name)

			close(network.release)
			resp := <-done
			require.NotNil(t, resp)
			assert.Equal(t, "fresh "+tt.path, string(resp.Body))
			require.NoError(t, h.Shutdown(t.Context()))

			keys, err := caches.Keys(t.Context())
			require.NoError(t, err)
			assert.Equal(t, []string{"v2"}, keys)
		})
	}
}
