// Package host runs worker versions the way a browser runs service workers:
// it installs and activates versions, tracks which version controls each
// client and dispatches intercepted requests.
package host

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.trai.ch/shellcache/internal/core/domain"
	"go.trai.ch/shellcache/internal/core/ports"
	"go.trai.ch/zerr"
)

// State is the lifecycle stage of a worker version.
type State string

const (
	// StateInstalling is set while the install event is pending.
	StateInstalling State = "installing"
	// StateInstalled is set once installed and waiting to activate.
	StateInstalled State = "installed"
	// StateActivating is set while the activate event is pending.
	StateActivating State = "activating"
	// StateActivated is set once the version handles fetches.
	StateActivated State = "activated"
	// StateRedundant is set when install failed or a newer version replaced it.
	StateRedundant State = "redundant"
)

// Version is one registered worker.
type Version struct {
	Name   string
	worker ports.Worker
	state  atomic.Value
}

func newVersion(name string, w ports.Worker, state State) *Version {
	v := &Version{Name: name, worker: w}
	v.state.Store(state)
	return v
}

// State returns the lifecycle stage of the version.
func (v *Version) State() State {
	return v.state.Load().(State) //nolint:forcetypeassert // only States are stored
}

// Host owns the registration: at most one active and one waiting version.
type Host struct {
	network ports.Fetcher
	logger  ports.Logger

	mu      sync.Mutex
	active  *Version
	waiting *Version
	clients *clients

	pending sync.WaitGroup
}

// New creates a Host. Requests nobody responds to go to network.
func New(network ports.Fetcher, logger ports.Logger) *Host {
	return &Host{
		network: network,
		logger:  logger,
		clients: newClients(DefaultMaxClients),
	}
}

// WithMaxClients bounds the number of clients remembered. The least
// recently seen client is forgotten first and is treated as new on its next
// request.
func (h *Host) WithMaxClients(n int) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients = newClients(n)
	return h
}

// Register installs w as a new version called name. A failed install leaves
// the current active version in place. Once installed the version activates
// right away if it asked to skip waiting or nothing else is active;
// otherwise it waits for ActivateWaiting.
func (h *Host) Register(ctx context.Context, name string, w ports.Worker) error {
	v := newVersion(name, w, StateInstalling)

	event := domain.NewInstallEvent(ctx)
	w.Install(event)
	if err := event.Wait(); err != nil {
		v.state.Store(StateRedundant)
		return errors.Join(domain.ErrInstallFailed, zerr.With(err, "version", name))
	}

	h.mu.Lock()
	v.state.Store(StateInstalled)
	if h.waiting != nil {
		h.waiting.state.Store(StateRedundant)
	}
	h.waiting = v
	promote := event.SkipWaitingRequested() || h.active == nil || h.controlledLocked(h.active) == 0
	h.mu.Unlock()

	if !promote {
		h.logger.Info("version " + name + " installed, waiting for clients of " + h.Status().Active + " to close")
		return nil
	}
	return h.ActivateWaiting(ctx)
}

// Restore makes w the active version without running install or activate.
// It is used to resume a version whose cache survived a restart.
func (h *Host) Restore(name string, w ports.Worker) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.active != nil {
		h.active.state.Store(StateRedundant)
	}
	h.active = newVersion(name, w, StateActivated)
}

// ActivateWaiting promotes the waiting version, if any, and runs its activate
// event. The version becomes active even when activation reports an error.
func (h *Host) ActivateWaiting(ctx context.Context) error {
	h.mu.Lock()
	v := h.waiting
	if v == nil {
		h.mu.Unlock()
		return nil
	}
	h.waiting = nil
	v.state.Store(StateActivating)
	h.mu.Unlock()

	event := domain.NewActivateEvent(ctx)
	v.worker.Activate(event)
	err := event.Wait()

	h.mu.Lock()
	prev := h.active
	if prev != nil {
		prev.state.Store(StateRedundant)
	}
	v.state.Store(StateActivated)
	h.active = v
	claimed := event.ClaimRequested()
	h.clients.reassign(func(c *Version) *Version {
		switch {
		case claimed:
			return v
		case c == prev:
			return nil
		}
		return c
	})
	h.mu.Unlock()

	h.logger.Info("version " + v.Name + " activated")
	if err != nil {
		return errors.Join(domain.ErrActivateFailed, zerr.With(err, "version", v.Name))
	}
	return nil
}

// Dispatch routes req through the version controlling its client. Requests
// from uncontrolled clients, and requests the worker leaves alone, go to
// the network.
func (h *Host) Dispatch(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	v := h.controllerFor(req)
	if v == nil {
		return h.network.Fetch(ctx, req, ports.FetchOptions{})
	}

	event := domain.NewFetchEvent(ctx, req)
	v.worker.Fetch(event)

	respond := event.Responder()
	if respond == nil {
		h.settle(event)
		return h.network.Fetch(ctx, req, ports.FetchOptions{})
	}

	resp, err := respond(ctx)
	h.settle(event)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, zerr.With(domain.ErrNoResponse, "url", req.URL.String())
	}
	return resp, nil
}

// Shutdown waits for outstanding fetch event work or until ctx is done.
func (h *Host) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active returns the active version, or nil.
func (h *Host) Active() *Version {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// Waiting returns the installed version waiting to activate, or nil.
func (h *Host) Waiting() *Version {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waiting
}

// Status returns a snapshot of the registration.
func (h *Host) Status() domain.HostStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	var s domain.HostStatus
	if h.active != nil {
		s.Active = h.active.Name
		s.ControlledClients = h.controlledLocked(h.active)
	}
	s.KnownClients = h.clients.len()
	if h.waiting != nil {
		s.Waiting = h.waiting.Name
	}
	return s
}

// settle drains the deferred work of event in the background.
func (h *Host) settle(event *domain.FetchEvent) {
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		if err := event.Wait(); err != nil {
			h.logger.Warn(err.Error())
		}
	}()
}

// controllerFor returns the version controlling the client of req, or nil
// for passthrough. Navigations and unseen clients are assigned to the active
// version; a client whose controller went away stays uncontrolled until it
// navigates again.
func (h *Host) controllerFor(req *domain.Request) *Version {
	h.mu.Lock()
	defer h.mu.Unlock()

	if req.ClientID == "" {
		return h.active
	}
	v, seen := h.clients.get(req.ClientID)
	if !seen || req.IsNavigation() {
		h.clients.set(req.ClientID, h.active)
		return h.active
	}
	return v
}

func (h *Host) controlledLocked(v *Version) int {
	return h.clients.controlled(v)
}
