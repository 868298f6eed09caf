package domain

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Responder produces the response for an intercepted request.
type Responder func(ctx context.Context) (*Response, error)

// ExtendableEvent lets a handler extend the lifetime of an event with
// deferred work. The host waits for all registered work via Wait.
type ExtendableEvent struct {
	ctx   context.Context
	group errgroup.Group
}

// Context returns the context the deferred work runs under.
func (e *ExtendableEvent) Context() context.Context {
	return e.ctx
}

// WaitUntil registers fn as work the event must finish before it settles.
func (e *ExtendableEvent) WaitUntil(fn func(ctx context.Context) error) {
	ctx := e.ctx
	e.group.Go(func() error {
		return fn(ctx)
	})
}

// Wait blocks until all registered work finished and returns the first error.
func (e *ExtendableEvent) Wait() error {
	return e.group.Wait()
}

// InstallEvent is dispatched once to a new worker version.
type InstallEvent struct {
	ExtendableEvent
	skipWaiting atomic.Bool
}

// NewInstallEvent creates an install event bound to ctx.
func NewInstallEvent(ctx context.Context) *InstallEvent {
	return &InstallEvent{ExtendableEvent: ExtendableEvent{ctx: ctx}}
}

// SkipWaiting asks the host to activate the version as soon as it is installed.
func (e *InstallEvent) SkipWaiting() {
	e.skipWaiting.Store(true)
}

// SkipWaitingRequested reports whether SkipWaiting was called.
func (e *InstallEvent) SkipWaitingRequested() bool {
	return e.skipWaiting.Load()
}

// ActivateEvent is dispatched when a version becomes the active one.
type ActivateEvent struct {
	ExtendableEvent
	claim atomic.Bool
}

// NewActivateEvent creates an activate event bound to ctx.
func NewActivateEvent(ctx context.Context) *ActivateEvent {
	return &ActivateEvent{ExtendableEvent: ExtendableEvent{ctx: ctx}}
}

// Claim asks the host to take control of every open client.
func (e *ActivateEvent) Claim() {
	e.claim.Store(true)
}

// ClaimRequested reports whether Claim was called.
func (e *ActivateEvent) ClaimRequested() bool {
	return e.claim.Load()
}

// FetchEvent is dispatched for every request made by a controlled client.
// Deferred work runs detached from the request's cancellation.
type FetchEvent struct {
	ExtendableEvent
	Request *Request

	mu        sync.Mutex
	responder Responder
}

// NewFetchEvent creates a fetch event for req.
func NewFetchEvent(ctx context.Context, req *Request) *FetchEvent {
	return &FetchEvent{
		ExtendableEvent: ExtendableEvent{ctx: context.WithoutCancel(ctx)},
		Request:         req,
	}
}

// RespondWith takes over the response for the request.
func (e *FetchEvent) RespondWith(fn Responder) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.responder != nil {
		return ErrAlreadyResponded
	}
	e.responder = fn
	return nil
}

// Responder returns the registered responder, or nil when the handler
// left the request to the default network path.
func (e *FetchEvent) Responder() Responder {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.responder
}
