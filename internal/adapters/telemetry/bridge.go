package telemetry

import (
	"context"
	"maps"
	"sync"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SourceAttribute names the span attribute recording where a response came from.
const SourceAttribute = "shellcache.source"

// Bridge implements sdktrace.SpanProcessor and tallies finished spans for the
// status endpoint. Keys are the span name, the span name suffixed with
// ".error" for failed spans, and the span name suffixed with the response source.
type Bridge struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewBridge returns a new Bridge.
func NewBridge() *Bridge {
	return &Bridge{
		counts: make(map[string]int64),
	}
}

// OnStart is called when a span starts.
func (b *Bridge) OnStart(_ context.Context, _ sdktrace.ReadWriteSpan) {}

// OnEnd is called when a span ends.
func (b *Bridge) OnEnd(s sdktrace.ReadOnlySpan) {
	if !s.SpanContext().IsValid() {
		return
	}

	name := s.Name()
	var source string
	for _, kv := range s.Attributes() {
		if string(kv.Key) == SourceAttribute {
			source = kv.Value.AsString()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.counts[name]++
	if s.Status().Code == codes.Error {
		b.counts[name+".error"]++
	}
	if source != "" {
		b.counts[name+"."+source]++
	}
}

// Stats returns a snapshot of the span tallies.
func (b *Bridge) Stats() map[string]int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return maps.Clone(b.counts)
}

// ForceFlush does nothing.
func (b *Bridge) ForceFlush(_ context.Context) error {
	return nil
}

// Shutdown does nothing.
func (b *Bridge) Shutdown(_ context.Context) error {
	return nil
}
