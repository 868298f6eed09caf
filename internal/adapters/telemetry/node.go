package telemetry

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/shellcache/internal/core/ports"
)

const (
	// TracerNodeID is the unique identifier for the tracer Graft node.
	TracerNodeID graft.ID = "adapter.telemetry"
	// BridgeNodeID is the unique identifier for the span bridge Graft node.
	BridgeNodeID graft.ID = "adapter.telemetry.bridge"
)

func init() {
	graft.Register(graft.Node[*Bridge]{
		ID:        BridgeNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Bridge, error) {
			return NewBridge(), nil
		},
	})

	graft.Register(graft.Node[ports.Tracer]{
		ID:        TracerNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Tracer, error) {
			return NewOTelTracer("shellcache"), nil
		},
	})
}
