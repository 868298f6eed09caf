package worker

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/shellcache/internal/adapters/logger"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/shellcache/internal/adapters/telemetry" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/shellcache/internal/core/ports"
)

// NodeID is the unique identifier for the worker factory Graft node.
const NodeID graft.ID = "engine.worker"

func init() {
	graft.Register(graft.Node[*Factory]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			logger.NodeID,
			telemetry.TracerNodeID,
		},
		Run: func(ctx context.Context) (*Factory, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}

			return NewFactory(log, tracer), nil
		},
	})
}
