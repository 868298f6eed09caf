package logger

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/shellcache/internal/core/ports"
)

const (
	// NodeID is the unique identifier for the logger Graft node.
	NodeID graft.ID = "adapter.logger"
	// ConcreteNodeID exposes the concrete *Logger so the CLI can switch modes.
	ConcreteNodeID graft.ID = "adapter.logger.concrete"
)

func init() {
	graft.Register(graft.Node[*Logger]{
		ID:        ConcreteNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Logger, error) {
			return New(), nil
		},
	})

	graft.Register(graft.Node[ports.Logger]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{ConcreteNodeID},
		Run: func(ctx context.Context) (ports.Logger, error) {
			l, err := graft.Dep[*Logger](ctx)
			if err != nil {
				return nil, err
			}
			return l, nil
		},
	})
}
