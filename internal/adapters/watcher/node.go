package watcher

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/shellcache/internal/adapters/logger" //nolint:depguard // Wired in adapter wiring
	"go.trai.ch/shellcache/internal/core/ports"
)

// NodeID is the unique identifier for the watcher factory Graft node.
const NodeID graft.ID = "adapter.watcher"

// Factory creates a watcher. Watchers hold OS resources, so they are only
// created by commands that watch.
type Factory func() (ports.Watcher, error)

func init() {
	graft.Register(graft.Node[Factory]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (Factory, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return func() (ports.Watcher, error) {
				w, err := NewWatcher(log)
				if err != nil {
					return nil, err
				}
				return w, nil
			}, nil
		},
	})
}
