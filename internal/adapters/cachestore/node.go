package cachestore

import (
	"context"

	"github.com/grindlemire/graft"
)

// NodeID is the unique identifier for the cache storage factory Graft node.
const NodeID graft.ID = "adapter.cachestore"

// Factory opens a Storage persisted under a directory.
type Factory func(dir string, opts ...Option) (*Storage, error)

func init() {
	graft.Register(graft.Node[Factory]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (Factory, error) {
			return NewOS, nil
		},
	})
}
