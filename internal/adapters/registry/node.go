package registry

import (
	"context"

	"github.com/grindlemire/graft"
)

// NodeID is the unique identifier for the registration store Graft node.
const NodeID graft.ID = "adapter.registry"

// Factory opens the registration store at a path known only once the
// configuration is loaded.
type Factory func(path string) (*Store, error)

func init() {
	graft.Register(graft.Node[Factory]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (Factory, error) {
			return NewStore, nil
		},
	})
}
