package fetcher

import (
	"context"
	"net/url"
	"time"

	"github.com/grindlemire/graft"
)

// NodeID is the unique identifier for the fetcher factory Graft node.
const NodeID graft.ID = "adapter.fetcher"

// Factory builds a Fetcher once the scope and origin are known.
type Factory func(scope, origin *url.URL, timeout time.Duration) *Fetcher

func init() {
	graft.Register(graft.Node[Factory]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (Factory, error) {
			return New, nil
		},
	})
}
