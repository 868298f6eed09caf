package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/shellcache/internal/adapters/cachestore" //nolint:depguard // Wired in app layer
	"go.trai.ch/shellcache/internal/adapters/config"     //nolint:depguard // Wired in app layer
	"go.trai.ch/shellcache/internal/adapters/fetcher"    //nolint:depguard // Wired in app layer
	"go.trai.ch/shellcache/internal/adapters/logger"     //nolint:depguard // Wired in app layer
	"go.trai.ch/shellcache/internal/adapters/registry"   //nolint:depguard // Wired in app layer
	"go.trai.ch/shellcache/internal/adapters/telemetry"  //nolint:depguard // Wired in app layer
	"go.trai.ch/shellcache/internal/adapters/watcher"    //nolint:depguard // Wired in app layer
	"go.trai.ch/shellcache/internal/core/ports"
	"go.trai.ch/shellcache/internal/engine/worker"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

// LogSettings switches the logger between output modes.
type LogSettings interface {
	SetJSON(enable bool)
	SetVerbose(enable bool)
}

// Components contains all the initialized application components.
type Components struct {
	App         *App
	Logger      ports.Logger
	LogSettings LogSettings
}

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			logger.NodeID,
			worker.NodeID,
			cachestore.NodeID,
			fetcher.NodeID,
			registry.NodeID,
			watcher.NodeID,
			telemetry.BridgeNodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
			logger.ConcreteNodeID,
		},
		Run: runComponentsNode,
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	workers, err := graft.Dep[*worker.Factory](ctx)
	if err != nil {
		return nil, err
	}

	caches, err := graft.Dep[cachestore.Factory](ctx)
	if err != nil {
		return nil, err
	}

	network, err := graft.Dep[fetcher.Factory](ctx)
	if err != nil {
		return nil, err
	}

	registrations, err := graft.Dep[registry.Factory](ctx)
	if err != nil {
		return nil, err
	}

	watchers, err := graft.Dep[watcher.Factory](ctx)
	if err != nil {
		return nil, err
	}

	bridge, err := graft.Dep[*telemetry.Bridge](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, log, workers, caches, network, registrations, watchers, bridge), nil
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	app, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	concrete, err := graft.Dep[*logger.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return &Components{
		App:         app,
		Logger:      log,
		LogSettings: concrete,
	}, nil
}
