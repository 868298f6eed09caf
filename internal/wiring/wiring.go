// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/shellcache/internal/adapters/cachestore"
	_ "go.trai.ch/shellcache/internal/adapters/config"
	_ "go.trai.ch/shellcache/internal/adapters/fetcher"
	_ "go.trai.ch/shellcache/internal/adapters/logger"
	_ "go.trai.ch/shellcache/internal/adapters/registry"
	_ "go.trai.ch/shellcache/internal/adapters/telemetry"
	_ "go.trai.ch/shellcache/internal/adapters/watcher"
	// Register app and engine nodes.
	_ "go.trai.ch/shellcache/internal/app"
	_ "go.trai.ch/shellcache/internal/engine/worker"
)
