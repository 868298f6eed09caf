package ports

import "go.trai.ch/shellcache/internal/core/domain"

// Worker is a versioned set of lifecycle and fetch handlers run by the host.
//
//go:generate mockgen -source=worker.go -destination=mocks/mock_worker.go -package=mocks
type Worker interface {
	// Install handles the install event of a new version.
	Install(event *domain.InstallEvent)
	// Activate handles the activate event once the version takes over.
	Activate(event *domain.ActivateEvent)
	// Fetch handles a request made by a controlled client.
	Fetch(event *domain.FetchEvent)
}
