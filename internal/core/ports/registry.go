package ports

import "go.trai.ch/shellcache/internal/core/domain"

// RegistrationStore persists which worker version is active across restarts.
//
//go:generate mockgen -source=registry.go -destination=mocks/mock_registry.go -package=mocks
type RegistrationStore interface {
	// Get returns the stored registration, or nil if none was recorded.
	Get() (*domain.Registration, error)
	// Put records the registration.
	Put(reg domain.Registration) error
	// Clear removes the stored registration.
	Clear() error
}
