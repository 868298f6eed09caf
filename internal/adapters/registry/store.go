// Package registry persists the active worker registration across restarts.
package registry

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.trai.ch/shellcache/internal/core/domain"
	"go.trai.ch/shellcache/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.RegistrationStore = (*Store)(nil)

// Store implements ports.RegistrationStore using a flat JSON file.
type Store struct {
	path string
	mu   sync.RWMutex
	reg  *domain.Registration
}

// NewStore creates a RegistrationStore backed by the file at the given path.
func NewStore(path string) (*Store, error) {
	s := &Store{path: filepath.Clean(path)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// PathFor returns the registration file that belongs to a caches directory.
func PathFor(cacheDir string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(cacheDir)), domain.RegistrationFileName)
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	//nolint:gosec // Path is cleaned and provided by trusted caller
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return zerr.With(zerr.Wrap(err, domain.ErrRegistrationReadFailed.Error()), "path", s.path)
	}

	if len(data) == 0 {
		return nil
	}

	var reg domain.Registration
	if err := json.Unmarshal(data, &reg); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrRegistrationReadFailed.Error()), "path", s.path)
	}
	s.reg = &reg
	return nil
}

func (s *Store) save() error {
	s.mu.RLock()
	reg := s.reg
	s.mu.RUnlock()

	if reg == nil {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return zerr.With(zerr.Wrap(err, domain.ErrRegistrationWriteFailed.Error()), "path", s.path)
		}
		return nil
	}

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return zerr.Wrap(err, domain.ErrRegistrationWriteFailed.Error())
	}

	if err := os.MkdirAll(filepath.Dir(s.path), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrRegistrationWriteFailed.Error()), "path", s.path)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrRegistrationWriteFailed.Error()), "path", s.path)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return zerr.With(zerr.Wrap(err, domain.ErrRegistrationWriteFailed.Error()), "path", s.path)
	}
	return nil
}

// Get returns the stored registration, or nil if none was recorded.
func (s *Store) Get() (*domain.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.reg == nil {
		return nil, nil
	}
	reg := *s.reg
	return &reg, nil
}

// Put records reg and writes it to disk.
func (s *Store) Put(reg domain.Registration) error {
	s.mu.Lock()
	s.reg = &reg
	s.mu.Unlock()

	return s.save()
}

// Clear forgets the registration and removes the file.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.reg = nil
	s.mu.Unlock()

	return s.save()
}
