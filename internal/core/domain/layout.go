package domain

import "path/filepath"

const (
	// StateDirName is the name of the internal state directory.
	StateDirName = ".shellcache"

	// CachesDirName is the name of the directory holding cache generations.
	CachesDirName = "caches"

	// RegistrationFileName is the name of the file recording the active worker version.
	RegistrationFileName = "registration.json"

	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "shellcache.yaml"

	// StatusPath is the proxy path that reports the registration state.
	StatusPath = "/__shellcache/status"

	// DefaultListenAddr is the address the proxy listens on when none is configured.
	DefaultListenAddr = "127.0.0.1:8787"

	// DefaultClientHeader is the request header carrying the client identifier.
	DefaultClientHeader = "X-Shellcache-Client"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultCachesPath returns the default directory for cache generations.
// It joins .shellcache and caches.
func DefaultCachesPath() string {
	return filepath.Join(StateDirName, CachesDirName)
}

// DefaultRegistrationPath returns the default path of the registration record.
// It joins .shellcache and registration.json.
func DefaultRegistrationPath() string {
	return filepath.Join(StateDirName, RegistrationFileName)
}
