package config

// Configfile represents the structure of the shellcache.yaml configuration file.
type Configfile struct {
	// Version names the cache generation. Bumping it re-provisions the shell.
	Version      string   `yaml:"version"`
	Origin       string   `yaml:"origin"`
	Scope        string   `yaml:"scope"`
	Listen       string   `yaml:"listen"`
	CacheDir     string   `yaml:"cacheDir"`
	Precache     []string `yaml:"precache"`
	Shell        string   `yaml:"shell"`
	FetchTimeout string   `yaml:"fetchTimeout"`
	ClientHeader string   `yaml:"clientHeader"`
	Compress     *bool    `yaml:"compress"`
}
