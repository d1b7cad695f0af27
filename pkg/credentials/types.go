package credentials

import "time"

// File is the on-disk shape of credentials.toml. Keys are indexed by the
// service id they authenticate against.
type File struct {
	Version  int              `toml:"version"`
	Services map[string]Entry `toml:"services"`
}

// Entry is one stored key.
type Entry struct {
	APIKey  string    `toml:"api_key"`
	Updated time.Time `toml:"updated"`
}
