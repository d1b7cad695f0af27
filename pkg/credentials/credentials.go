// Package credentials stores backend API keys outside config.toml, in
// credentials.toml next to it, and resolves them for the services that need
// one.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/proofpilot/pkg/dotdir"
	"github.com/papercomputeco/proofpilot/pkg/llm/modelparams"
	"github.com/papercomputeco/proofpilot/pkg/utils"
)

const (
	fileName       = "credentials.toml"
	currentVersion = 1
)

// ErrUnsupported is returned when storing a key for a service that takes none.
var ErrUnsupported = errors.New("service does not take an API key")

var envVars = map[modelparams.ServiceID]string{
	modelparams.OpenAI: "OPENAI_API_KEY",
	modelparams.Grazie: "GRAZIE_API_KEY",
}

// Store reads and writes credentials.toml.
type Store struct {
	path string
	now  func() time.Time
}

// Open resolves the .proofpilot directory (override first, see dotdir) and
// returns a store for the credentials file inside it. The file itself is only
// created on the first Save.
func Open(override string) (*Store, error) {
	dir, err := dotdir.NewManager().Target(override)
	if err != nil {
		return nil, err
	}
	return &Store{path: filepath.Join(dir, fileName), now: time.Now}, nil
}

// Path is the credentials file location.
func (s *Store) Path() string {
	return s.path
}

// Load parses the credentials file. A missing file is an empty one.
func (s *Store) Load() (*File, error) {
	f := &File{Version: currentVersion, Services: map[string]Entry{}}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	if _, err := toml.Decode(string(data), f); err != nil {
		return nil, fmt.Errorf("parsing credentials %s: %w", s.path, err)
	}
	if f.Services == nil {
		f.Services = map[string]Entry{}
	}
	return f, nil
}

// Save replaces the credentials file with f. The file is written to a
// temporary sibling first and renamed, so readers never see a partial file.
func (s *Store) Save(f *File) error {
	if f == nil {
		return errors.New("cannot save nil credentials")
	}
	f.Version = currentVersion

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(f); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := utils.WriteFileAtomic(s.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

// Set stores key for service, replacing any previous key.
func (s *Store) Set(service, key string) error {
	if !IsSupported(service) {
		return fmt.Errorf("%w: %q", ErrUnsupported, service)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("API key cannot be empty")
	}

	f, err := s.Load()
	if err != nil {
		return err
	}
	f.Services[service] = Entry{APIKey: key, Updated: s.now().UTC().Truncate(time.Second)}
	return s.Save(f)
}

// Key returns the stored key for service, or "" when none is stored.
func (s *Store) Key(service string) (string, error) {
	f, err := s.Load()
	if err != nil {
		return "", err
	}
	return f.Services[service].APIKey, nil
}

// Remove deletes the stored key for service and reports whether there was one.
func (s *Store) Remove(service string) (bool, error) {
	f, err := s.Load()
	if err != nil {
		return false, err
	}
	if _, ok := f.Services[service]; !ok {
		return false, nil
	}
	delete(f.Services, service)
	return true, s.Save(f)
}

// Services lists the services with a stored key, sorted.
func (s *Store) Services() ([]string, error) {
	f, err := s.Load()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(f.Services))
	for name := range f.Services {
		out = append(out, name)
	}
	slices.Sort(out)
	return out, nil
}

// APIKey resolves the key a backend should use: the stored key first, then
// the service's environment variable. "" means no key is configured anywhere,
// which config resolution reports as a configuration error.
func (s *Store) APIKey(service string) (string, error) {
	key, err := s.Key(service)
	if err != nil || key != "" {
		return key, err
	}
	if env := EnvVar(service); env != "" {
		return os.Getenv(env), nil
	}
	return "", nil
}

// EnvVar names the environment variable consulted for service, "" if none.
func EnvVar(service string) string {
	return envVars[modelparams.ServiceID(service)]
}

// Supported lists the services that take an API key, in the order
// modelparams declares them.
func Supported() []string {
	var out []string
	for _, id := range modelparams.SupportedServices() {
		if _, ok := envVars[id]; ok {
			out = append(out, string(id))
		}
	}
	return out
}

// IsSupported reports whether service takes an API key.
func IsSupported(service string) bool {
	_, ok := envVars[modelparams.ServiceID(service)]
	return ok
}
