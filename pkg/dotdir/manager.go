// Package dotdir locates the .proofpilot directory holding config.toml,
// credentials.toml and the generations logs.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	dirName            = ".proofpilot"
	generationsDirName = "generations"

	// HomeEnv points at a .proofpilot directory to use when no override is
	// given, e.g. in CI.
	HomeEnv = "PROOFPILOT_HOME"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target resolves and creates the .proofpilot directory. Precedence:
//  1. overrideDir
//  2. $PROOFPILOT_HOME
//  3. the nearest .proofpilot in the working directory or one of its parents
//  4. ~/.proofpilot
func (m *Manager) Target(overrideDir string) (string, error) {
	dir, err := m.locate(overrideDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating proofpilot directory %s: %w", dir, err)
	}
	return filepath.Abs(dir)
}

// GenerationsDir is where generations logs go unless configured otherwise.
func (m *Manager) GenerationsDir(overrideDir string) (string, error) {
	target, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(target, generationsDirName), nil
}

func (m *Manager) locate(overrideDir string) (string, error) {
	if overrideDir != "" {
		return overrideDir, nil
	}
	if env := os.Getenv(HomeEnv); env != "" {
		return env, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	if found, ok := nearest(cwd); ok {
		return found, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// nearest walks from dir up to the filesystem root looking for a .proofpilot
// directory.
func nearest(dir string) (string, bool) {
	for {
		candidate := filepath.Join(dir, dirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
