// Package dotdir resolves the .chatrelay/ directory that holds config.toml
// and the default SQLite database.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the chatrelay directory.
	dirName = ".chatrelay"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path to a .chatrelay/ directory.
// Order of precedence is as follows:
//  1. Provided override, created if missing
//  2. Local ./.chatrelay/ dir
//  3. Home ~/.chatrelay/ dir
//
// When none of these exist the empty string is returned.
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating chatrelay directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	if dirExists(filepath.Join(cwd, dirName)) {
		return filepath.Join(cwd, dirName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", nil
	}
	if dirExists(filepath.Join(home, dirName)) {
		return filepath.Join(home, dirName), nil
	}

	return "", nil
}

// Ensure is Target, except that ~/.chatrelay/ is created when no directory
// is found.
func (m *Manager) Ensure(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir != "" {
		return dir, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	dir = filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating chatrelay directory %s: %w", dir, err)
	}

	return dir, nil
}

// File returns the path of name inside the ensured directory.
func (m *Manager) File(overrideDir, name string) (string, error) {
	dir, err := m.Ensure(overrideDir)
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, name), nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
