// Package pathutil expands user-supplied paths from configuration files.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Expand replaces a leading ~ with the home directory, expands environment
// variables and returns an absolute path. An empty path stays empty.
func Expand(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not get user home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	path = os.ExpandEnv(path)
	return filepath.Abs(path)
}

// ExpandRelative is Expand for paths written in a configuration file:
// relative paths resolve against the directory of that file.
func ExpandRelative(path, baseDir string) (string, error) {
	if path == "" || baseDir == "" || filepath.IsAbs(path) || strings.HasPrefix(path, "~") || strings.HasPrefix(path, "$") {
		return Expand(path)
	}
	return Expand(filepath.Join(baseDir, path))
}
