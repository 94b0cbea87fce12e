// Package paths provides XDG-compliant path resolution for homed.
//
// Resolution order:
// 1. HOMED_HOME (portable root) → $HOMED_HOME/{config,data,state}
// 2. XDG env vars → $XDG_*_HOME/homed
// 3. Platform defaults → ~/.config/homed, ~/.local/share/homed, etc.
package paths

import (
	"os"
	"path/filepath"
)

const appName = "homed"

// base resolves one XDG base directory.
func base(homeSub, xdgVar string, fallback ...string) string {
	if home := os.Getenv("HOMED_HOME"); home != "" {
		return filepath.Join(home, homeSub)
	}
	if dir := os.Getenv(xdgVar); dir != "" {
		return filepath.Join(dir, appName)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(append(append([]string{homeDir}, fallback...), appName)...)
	}
	return ""
}

// ConfigDir returns the homed configuration directory.
// Used for the global homed.toml / homed.yml.
func ConfigDir() string {
	return base("config", "XDG_CONFIG_HOME", ".config")
}

// DataDir returns the homed data directory.
// Used for the account file.
func DataDir() string {
	return base("data", "XDG_DATA_HOME", ".local", "share")
}

// StateDir returns the homed state directory.
// Used for the pidfile, logs and the saved CLI token.
func StateDir() string {
	return base("state", "XDG_STATE_HOME", ".local", "state")
}

// PidFilePath returns the path to the daemon PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "homed.pid")
}

// UsersFilePath returns the default account file.
func UsersFilePath() string {
	return filepath.Join(DataDir(), "users.json")
}

// TokenFilePath returns where `homed login` stores the session token.
func TokenFilePath() string {
	return filepath.Join(StateDir(), "token")
}

// EnsureDirs creates all homed directories if they don't exist.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), DataDir(), StateDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
