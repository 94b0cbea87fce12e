package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/grovetools/homed/cli"
	"github.com/grovetools/homed/config"
	"github.com/grovetools/homed/errors"
	"github.com/grovetools/homed/pkg/daemon"
	"github.com/grovetools/homed/pkg/paths"
	"github.com/grovetools/homed/util/pathutil"
	"github.com/spf13/cobra"
)

// loadConfig loads the layered configuration from --config or the working
// directory.
func loadConfig(cmd *cobra.Command) (*config.LayeredConfig, error) {
	dir := cli.GetOptions(cmd).ConfigDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		dir = cwd
	}
	return config.LoadLayered(dir)
}

// configPath expands a path from the configuration. Relative paths resolve
// against the directory of the project config file when there is one.
func configPath(layered *config.LayeredConfig, path string) (string, error) {
	base := ""
	for _, l := range layered.Layers {
		if l.Source == config.SourceProject {
			base = filepath.Dir(l.Path)
		}
	}
	return pathutil.ExpandRelative(path, base)
}

// daemonAddr returns --addr, or the listen address from the configuration.
func daemonAddr(cmd *cobra.Command) string {
	if addr := cli.GetOptions(cmd).Addr; addr != "" {
		return addr
	}
	if layered, err := loadConfig(cmd); err == nil {
		return layered.Final.Server.Listen
	}
	return config.DefaultListen
}

// saveToken stores the session token for later commands.
func saveToken(token string) error {
	path := paths.TokenFilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return os.WriteFile(path, []byte(token+"\n"), 0600)
}

// loadToken returns $HOMED_TOKEN or the token saved by `homed login`.
func loadToken() (string, error) {
	if token := strings.TrimSpace(os.Getenv("HOMED_TOKEN")); token != "" {
		return token, nil
	}
	data, err := os.ReadFile(paths.TokenFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.New(errors.ErrCodeNotAuthenticated, "no saved session")
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// remoteClient connects to the running daemon with the saved token.
func remoteClient(cmd *cobra.Command) (*daemon.RemoteClient, error) {
	addr := daemonAddr(cmd)
	if !daemon.Reachable(addr) {
		return nil, errors.DaemonNotRunning(addr)
	}
	token, err := loadToken()
	if err != nil {
		return nil, err
	}
	return daemon.NewRemoteClient(addr, token), nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, 10*time.Second)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
