package daemon

import (
	"net"
	"strings"
	"time"
)

// New returns a RemoteClient when the daemon answers at addr, otherwise a
// LocalClient over the configuration found from configDir.
//
// This implements the "transparent daemon" pattern: callers don't need to
// know whether the daemon is running.
func New(addr, token, configDir string) (Client, error) {
	if Reachable(addr) {
		return NewRemoteClient(addr, token), nil
	}
	return NewLocalClient(configDir)
}

// Reachable reports whether something accepts TCP connections at addr.
func Reachable(addr string) bool {
	host := strings.TrimPrefix(strings.TrimPrefix(addr, "http://"), "https://")
	host = strings.TrimRight(host, "/")
	conn, err := net.DialTimeout("tcp", host, 200*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
