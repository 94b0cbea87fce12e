// Package daemon provides a client for the homed daemon. It implements a
// transparent fallback: if the daemon is running, requests go over HTTP and
// the state channel; if not, an in-process store built from the local
// configuration answers instead.
package daemon

import (
	"context"
	"encoding/json"

	"github.com/grovetools/homed/pkg/models"
)

// Client defines the interface for interacting with the homed daemon.
// Both RemoteClient and LocalClient implement it.
type Client interface {
	// GetState returns the current snapshot.
	GetState(ctx context.Context) (models.State, error)

	// Update applies a path-based update and returns the resulting state.
	Update(ctx context.Context, path string, data json.RawMessage) (models.State, error)

	// GetSessions returns the connected state channel sessions.
	GetSessions(ctx context.Context) ([]models.Session, error)

	// StreamState subscribes to snapshots until ctx is canceled. The
	// channel is closed when the stream ends.
	StreamState(ctx context.Context) (<-chan StateUpdate, error)

	// IsRunning returns true if the daemon is available and responding.
	IsRunning() bool

	// Close cleans up any resources used by the client.
	Close() error
}

// StateUpdate is one item of a state stream: a snapshot, or an error the
// daemon reported for this client's last request.
type StateUpdate struct {
	State models.State `json:"state"`
	Error string       `json:"error,omitempty"`
}
