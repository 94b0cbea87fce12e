package daemon

import (
	"context"
	"encoding/json"

	"github.com/grovetools/homed/config"
	"github.com/grovetools/homed/internal/daemon/store"
	"github.com/grovetools/homed/pkg/energy"
	"github.com/grovetools/homed/pkg/models"
)

// LocalClient implements Client with an in-process store seeded from the
// configuration. It is used when the daemon is not running: reads show the
// configured home, and updates last only as long as the client.
type LocalClient struct {
	store *store.Store
}

// NewLocalClient creates a LocalClient over the configuration found from
// dir. An empty dir uses the current directory.
func NewLocalClient(dir string) (*LocalClient, error) {
	var (
		cfg *config.Config
		err error
	)
	if dir == "" {
		cfg, err = config.LoadDefault()
	} else {
		cfg, err = config.LoadFrom(dir)
	}
	if err != nil {
		return nil, err
	}
	return NewLocalClientFromStore(store.New(cfg.InitialState(), energy.New(cfg.Tariff()))), nil
}

// NewLocalClientFromStore wraps an existing store.
func NewLocalClientFromStore(st *store.Store) *LocalClient {
	return &LocalClient{store: st}
}

// GetState returns the store's snapshot.
func (c *LocalClient) GetState(ctx context.Context) (models.State, error) {
	return c.store.Get(), nil
}

// Update applies the update to the in-process store.
func (c *LocalClient) Update(ctx context.Context, path string, data json.RawMessage) (models.State, error) {
	return c.store.ApplyPath(path, data, "local")
}

// GetSessions returns nil since there are no connections in local mode.
func (c *LocalClient) GetSessions(ctx context.Context) ([]models.Session, error) {
	return nil, nil
}

// StreamState streams the in-process store. The first item is the current
// snapshot.
func (c *LocalClient) StreamState(ctx context.Context) (<-chan StateUpdate, error) {
	sub := c.store.Subscribe()
	c.store.Refresh(sub, "local")

	out := make(chan StateUpdate, 10)
	go func() {
		defer close(out)
		defer c.store.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-sub:
				if !ok {
					return
				}
				select {
				case out <- StateUpdate{State: u.State}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// IsRunning returns false since this is the local fallback client.
func (c *LocalClient) IsRunning() bool {
	return false
}

// Close is a no-op for LocalClient.
func (c *LocalClient) Close() error {
	return nil
}

var (
	_ Client = (*LocalClient)(nil)
	_ Client = (*RemoteClient)(nil)
)
