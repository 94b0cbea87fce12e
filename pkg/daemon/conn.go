package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/homed/errors"
	"github.com/grovetools/homed/pkg/models"
	"github.com/grovetools/homed/version"
)

// Conn is an authenticated connection to the daemon's state channel.
// Snapshots and error messages are delivered on separate channels, both of
// which are closed when the connection ends.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	states chan models.State
	errs   chan string
	done   chan struct{}
	err    error
}

// Dial connects to the state channel at wsURL and authenticates with token.
// It returns once the daemon acknowledges the token.
func Dial(ctx context.Context, wsURL, token string) (*Conn, error) {
	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	ws, _, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, errors.DaemonNotRunning(wsURL).WithDetail("cause", err.Error())
	}

	c := &Conn{
		ws:     ws,
		states: make(chan models.State, 16),
		errs:   make(chan string, 4),
		done:   make(chan struct{}),
	}
	if err := c.authenticate(ctx, token); err != nil {
		ws.Close()
		return nil, err
	}
	go c.readLoop()
	return c, nil
}

func (c *Conn) authenticate(ctx context.Context, token string) error {
	if err := c.send(models.EventAuthenticate, token); err != nil {
		return err
	}

	deadline := time.Now().Add(5 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.ws.SetReadDeadline(deadline)
	defer c.ws.SetReadDeadline(time.Time{})

	for {
		var f models.Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			return errors.AuthFailed(err)
		}
		switch f.Event {
		case models.EventAuthenticated:
			return nil
		case models.EventAuthError:
			return errors.AuthFailed(fmt.Errorf("%s", payloadMessage(f.Data)))
		}
	}
}

func (c *Conn) readLoop() {
	defer close(c.done)
	defer close(c.errs)
	defer close(c.states)

	for {
		var f models.Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			c.err = err
			return
		}
		switch f.Event {
		case models.EventDeviceStateUpdated:
			var s models.State
			if err := json.Unmarshal(f.Data, &s); err != nil {
				continue
			}
			c.deliver(s)
		case models.EventError, models.EventAuthError:
			select {
			case c.errs <- payloadMessage(f.Data):
			default:
			}
		}
	}
}

// deliver queues s, dropping the oldest queued snapshot when the reader
// falls behind. Every snapshot is complete, so only the newest matters.
func (c *Conn) deliver(s models.State) {
	for {
		select {
		case c.states <- s:
			return
		default:
		}
		select {
		case <-c.states:
		default:
		}
	}
}

// States delivers the snapshots the daemon sends.
func (c *Conn) States() <-chan models.State { return c.states }

// Errors delivers error messages sent by the daemon.
func (c *Conn) Errors() <-chan string { return c.errs }

// Done is closed when the connection ends.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err returns the error that ended the connection, after Done is closed.
func (c *Conn) Err() error {
	<-c.done
	return c.err
}

// RequestState asks the daemon for a fresh snapshot.
func (c *Conn) RequestState() error {
	return c.send(models.EventGetState, nil)
}

// Update sends a path-based update. The result arrives on States or Errors.
func (c *Conn) Update(path string, data json.RawMessage) error {
	return c.send(models.EventUpdateDeviceState, models.UpdateRequest{Path: path, Data: data})
}

// Close closes the connection.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.ws.Close()
}

func (c *Conn) send(event string, data interface{}) error {
	f, err := models.NewFrame(event, data)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.ws.WriteJSON(f)
}

func payloadMessage(data json.RawMessage) string {
	var p models.ErrorPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Message == "" {
		return "unknown error"
	}
	return p.Message
}
