package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/grovetools/homed/errors"
	"github.com/grovetools/homed/internal/daemon/store"
	"github.com/grovetools/homed/pkg/models"
	"github.com/grovetools/homed/version"
)

// RemoteClient implements Client against a running daemon. Reads use the
// HTTP API; updates and streams use the state channel.
type RemoteClient struct {
	httpClient *http.Client
	baseURL    string
	wsURL      string
	token      string
}

// NewRemoteClient creates a client for the daemon at addr, which may be a
// host:port or an http(s) URL. token may be empty for the unauthenticated
// endpoints.
func NewRemoteClient(addr, token string) *RemoteClient {
	base := strings.TrimRight(addr, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &RemoteClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    base,
		wsURL:      "ws" + strings.TrimPrefix(base, "http") + "/ws",
		token:      token,
	}
}

// SetToken replaces the bearer token used for later requests.
func (c *RemoteClient) SetToken(token string) {
	c.token = token
}

// Login exchanges credentials for a token and stores it on the client.
func (c *RemoteClient) Login(ctx context.Context, email, password string) (models.AuthResponse, error) {
	var resp models.AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", models.LoginRequest{Email: email, Password: password}, &resp)
	if err == nil {
		c.token = resp.Token
	}
	return resp, err
}

// Register creates an account and stores the returned token on the client.
func (c *RemoteClient) Register(ctx context.Context, name, email, password string) (models.AuthResponse, error) {
	var resp models.AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/register",
		models.RegisterRequest{Name: name, Email: email, Password: password}, &resp)
	if err == nil {
		c.token = resp.Token
	}
	return resp, err
}

// GetState returns the current snapshot.
func (c *RemoteClient) GetState(ctx context.Context) (models.State, error) {
	var s models.State
	err := c.do(ctx, http.MethodGet, "/api/state", nil, &s)
	return s, err
}

// GetSessions returns the daemon's connected sessions.
func (c *RemoteClient) GetSessions(ctx context.Context) ([]models.Session, error) {
	var sessions []models.Session
	err := c.do(ctx, http.MethodGet, "/api/sessions", nil, &sessions)
	return sessions, err
}

// GetAnalytics returns the per-device usage summary.
func (c *RemoteClient) GetAnalytics(ctx context.Context) (models.Analytics, error) {
	var a models.Analytics
	err := c.do(ctx, http.MethodGet, "/api/analytics", nil, &a)
	return a, err
}

// SetBudget stores the logged-in user's monthly energy budget. Zero clears
// it.
func (c *RemoteClient) SetBudget(ctx context.Context, monthly float64) error {
	return c.do(ctx, http.MethodPost, "/api/settings/budget", models.BudgetUpdate{MonthlyBudget: monthly}, nil)
}

// GetSettings returns the logged-in user's settings.
func (c *RemoteClient) GetSettings(ctx context.Context) (models.Settings, error) {
	var s models.Settings
	err := c.do(ctx, http.MethodGet, "/api/settings", nil, &s)
	return s, err
}

// GetRunningConfig returns the daemon's active configuration as raw JSON.
func (c *RemoteClient) GetRunningConfig(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.do(ctx, http.MethodGet, "/api/config", nil, &raw)
	return raw, err
}

// updateTimeout bounds Update when the caller's context has no deadline.
const updateTimeout = 10 * time.Second

// Update applies a path-based update over the state channel and returns the
// first snapshot that carries it, or the daemon's rejection. Snapshots
// caused by other sessions are skipped.
func (c *RemoteClient) Update(ctx context.Context, path string, data json.RawMessage) (models.State, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, updateTimeout)
		defer cancel()
	}

	conn, err := Dial(ctx, c.wsURL, c.token)
	if err != nil {
		return models.State{}, err
	}
	defer conn.Close()

	// The daemon sends a snapshot right after authenticating.
	initial, err := waitState(ctx, conn)
	if err != nil {
		return models.State{}, err
	}
	// A patch that does not parse here is left for the daemon to reject.
	patch, parseErr := store.ParsePatch(initial, path, data)

	if err := conn.Update(path, data); err != nil {
		return models.State{}, err
	}
	for {
		s, err := waitState(ctx, conn)
		if err != nil {
			if ctx.Err() != nil {
				return models.State{}, fmt.Errorf("waiting for the update to %s: %w", path, err)
			}
			return models.State{}, err
		}
		if parseErr != nil || store.Reflects(s, patch) {
			return s, nil
		}
	}
}

func waitState(ctx context.Context, conn *Conn) (models.State, error) {
	select {
	case s, ok := <-conn.States():
		if !ok {
			return models.State{}, fmt.Errorf("connection closed: %w", conn.Err())
		}
		return s, nil
	case msg, ok := <-conn.Errors():
		if !ok {
			return models.State{}, fmt.Errorf("connection closed: %w", conn.Err())
		}
		return models.State{}, errors.New(errors.ErrCodeInvalidInput, msg)
	case <-ctx.Done():
		return models.State{}, ctx.Err()
	}
}

// StreamState streams snapshots over the state channel until ctx is
// canceled or the connection drops.
func (c *RemoteClient) StreamState(ctx context.Context) (<-chan StateUpdate, error) {
	conn, err := Dial(ctx, c.wsURL, c.token)
	if err != nil {
		return nil, err
	}

	out := make(chan StateUpdate, 10)
	go func() {
		defer close(out)
		defer conn.Close()
		states, errs := conn.States(), conn.Errors()
		for {
			var u StateUpdate
			select {
			case <-ctx.Done():
				return
			case s, ok := <-states:
				if !ok {
					return
				}
				u.State = s
			case msg, ok := <-errs:
				if !ok {
					return
				}
				u.Error = msg
			}
			select {
			case out <- u:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// IsRunning returns true if the daemon answers its health check.
func (c *RemoteClient) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases idle connections.
func (c *RemoteClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *RemoteClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.DaemonNotRunning(c.baseURL).WithDetail("cause", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var m models.MessageResponse
		_ = json.NewDecoder(resp.Body).Decode(&m)
		if m.Message == "" {
			m.Message = resp.Status
		}
		return statusError(resp.StatusCode, m.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func statusError(status int, msg string) error {
	switch status {
	case http.StatusUnauthorized:
		if msg == "Invalid credentials" {
			return errors.InvalidCredentials()
		}
		return errors.New(errors.ErrCodeAuthFailed, msg)
	case http.StatusForbidden:
		return errors.New(errors.ErrCodeAuthFailed, msg)
	case http.StatusNotFound:
		return errors.New(errors.ErrCodeUserNotFound, msg)
	case http.StatusBadRequest:
		return errors.New(errors.ErrCodeInvalidInput, msg)
	default:
		return errors.New(errors.ErrCodeInternal, fmt.Sprintf("daemon returned %d: %s", status, msg))
	}
}
