package hub

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/homed/internal/daemon/auth"
	"github.com/grovetools/homed/internal/daemon/store"
	"github.com/grovetools/homed/pkg/energy"
	"github.com/grovetools/homed/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	hub    *Hub
	store  *store.Store
	auth   *auth.Authenticator
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, Config{})
}

func newTestEnvWith(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	st := store.New(models.DefaultState(), energy.New(energy.DefaultTariff()))
	au := auth.New("test-secret", time.Hour)
	h := New(st, au, logrus.NewEntry(logger), cfg)
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return &testEnv{hub: h, store: st, auth: au, server: srv}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	frame, err := models.NewFrame(event, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(frame))
}

func read(t *testing.T, conn *websocket.Conn) models.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame models.Frame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func readState(t *testing.T, conn *websocket.Conn) models.State {
	t.Helper()
	frame := read(t, conn)
	require.Equal(t, models.EventDeviceStateUpdated, frame.Event)
	var state models.State
	require.NoError(t, json.Unmarshal(frame.Data, &state))
	return state
}

func readError(t *testing.T, conn *websocket.Conn, event string) string {
	t.Helper()
	frame := read(t, conn)
	require.Equal(t, event, frame.Event)
	var payload models.ErrorPayload
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	return payload.Message
}

// expectSilence asserts nothing arrives within a short window. The
// connection is unusable afterwards.
func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, msg, err := conn.ReadMessage()
	assert.Error(t, err, "unexpected frame: %s", msg)
}

func (e *testEnv) login(t *testing.T, conn *websocket.Conn, user string) models.State {
	t.Helper()
	token, err := e.auth.Issue(user)
	require.NoError(t, err)
	send(t, conn, models.EventAuthenticate, token)

	assert.Equal(t, models.EventAuthenticated, read(t, conn).Event)
	return readState(t, conn)
}

func TestAuthenticateSendsAckThenSnapshot(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	state := env.login(t, conn, "user-1")
	assert.Equal(t, env.store.Get(), state)

	require.Eventually(t, func() bool {
		sessions := env.hub.Sessions()
		return len(sessions) == 1 && sessions[0].Authenticated && sessions[0].UserID == "user-1"
	}, time.Second, 10*time.Millisecond)
}

func TestUnauthenticatedEventsAreRejected(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	send(t, conn, models.EventGetState, nil)
	assert.Equal(t, models.MsgNotAuthenticated, readError(t, conn, models.EventError))

	send(t, conn, models.EventUpdateDeviceState, models.UpdateRequest{
		Path: "devices.kitchenLights",
		Data: json.RawMessage(`{"on":true}`),
	})
	assert.Equal(t, models.MsgNotAuthenticated, readError(t, conn, models.EventError))
	assert.False(t, env.store.Get().Devices["kitchenLights"].On)

	// The connection stays usable for a later handshake.
	env.login(t, conn, "user-1")
}

func TestAuthFailureClosesConnection(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	send(t, conn, models.EventAuthenticate, "not-a-token")
	assert.Equal(t, models.MsgAuthFailed, readError(t, conn, models.EventAuthError))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
	assert.Equal(t, 0, env.store.SubscriberCount())
}

func TestMalformedFrame(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{nope")))
	assert.Equal(t, models.MsgMalformed, readError(t, conn, models.EventError))
}

func TestOversizedFrameClosesConnection(t *testing.T) {
	env := newTestEnvWith(t, Config{MaxMessageSize: 1024})

	ok := env.dial(t)
	env.login(t, ok, "user-1")

	conn := env.dial(t)
	big := strings.Repeat("x", 2048)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"getState","data":"`+big+`"}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseMessageTooBig), "got %v", err)

	// Frames under the limit still work on other sessions.
	send(t, ok, models.EventGetState, nil)
	readState(t, ok)
}

func TestUpdateIsBroadcastToAuthenticatedSessions(t *testing.T) {
	env := newTestEnv(t)

	a, b, c := env.dial(t), env.dial(t), env.dial(t)
	for i, conn := range []*websocket.Conn{a, b, c} {
		env.login(t, conn, "user-"+string(rune('a'+i)))
	}
	outsider := env.dial(t)

	send(t, a, models.EventUpdateDeviceState, models.UpdateRequest{
		Path: "devices.kitchenLights",
		Data: json.RawMessage(`{"on":true}`),
	})

	var states []models.State
	for _, conn := range []*websocket.Conn{a, b, c} {
		states = append(states, readState(t, conn))
	}
	for _, state := range states {
		assert.Equal(t, states[0], state)
	}
	assert.True(t, states[0].Devices["kitchenLights"].On)
	assert.InDelta(t, 120.0, states[0].Environment.Energy.Current, 1e-9)
	assert.InDelta(t, 0.0144, states[0].Environment.Energy.Costs.Hourly, 1e-12)

	expectSilence(t, outsider)
}

func TestInvalidUpdateRepliesToSenderOnly(t *testing.T) {
	env := newTestEnv(t)
	a, b := env.dial(t), env.dial(t)
	env.login(t, a, "user-a")
	env.login(t, b, "user-b")
	before := env.store.Get()

	send(t, a, models.EventUpdateDeviceState, models.UpdateRequest{
		Path: "devices.nonexistent.field",
		Data: json.RawMessage(`{"x":1}`),
	})
	assert.Equal(t, models.MsgInvalidUpdate, readError(t, a, models.EventError))
	assert.Equal(t, before, env.store.Get())

	expectSilence(t, b)
}

func TestGetStateRepliesToSenderOnly(t *testing.T) {
	env := newTestEnv(t)
	a, b := env.dial(t), env.dial(t)
	env.login(t, a, "user-a")
	env.login(t, b, "user-b")

	send(t, a, models.EventGetState, nil)
	assert.Equal(t, env.store.Get(), readState(t, a))

	expectSilence(t, b)
}

func TestUnknownEventIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)
	env.login(t, conn, "user-1")

	send(t, conn, "reboot", nil)
	send(t, conn, models.EventGetState, nil)
	assert.Equal(t, env.store.Get(), readState(t, conn))
}

func TestReauthenticateKeepsSingleSubscription(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)
	env.login(t, conn, "user-1")
	env.login(t, conn, "user-2")

	assert.Equal(t, 1, env.store.SubscriberCount())
	require.Eventually(t, func() bool {
		sessions := env.hub.Sessions()
		return len(sessions) == 1 && sessions[0].UserID == "user-2"
	}, time.Second, 10*time.Millisecond)
}

func TestDisconnectUnsubscribes(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)
	env.login(t, conn, "user-1")
	require.Equal(t, 1, env.store.SubscriberCount())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return env.store.SubscriberCount() == 0 && len(env.hub.Sessions()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCheckOrigin(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	h := New(nil, nil, logrus.NewEntry(logger), Config{AllowedOrigins: []string{"http://localhost:3000"}})

	r := httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, h.checkOrigin(r))

	r.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, h.checkOrigin(r))

	r.Header.Set("Origin", "http://evil.example")
	assert.False(t, h.checkOrigin(r))
}
