package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/homed/errors"
	"github.com/grovetools/homed/internal/daemon/store"
	"github.com/grovetools/homed/pkg/models"
	"github.com/sirupsen/logrus"
)

// Session is one connection to the state channel. It moves from connected
// to authenticated on a valid token and is discarded when the connection
// closes; nothing survives a reconnect.
type Session struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	logger *logrus.Entry

	writeMu sync.Mutex // gorilla allows one concurrent writer

	mu      sync.Mutex
	info    models.Session
	updates chan store.Update // nil until authenticated

	done      chan struct{}
	closeOnce sync.Once
}

func newSession(h *Hub, conn *websocket.Conn, id, remoteAddr string) *Session {
	return &Session{
		id:   id,
		hub:  h,
		conn: conn,
		logger: h.logger.WithFields(logrus.Fields{
			"session": id,
			"remote":  remoteAddr,
		}),
		info: models.Session{
			ID:          id,
			RemoteAddr:  remoteAddr,
			ConnectedAt: time.Now(),
		},
		done: make(chan struct{}),
	}
}

// Info returns a copy of the session's description.
func (s *Session) Info() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

func (s *Session) isAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info.Authenticated
}

func (s *Session) subscription() chan store.Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

// run reads frames until the connection fails or a handler asks to close.
func (s *Session) run() {
	cfg := s.hub.cfg
	s.conn.SetReadLimit(cfg.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	})

	go s.ping()

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.WithError(err).Debug("Connection lost")
			}
			return
		}

		var frame models.Frame
		if err := json.Unmarshal(msg, &frame); err != nil || frame.Event == "" {
			s.sendError(models.EventError, models.MsgMalformed)
			continue
		}
		if !s.dispatch(frame) {
			return
		}
	}
}

// dispatch handles one inbound frame. It returns false when the
// connection must be closed.
func (s *Session) dispatch(frame models.Frame) bool {
	if frame.Event == models.EventAuthenticate {
		return s.handleAuthenticate(frame.Data)
	}

	// Everything else requires a completed handshake.
	if !s.isAuthenticated() {
		s.logger.WithError(errors.NotAuthenticated(frame.Event)).Debug("Rejected event")
		s.sendError(models.EventError, models.MsgNotAuthenticated)
		return true
	}

	switch frame.Event {
	case models.EventGetState:
		s.hub.store.Refresh(s.subscription(), s.id)
	case models.EventUpdateDeviceState:
		s.handleUpdate(frame.Data)
	default:
		s.logger.WithField("event", frame.Event).Debug("Ignoring unknown event")
	}
	return true
}

// handleAuthenticate verifies the token carried by an authenticate frame
// and admits the session. A failed attempt closes the connection.
func (s *Session) handleAuthenticate(data json.RawMessage) bool {
	userID, err := s.authenticate(data)
	if err != nil {
		s.logger.WithError(err).Info("Authentication failed")
		s.sendError(models.EventAuthError, models.MsgAuthFailed)
		s.closeWith(websocket.ClosePolicyViolation, "authentication failed")
		return false
	}

	s.mu.Lock()
	s.info.Authenticated = true
	s.info.UserID = userID
	first := s.updates == nil
	if first {
		s.updates = s.hub.store.Subscribe()
	}
	ch := s.updates
	s.mu.Unlock()

	// The acknowledgement is written before the forwarder starts so it
	// always precedes the first snapshot.
	if err := s.write(models.Frame{Event: models.EventAuthenticated}); err != nil {
		return false
	}
	if first {
		go s.forward(ch)
	}
	s.hub.store.Refresh(ch, s.id)

	s.logger.WithField("user", userID).Info("Session authenticated")
	return true
}

// authenticate decodes the token string and verifies it, returning the
// user id.
func (s *Session) authenticate(data json.RawMessage) (string, error) {
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return "", errors.AuthFailed(err)
	}
	claims, err := s.hub.auth.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.UserID(), nil
}

// handleUpdate applies an updateDeviceState request. Success is announced
// by the store broadcast, which includes this session; failure is reported
// to this session only.
func (s *Session) handleUpdate(data json.RawMessage) {
	var req models.UpdateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(models.EventError, models.MsgInvalidUpdate)
		return
	}

	if _, err := s.hub.store.ApplyPath(req.Path, req.Data, s.id); err != nil {
		s.logger.WithError(err).WithField("path", req.Path).Info("Invalid state update")
		s.sendError(models.EventError, models.MsgInvalidUpdate)
		return
	}
	s.logger.WithField("path", req.Path).Debug("State updated and broadcast")
}

// forward writes every snapshot queued for this session. The store closes
// the channel on unsubscribe or when this session falls too far behind;
// either way the connection is finished.
func (s *Session) forward(ch chan store.Update) {
	defer s.close()
	for u := range ch {
		frame, err := models.NewFrame(models.EventDeviceStateUpdated, u.State)
		if err != nil {
			s.logger.WithError(err).Error("Failed to encode state")
			continue
		}
		if err := s.write(frame); err != nil {
			return
		}
	}
}

// ping keeps the connection alive; a missing pong lets the read deadline
// expire.
func (s *Session) ping() {
	ticker := time.NewTicker(s.hub.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.hub.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.close()
				return
			}
		}
	}
}

func (s *Session) write(frame models.Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(s.hub.cfg.WriteTimeout))
	if err := s.conn.WriteJSON(frame); err != nil {
		s.logger.WithError(err).Debug("Write failed")
		return err
	}
	return nil
}

func (s *Session) sendError(event, message string) {
	frame, err := models.NewFrame(event, models.ErrorPayload{Message: message})
	if err != nil {
		return
	}
	_ = s.write(frame)
}

// closeWith sends a close frame before tearing the connection down.
func (s *Session) closeWith(code int, reason string) {
	deadline := time.Now().Add(s.hub.cfg.WriteTimeout)
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	s.close()
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}
