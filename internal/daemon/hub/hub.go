// Package hub implements the state channel: a WebSocket endpoint that
// admits authenticated sessions and keeps every one of them on the same
// sequence of full-state snapshots.
package hub

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/grovetools/homed/internal/daemon/auth"
	"github.com/grovetools/homed/internal/daemon/store"
	"github.com/grovetools/homed/pkg/models"
	"github.com/sirupsen/logrus"
)

// Config holds the transport settings of the hub.
type Config struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
	// AllowedOrigins lists browser origins allowed to connect. "*" allows
	// any origin; requests without an Origin header are always allowed.
	AllowedOrigins []string
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		PingInterval:   25 * time.Second,
		PongTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 64 * 1024,
		AllowedOrigins: []string{"*"},
	}
}

// Hub owns the live sessions of the state channel.
type Hub struct {
	store    *store.Store
	auth     *auth.Authenticator
	logger   *logrus.Entry
	cfg      Config
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*Session
}

// New creates a Hub serving st to clients admitted by au.
func New(st *store.Store, au *auth.Authenticator, logger *logrus.Entry, cfg Config) *Hub {
	defaults := DefaultConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaults.PingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaults.PongTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}

	h := &Hub{
		store:    st,
		auth:     au,
		logger:   logger,
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// ServeHTTP upgrades the request and runs the session until the
// connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		h.logger.WithError(err).Debug("WebSocket upgrade failed")
		return
	}

	s := newSession(h, conn, uuid.NewString(), r.RemoteAddr)
	h.register(s)
	defer h.unregister(s)

	s.logger.Debug("Client connected")
	s.run()
	s.logger.Debug("Client disconnected")
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	h.logger.WithField("origin", origin).Warn("Rejected connection from disallowed origin")
	return false
}

func (h *Hub) register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.id] = s
}

// unregister drops the session and its subscription. RootState is not
// session-scoped, so nothing else is cleaned up.
func (h *Hub) unregister(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s.id)
	h.mu.Unlock()

	s.close()
	if ch := s.subscription(); ch != nil {
		h.store.Unsubscribe(ch)
	}
}

// Sessions returns a description of every connected session, sorted by
// connection time.
func (h *Hub) Sessions() []models.Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]models.Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// Close disconnects every session, for shutdown.
func (h *Hub) Close() {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		s.closeWith(websocket.CloseGoingAway, "server shutting down")
	}
}
