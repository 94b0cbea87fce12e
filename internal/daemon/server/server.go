// Package server provides the HTTP server for the homed daemon.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/grovetools/homed/internal/daemon/auth"
	"github.com/grovetools/homed/internal/daemon/engine"
	"github.com/grovetools/homed/internal/daemon/hub"
	"github.com/grovetools/homed/internal/daemon/users"
	"github.com/grovetools/homed/pkg/energy"
	"github.com/sirupsen/logrus"
)

// maxBodyBytes bounds request bodies on the JSON API.
const maxBodyBytes = 1 << 20

// RunningConfig holds the active configuration being used by the daemon.
// This is exposed via the /api/config endpoint so clients can verify what config is active.
type RunningConfig struct {
	Listen         string        `json:"listen"`
	AllowedOrigins []string      `json:"allowed_origins"`
	PingInterval   string        `json:"ping_interval"`
	PongTimeout    string        `json:"pong_timeout"`
	WriteTimeout   string        `json:"write_timeout"`
	MaxMessageSize int64         `json:"max_message_size"`
	TokenTTL       string        `json:"token_ttl"`
	Tariff         energy.Tariff `json:"tariff"`
	ConfigFiles    []string      `json:"config_files"`
	StartedAt      time.Time     `json:"started_at"`

	// Filled per request.
	Collectors []engine.CollectorStatus `json:"collectors"`
}

// Server serves the REST API, the state channel and the dashboard assets.
type Server struct {
	logger        *logrus.Entry
	mu            sync.Mutex
	server        *http.Server
	engine        *engine.Engine
	hub           *hub.Hub
	auth          *auth.Authenticator
	users         *users.Store
	runningConfig *RunningConfig
	staticDir     string
	origins       []string
}

// New creates a new Server instance.
func New(logger *logrus.Entry, eng *engine.Engine, h *hub.Hub, au *auth.Authenticator, us *users.Store) *Server {
	return &Server{
		logger: logger,
		engine: eng,
		hub:    h,
		auth:   au,
		users:  us,
	}
}

// SetRunningConfig sets the running configuration for the server.
func (s *Server) SetRunningConfig(cfg *RunningConfig) {
	s.runningConfig = cfg
	if cfg != nil {
		s.origins = cfg.AllowedOrigins
	}
}

// SetStaticDir serves the files in dir at /.
func (s *Server) SetStaticDir(dir string) {
	s.staticDir = dir
}

// Handler returns the complete route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/ws", s.hub)

	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)

	mux.Handle("GET /api/state", s.requireAuth(s.handleGetState))
	mux.Handle("GET /api/sessions", s.requireAuth(s.handleGetSessions))
	mux.Handle("GET /api/analytics", s.requireAuth(s.handleAnalytics))

	mux.Handle("GET /api/settings", s.requireAuth(s.handleGetSettings))
	mux.Handle("POST /api/settings/profile", s.requireAuth(s.handleUpdateProfile))
	mux.Handle("POST /api/settings/notifications", s.requireAuth(s.handleUpdateNotifications))
	mux.Handle("POST /api/settings/system", s.requireAuth(s.handleUpdateSystem))
	mux.Handle("POST /api/settings/regenerate-key", s.requireAuth(s.handleRegenerateKey))
	mux.Handle("POST /api/settings/api", s.requireAuth(s.handleUpdateAPI))
	mux.Handle("POST /api/settings/budget", s.requireAuth(s.handleUpdateBudget))

	if s.staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	}

	return s.cors(mux)
}

// ListenAndServe listens on addr and serves until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener. It blocks until the server stops
// or fails.
func (s *Server) Serve(listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger.WithField("addr", listener.Addr().String()).Info("Daemon listening")
	err := srv.Serve(listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server. Hijacked WebSocket connections are
// not tracked by net/http, so the hub closes them itself.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.hub != nil {
		s.hub.Close()
	}
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// cors answers preflight requests and tags responses for allowed origins.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.origins) == 0 {
		return true
	}
	for _, o := range s.origins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// handleGetConfig returns the running configuration as JSON.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.runningConfig == nil {
		http.Error(w, "config not initialized", http.StatusServiceUnavailable)
		return
	}
	rc := *s.runningConfig
	rc.Tariff = s.engine.Store().Tariff()
	rc.Collectors = s.engine.Status()
	writeJSON(w, http.StatusOK, rc)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}
