package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/grovetools/homed/errors"
	"github.com/grovetools/homed/internal/daemon/auth"
	"github.com/grovetools/homed/internal/daemon/users"
	"github.com/grovetools/homed/pkg/energy"
	"github.com/grovetools/homed/pkg/models"
)

type ctxKey struct{}

// requireAuth admits requests carrying a valid bearer token and stores the
// claims in the request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Authentication token required")
			return
		}
		claims, err := s.auth.Verify(token)
		if err != nil {
			s.logger.WithError(err).Debug("Rejected bearer token")
			writeMessage(w, http.StatusForbidden, "Invalid or expired token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
	})
}

func userID(r *http.Request) string {
	claims, _ := r.Context().Value(ctxKey{}).(*auth.Claims)
	if claims == nil {
		return ""
	}
	return claims.UserID()
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.MessageResponse{Message: msg})
}

// writeError maps store and user errors to HTTP responses. Anything
// unexpected is logged and reported as a server error.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch errors.GetCode(err) {
	case errors.ErrCodeUserNotFound:
		writeMessage(w, http.StatusNotFound, "User not found")
	case errors.ErrCodeUserExists:
		writeMessage(w, http.StatusBadRequest, "Email already registered")
	case errors.ErrCodeInvalidCredentials:
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.ErrCodeInvalidInput:
		msg := "Invalid request"
		if he, ok := err.(*errors.HomeError); ok {
			msg = he.Message
		}
		writeMessage(w, http.StatusBadRequest, msg)
	default:
		s.logger.WithError(err).Error("Request failed")
		writeMessage(w, http.StatusInternalServerError, "Server error")
	}
}

func (s *Server) issue(w http.ResponseWriter, status int, u users.User) {
	token, err := s.auth.Issue(u.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, status, models.AuthResponse{Token: token, User: u.Info()})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	u, err := s.users.Authenticate(req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.WithField("user_id", u.ID).Info("User logged in")
	s.issue(w, http.StatusOK, u)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	u, err := s.users.Create(req.Name, req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.WithField("user_id", u.ID).Info("User registered")
	s.issue(w, http.StatusCreated, u)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Store().Get())
}

func (s *Server) handleGetSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Sessions())
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.users.Settings(userID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

var errWrongPassword = errors.New(errors.ErrCodeInvalidCredentials, "current password is incorrect")

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.ProfileUpdate
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed request body")
		return
	}

	_, err := s.users.Update(userID(r), func(u *users.User) error {
		if req.CurrentPassword != "" && req.NewPassword != "" {
			if !users.VerifyPassword(req.CurrentPassword, u.Password) {
				return errWrongPassword
			}
			hash, err := users.HashPassword(req.NewPassword)
			if err != nil {
				return err
			}
			u.Password = hash
		}
		if name := strings.TrimSpace(req.Name); name != "" {
			u.Name = name
		}
		if req.Email != "" {
			u.Email = req.Email
		}
		return nil
	})
	switch {
	case err == errWrongPassword:
		writeMessage(w, http.StatusUnauthorized, "Current password is incorrect")
	case errors.Is(err, errors.ErrCodeUserExists):
		writeMessage(w, http.StatusBadRequest, "Email already in use")
	case err != nil:
		s.writeError(w, err)
	default:
		writeMessage(w, http.StatusOK, "Profile updated successfully")
	}
}

func (s *Server) handleUpdateNotifications(w http.ResponseWriter, r *http.Request) {
	var req models.NotificationSettings
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	_, err := s.users.Update(userID(r), func(u *users.User) error {
		u.Notifications = &req
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Notification settings updated successfully")
}

func (s *Server) handleUpdateSystem(w http.ResponseWriter, r *http.Request) {
	var req models.SystemSettings
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	_, err := s.users.Update(userID(r), func(u *users.User) error {
		u.System = &req
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "System settings updated successfully")
}

func (s *Server) handleRegenerateKey(w http.ResponseWriter, r *http.Request) {
	key, err := users.GenerateAPIKey()
	if err != nil {
		s.writeError(w, err)
		return
	}
	_, err = s.users.Update(userID(r), func(u *users.User) error {
		api := models.APISettings{Key: key}
		if u.API != nil {
			api.WebhookURL = u.API.WebhookURL
		}
		u.API = &api
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key})
}

func (s *Server) handleUpdateAPI(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WebhookURL string `json:"webhookUrl"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	_, err := s.users.Update(userID(r), func(u *users.User) error {
		var api models.APISettings
		if u.API != nil {
			api = *u.API
		}
		api.WebhookURL = req.WebhookURL
		u.API = &api
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "API settings updated successfully")
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req models.BudgetUpdate
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed request body")
		return
	}
	if req.MonthlyBudget < 0 {
		writeMessage(w, http.StatusBadRequest, "Invalid budget amount")
		return
	}
	_, err := s.users.Update(userID(r), func(u *users.User) error {
		u.MonthlyBudget = req.MonthlyBudget
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Budget updated successfully")
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Store()
	state := st.Get()
	calc := energy.New(st.Tariff())

	a := models.Analytics{
		Energy:      state.Environment.Energy,
		Devices:     make(map[string]int, len(state.Devices)),
		Watts:       make(map[string]float64, len(state.Devices)),
		Temperature: state.Environment.Temperature,
		Humidity:    state.Environment.Humidity,
		HourlyCost:  state.Environment.Energy.Costs.Hourly,
		Analysis:    calc.Analyze(state),
	}
	for id, d := range state.Devices {
		if d.On {
			a.Devices[id] = 1
		} else {
			a.Devices[id] = 0
		}
		a.Watts[id] = calc.DeviceUsage(d)
	}

	var budget float64
	if u, ok := s.users.FindByID(userID(r)); ok {
		budget = u.MonthlyBudget
	}
	a.Budget = energy.CheckBudget(budget, state.Environment.Energy.Costs.Monthly)

	writeJSON(w, http.StatusOK, a)
}
