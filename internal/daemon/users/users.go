// Package users persists the accounts that can log in to the daemon.
package users

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grovetools/homed/errors"
	"github.com/grovetools/homed/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

// HashCost is the bcrypt cost for stored passwords.
const HashCost = 10

// User is a stored account. Settings groups are nil until the user first
// changes them; Settings fills in defaults.
type User struct {
	ID            string                       `json:"id"`
	Name          string                       `json:"name"`
	Email         string                       `json:"email"`
	Password      string                       `json:"password"`
	Notifications *models.NotificationSettings `json:"notifications,omitempty"`
	System        *models.SystemSettings       `json:"system,omitempty"`
	API           *models.APISettings          `json:"api,omitempty"`
	MonthlyBudget float64                      `json:"monthlyBudget,omitempty"`
	CreatedAt     time.Time                    `json:"createdAt"`
}

// Info returns the public view of u.
func (u User) Info() models.UserInfo {
	return models.UserInfo{ID: u.ID, Name: u.Name, Email: u.Email}
}

type usersFile struct {
	Users []User `json:"users"`
}

// Store is a JSON file of users. Every write is persisted before it
// returns.
type Store struct {
	mu    sync.RWMutex
	path  string
	users []User
}

// Open loads the users file at path. A missing file is an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}

	var f usersFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse users file %s: %w", path, err)
	}
	s.users = f.Users
	return s, nil
}

// Path returns the file the store persists to.
func (s *Store) Path() string {
	return s.path
}

// Len returns the number of users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// FindByEmail looks a user up by email, ignoring case.
func (s *Store) FindByEmail(email string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexByEmail(email)
	if i < 0 {
		return User{}, false
	}
	return s.users[i], true
}

// FindByID looks a user up by id.
func (s *Store) FindByID(id string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexByID(id)
	if i < 0 {
		return User{}, false
	}
	return s.users[i], true
}

// Create registers a new user with a hashed password.
func (s *Store) Create(name, email, password string) (User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	switch {
	case name == "":
		return User{}, errors.InvalidInput("name", "must not be empty")
	case email == "":
		return User{}, errors.InvalidInput("email", "must not be empty")
	case password == "":
		return User{}, errors.InvalidInput("password", "must not be empty")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexByEmail(email) >= 0 {
		return User{}, errors.UserExists(email)
	}

	u := User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Password:  hash,
		CreatedAt: time.Now().UTC(),
	}
	s.users = append(s.users, u)
	if err := s.save(); err != nil {
		s.users = s.users[:len(s.users)-1]
		return User{}, err
	}
	return u, nil
}

// Authenticate returns the user when email and password match. Unknown
// emails and wrong passwords fail the same way.
func (s *Store) Authenticate(email, password string) (User, error) {
	u, ok := s.FindByEmail(email)
	if !ok || !VerifyPassword(password, u.Password) {
		return User{}, errors.InvalidCredentials()
	}
	return u, nil
}

// Update applies fn to the user with the given id and persists the result.
// If fn fails nothing is changed.
func (s *Store) Update(id string, fn func(*User) error) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexByID(id)
	if i < 0 {
		return User{}, errors.UserNotFound(id)
	}

	prev := s.users[i]
	u := prev
	if err := fn(&u); err != nil {
		return User{}, err
	}
	u.Email = normalizeEmail(u.Email)
	if j := s.indexByEmail(u.Email); j >= 0 && j != i {
		return User{}, errors.UserExists(u.Email)
	}

	s.users[i] = u
	if err := s.save(); err != nil {
		s.users[i] = prev
		return User{}, err
	}
	return u, nil
}

// Settings returns the user's settings with defaults for groups never set.
// A missing API key is generated and stored.
func (s *Store) Settings(id string) (models.Settings, error) {
	u, ok := s.FindByID(id)
	if !ok {
		return models.Settings{}, errors.UserNotFound(id)
	}
	if u.API == nil || u.API.Key == "" {
		var err error
		u, err = s.Update(id, func(u *User) error {
			key, err := GenerateAPIKey()
			if err != nil {
				return err
			}
			api := models.APISettings{Key: key}
			if u.API != nil {
				api.WebhookURL = u.API.WebhookURL
			}
			u.API = &api
			return nil
		})
		if err != nil {
			return models.Settings{}, err
		}
	}

	settings := models.Settings{
		Name:          u.Name,
		Email:         u.Email,
		Notifications: DefaultNotifications(),
		System:        DefaultSystem(),
		API:           *u.API,
		MonthlyBudget: u.MonthlyBudget,
	}
	if u.Notifications != nil {
		settings.Notifications = *u.Notifications
	}
	if u.System != nil {
		settings.System = *u.System
	}
	return settings, nil
}

// DefaultNotifications are the notification settings of a new user.
func DefaultNotifications() models.NotificationSettings {
	return models.NotificationSettings{
		Types: models.NotificationTypes{DeviceStatus: true, Energy: true, Security: true},
	}
}

// DefaultSystem are the display settings of a new user.
func DefaultSystem() models.SystemSettings {
	return models.SystemSettings{
		TemperatureUnit: "fahrenheit",
		Timezone:        "UTC",
		Theme:           "light",
	}
}

// HashPassword hashes a password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), HashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether plain matches the stored hash.
func VerifyPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// GenerateAPIKey returns 32 random bytes, hex encoded.
func GenerateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) indexByEmail(email string) int {
	email = normalizeEmail(email)
	for i, u := range s.users {
		if u.Email == email {
			return i
		}
	}
	return -1
}

func (s *Store) indexByID(id string) int {
	for i, u := range s.users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

// save writes the file through a temp file and rename. Callers hold s.mu.
func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create users directory: %w", err)
	}

	users := s.users
	if users == nil {
		users = []User{}
	}
	data, err := json.MarshalIndent(usersFile{Users: users}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode users: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write users file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace users file: %w", err)
	}
	return nil
}
