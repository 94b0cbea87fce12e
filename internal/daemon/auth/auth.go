// Package auth issues and verifies the bearer tokens that admit clients to
// the state channel and the HTTP API.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/grovetools/homed/errors"
)

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = time.Hour

// Claims are the token claims. The user id is carried both as "id", which
// the browser dashboard reads, and as the standard subject.
type Claims struct {
	User string `json:"id"`
	jwt.RegisteredClaims
}

// UserID returns the authenticated user id.
func (c *Claims) UserID() string {
	if c.User != "" {
		return c.User
	}
	return c.Subject
}

// Authenticator signs and verifies HS256 tokens with a shared secret.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		a.now = now
	}
}

// New creates an Authenticator. A non-positive ttl selects DefaultTTL.
func New(secret string, ttl time.Duration, opts ...Option) *Authenticator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	a := &Authenticator{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// TTL returns the lifetime of issued tokens.
func (a *Authenticator) TTL() time.Duration {
	return a.ttl
}

// Issue mints a token for userID.
func (a *Authenticator) Issue(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("cannot issue a token without a user id")
	}
	now := a.now()
	claims := Claims{
		User: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Verify checks the signature and expiry of token and returns its claims.
// Every failure is an AUTH_FAILED error.
func (a *Authenticator) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, errors.AuthFailed(fmt.Errorf("missing token"))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, errors.AuthFailed(err)
	}
	if claims.UserID() == "" {
		return nil, errors.AuthFailed(fmt.Errorf("token has no subject"))
	}
	return claims, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
