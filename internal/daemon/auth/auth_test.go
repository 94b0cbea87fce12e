package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/grovetools/homed/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestIssueAndVerify(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	a := New("s3cret", 0, WithClock(clock.Now))
	assert.Equal(t, DefaultTTL, a.TTL())

	token, err := a.Issue("user-1")
	require.NoError(t, err)

	claims, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, clock.t.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
}

func TestVerifyRejectsExpired(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	a := New("s3cret", time.Hour, WithClock(clock.Now))

	token, err := a.Issue("user-1")
	require.NoError(t, err)

	clock.t = clock.t.Add(59 * time.Minute)
	_, err = a.Verify(token)
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * time.Minute)
	_, err = a.Verify(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeAuthFailed))
}

func TestVerifyRejectsForgedTokens(t *testing.T) {
	a := New("s3cret", time.Hour)
	other := New("not-the-secret", time.Hour)

	forged, err := other.Issue("user-1")
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{User: "user-1"}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		User:             "user-1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	valid, err := a.Issue("user-1")
	require.NoError(t, err)
	tampered := valid[:strings.LastIndex(valid, ".")+1] + "AAAA"

	for name, token := range map[string]string{
		"empty":      "",
		"garbage":    "not.a.token",
		"wrong key":  forged,
		"no expiry":  noExpiry,
		"no subject": noSubject,
		"alg none":   unsigned,
		"tampered":   tampered,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.Verify(token)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeAuthFailed, errors.GetCode(err))
		})
	}
}

func TestIssueRequiresUser(t *testing.T) {
	_, err := New("s3cret", time.Hour).Issue("")
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def", "abc.def", true},
		{"bearer abc", "abc", true},
		{"  Bearer   abc  ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, got, tt.header)
	}
}
