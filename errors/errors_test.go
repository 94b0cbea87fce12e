package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestHomeError(t *testing.T) {
	// Test basic error creation
	err := New(ErrCodeInvalidPath, "bad path")
	if err.Code != ErrCodeInvalidPath {
		t.Errorf("expected code %s, got %s", ErrCodeInvalidPath, err.Code)
	}

	// Test error wrapping
	cause := fmt.Errorf("signature is invalid")
	wrapped := Wrap(cause, ErrCodeAuthFailed, "authentication failed")

	if wrapped.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	// Test Is function
	if !Is(wrapped, ErrCodeAuthFailed) {
		t.Error("Is should return true for matching code")
	}

	if Is(wrapped, ErrCodeInvalidPath) {
		t.Error("Is should return false for non-matching code")
	}

	// Test WithDetail
	detailed := err.WithDetail("path", "devices.x").WithDetail("attempt", 2)
	if detailed.Details["path"] != "devices.x" {
		t.Error("WithDetail should add details")
	}
}

func TestGetCodeThroughFmtWrap(t *testing.T) {
	inner := InvalidInput("system", "unknown mode")
	outer := fmt.Errorf("apply: %w", inner)

	if got := GetCode(outer); got != ErrCodeInvalidInput {
		t.Errorf("expected %s, got %s", ErrCodeInvalidInput, got)
	}
	if GetCode(fmt.Errorf("plain")) != "" {
		t.Error("plain errors have no code")
	}
	if Is(nil, ErrCodeInternal) {
		t.Error("nil is never a HomeError")
	}
}

func TestErrorConstructors(t *testing.T) {
	err := InvalidPath("devices.nonexistent.field")
	if err.Code != ErrCodeInvalidPath {
		t.Errorf("expected code %s, got %s", ErrCodeInvalidPath, err.Code)
	}
	if err.Details["path"] != "devices.nonexistent.field" {
		t.Error("InvalidPath should include path detail")
	}

	if AuthFailed(nil).Cause != nil {
		t.Error("AuthFailed(nil) should not carry a cause")
	}

	creds := InvalidCredentials()
	if strings.Contains(creds.Error(), "@") {
		t.Error("InvalidCredentials must not leak the email")
	}

	nf := NotAuthenticated("getState")
	if nf.Details["event"] != "getState" {
		t.Error("NotAuthenticated should include the event")
	}
}

func TestToJSON(t *testing.T) {
	out := UserExists("a@b.c").ToJSON()
	if !strings.Contains(out, `"USER_EXISTS"`) || !strings.Contains(out, `"a@b.c"`) {
		t.Errorf("unexpected JSON: %s", out)
	}
}
