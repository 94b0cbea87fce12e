package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/grovetools/homed/config"
	"github.com/grovetools/homed/errors"
	"github.com/grovetools/homed/pkg/models"
	"github.com/grovetools/homed/pkg/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every homed directory at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOMED_HOME", home)
	t.Setenv("HOMED_TOKEN", "")
	return home
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTokenRoundTrip(t *testing.T) {
	isolate(t)

	_, err := loadToken()
	assert.True(t, errors.Is(err, errors.ErrCodeNotAuthenticated))

	require.NoError(t, saveToken("abc.def.ghi"))
	info, err := os.Stat(paths.TokenFilePath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	token, err := loadToken()
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	t.Setenv("HOMED_TOKEN", "from-env")
	token, err = loadToken()
	require.NoError(t, err)
	assert.Equal(t, "from-env", token)
}

func TestStateFallsBackToConfiguredHome(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "homed.yml"), []byte(`version: "1.0"
home:
  devices:
    porch:
      kind: light
      name: Porch
`), 0644))

	out, err := execute(t, "state", "--json", "--addr", "127.0.0.1:1", "-c", dir)
	require.NoError(t, err)

	var st models.State
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	require.Contains(t, st.Devices, "porch")
	assert.Equal(t, "Porch", st.Devices["porch"].Name)
}

func TestSetRequiresRunningDaemon(t *testing.T) {
	isolate(t)

	_, err := execute(t, "set", "system", `{"armed":true}`, "--addr", "127.0.0.1:1", "-c", t.TempDir())
	assert.True(t, errors.Is(err, errors.ErrCodeDaemonNotRunning))

	_, err = execute(t, "set", "system", `{"armed":`, "--addr", "127.0.0.1:1")
	assert.ErrorContains(t, err, "not valid JSON")
}

func TestBudgetValidatesAmount(t *testing.T) {
	isolate(t)

	for _, arg := range []string{"-5", "lots", "NaN", "+Inf"} {
		_, err := execute(t, "budget", "--addr", "127.0.0.1:1", "--", arg)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput), "budget %s: %v", arg, err)
	}

	_, err := execute(t, "budget", "25", "--addr", "127.0.0.1:1")
	assert.True(t, errors.Is(err, errors.ErrCodeDaemonNotRunning))
}

func TestBudgetStatusStyles(t *testing.T) {
	assert.Equal(t, "error", budgetStatus(models.BudgetExceeded))
	assert.Equal(t, "warning", budgetStatus(models.BudgetWarning))
	assert.Equal(t, "success", budgetStatus(models.BudgetOK))
	assert.Equal(t, "info", budgetStatus(models.BudgetUnset))
}

func TestStatusStopped(t *testing.T) {
	isolate(t)

	out, err := execute(t, "status", "-c", t.TempDir())
	assert.True(t, IsSilent(err))
	assert.Contains(t, out, "Stopped")
}

func TestPrintState(t *testing.T) {
	s := models.DefaultState()
	s.System.Armed = true

	var buf bytes.Buffer
	printState(&buf, s)
	out := buf.String()

	for _, want := range []string{"Kitchen Lights", "100% x2", "target 72.0°F", "eco", "sunny", "armed"} {
		assert.Contains(t, out, want)
	}
}

func TestConfigPathResolvesAgainstProjectFile(t *testing.T) {
	layered := &config.LayeredConfig{Layers: []config.Layer{
		{Source: config.SourceGlobal, Path: "/home/u/.config/homed/homed.yml"},
		{Source: config.SourceProject, Path: "/srv/home/homed.yml"},
	}}

	got, err := configPath(layered, "web/dist")
	require.NoError(t, err)
	assert.Equal(t, "/srv/home/web/dist", got)

	got, err = configPath(layered, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRootRegistersCommands(t *testing.T) {
	root := NewRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "stop", "status", "login", "logout", "user", "state", "set", "sessions", "analytics", "budget", "config", "watch", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}
