package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grovetools/homed/errors"
	"github.com/grovetools/homed/pkg/energy"
	"github.com/grovetools/homed/pkg/models"
)

// isolate points the global config directory at an empty temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOMED_HOME", home)
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDefaultsWithoutFiles(t *testing.T) {
	isolate(t)
	t.Setenv("JWT_SECRET", "")

	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.Listen != DefaultListen {
		t.Errorf("listen = %q", cfg.Server.Listen)
	}
	if cfg.Server.MaxMessageSize != DefaultMaxMessage {
		t.Errorf("max message size = %d", cfg.Server.MaxMessageSize)
	}
	if cfg.Auth.Secret != "your-secret-key" {
		t.Errorf("secret = %q", cfg.Auth.Secret)
	}
	if cfg.Tariff() != energy.DefaultTariff() {
		t.Errorf("tariff = %+v", cfg.Tariff())
	}

	d, err := cfg.ParseDurations()
	if err != nil {
		t.Fatal(err)
	}
	if d.TokenTTL != time.Hour || d.PingInterval != 25*time.Second || d.PongTimeout != time.Minute {
		t.Errorf("durations = %+v", d)
	}

	state := cfg.InitialState()
	if len(state.Devices) != 3 {
		t.Errorf("expected the built-in devices, got %v", state.DeviceIDs())
	}
}

func TestSecretFromEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := LoadFromBytes([]byte("version: \"1.0\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Auth.Secret != "from-env" {
		t.Errorf("secret = %q", cfg.Auth.Secret)
	}
}

func TestLayering(t *testing.T) {
	home := isolate(t)
	t.Setenv("HOMED_TEST_RATE", "0.2")

	writeFile(t, filepath.Join(home, "config", "homed.toml"), `
version = "1.0"

[server]
listen = "0.0.0.0:4000"
ping_interval = "10s"
max_message_size = 131072

[energy]
rate_per_kwh = 0.30

[logging]
level = "debug"
`)

	project := t.TempDir()
	writeFile(t, filepath.Join(project, "homed.yml"), `
energy:
  rate_per_kwh: ${HOMED_TEST_RATE}
home:
  weather: cloudy
  devices:
    porch:
      kind: light
      name: Porch Light
      count: 3
logging:
  report_caller: true
`)
	writeFile(t, filepath.Join(project, "homed.override.yml"), `
server:
  listen: "127.0.0.1:5000"
`)

	sub := filepath.Join(project, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	layered, err := LoadLayered(sub)
	if err != nil {
		t.Fatalf("LoadLayered: %v", err)
	}
	if len(layered.Layers) != 3 {
		t.Fatalf("expected 3 layers, got %+v", layered.Layers)
	}
	wantSources := []ConfigSource{SourceGlobal, SourceProject, SourceOverride}
	for i, l := range layered.Layers {
		if l.Source != wantSources[i] {
			t.Errorf("layer %d source = %s, want %s", i, l.Source, wantSources[i])
		}
	}

	cfg := layered.Final
	if cfg.Server.Listen != "127.0.0.1:5000" {
		t.Errorf("override not applied: listen = %q", cfg.Server.Listen)
	}
	if cfg.Server.PingInterval != "10s" {
		t.Errorf("global value lost: ping_interval = %q", cfg.Server.PingInterval)
	}
	if cfg.Server.MaxMessageSize != 131072 {
		t.Errorf("global value lost: max_message_size = %d", cfg.Server.MaxMessageSize)
	}
	if cfg.Energy.RatePerKWh != 0.2 {
		t.Errorf("project value not applied: rate = %v", cfg.Energy.RatePerKWh)
	}

	// Extension sections from different layers merge key by key.
	var logCfg struct {
		Level        string `yaml:"level"`
		ReportCaller bool   `yaml:"report_caller"`
	}
	if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
		t.Fatal(err)
	}
	if logCfg.Level != "debug" || !logCfg.ReportCaller {
		t.Errorf("logging extension = %+v", logCfg)
	}

	state := cfg.InitialState()
	porch, ok := state.Devices["porch"]
	if !ok || len(state.Devices) != 1 {
		t.Fatalf("devices = %v", state.DeviceIDs())
	}
	if porch.Kind != models.KindLight || porch.Count != 3 || porch.Brightness != 100 || porch.Name != "Porch Light" {
		t.Errorf("porch = %+v", porch)
	}
	if state.Environment.Weather != "cloudy" {
		t.Errorf("weather = %q", state.Environment.Weather)
	}

	dirs := WatchDirs(sub)
	if len(dirs) != 2 || dirs[1] != project {
		t.Errorf("watch dirs = %v", dirs)
	}
}

func TestValidationErrors(t *testing.T) {
	isolate(t)

	tests := map[string]string{
		"bad duration":    "server:\n  ping_interval: soon\n",
		"negative rate":   "energy:\n  rate_per_kwh: -1\n",
		"unknown kind":    "home:\n  devices:\n    fan:\n      kind: fan\n",
		"brightness":      "home:\n  devices:\n    lamp:\n      kind: light\n      brightness: 150\n",
		"mixed fields":    "home:\n  devices:\n    lamp:\n      kind: light\n      target: 70\n",
		"humidity":        "home:\n  humidity: 90\n",
		"unknown field":   "server:\n  port: 80\n",
		"bad listen":      "server:\n  listen: nowhere\n",
		"bad device id":   "home:\n  devices:\n    \"9lamp\":\n      kind: light\n",
		"zero send queue": "server:\n  send_buffer: -3\n",
		"tiny frames":     "server:\n  max_message_size: 100\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(content))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, errors.ErrCodeConfigInvalid) {
				t.Errorf("expected CONFIG_INVALID, got %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if !errors.Is(err, errors.ErrCodeConfigNotFound) {
		t.Errorf("expected CONFIG_NOT_FOUND, got %v", err)
	}
}

func TestIsConfigFile(t *testing.T) {
	for name, want := range map[string]bool{
		"/x/homed.yml":          true,
		"homed.toml":            true,
		"/x/homed.override.yml": true,
		"/x/other.yml":          false,
		"/x/homed.yml.swp":      false,
	} {
		if got := IsConfigFile(name); got != want {
			t.Errorf("IsConfigFile(%q) = %v", name, got)
		}
	}
}

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"rate_per_kwh"`, `"allowed_origins"`, `"thermostat"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("schema is missing %s", want)
		}
	}
}
