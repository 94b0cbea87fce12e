package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grovetools/homed/config"
	"github.com/sirupsen/logrus"
)

func TestNewLogger(t *testing.T) {
	t.Setenv("HOMED_HOME", t.TempDir())

	logger := NewLogger("test-component")
	if logger == nil {
		t.Fatal("Expected logger to be created")
	}
	if logger.Data["component"] != "test-component" {
		t.Errorf("Expected component to be 'test-component', got %v", logger.Data["component"])
	}
	if again := NewLogger("test-component"); again != logger {
		t.Error("Expected the cached logger to be returned")
	}
}

func TestLevelFromEnvironment(t *testing.T) {
	t.Setenv("HOMED_LOG_LEVEL", "warn")
	entry := build("env", Config{Level: "debug"}, os.Stderr)
	if entry.Logger.GetLevel() != logrus.WarnLevel {
		t.Errorf("Expected warn level, got %s", entry.Logger.GetLevel())
	}

	t.Setenv("HOMED_LOG_LEVEL", "")
	entry = build("cfg", Config{Level: "debug"}, os.Stderr)
	if entry.Logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("Expected debug level from config, got %s", entry.Logger.GetLevel())
	}

	entry = build("bad", Config{Level: "loud"}, os.Stderr)
	if entry.Logger.GetLevel() != logrus.InfoLevel {
		t.Errorf("Expected info fallback, got %s", entry.Logger.GetLevel())
	}
}

func TestNewLoggerWithConfig(t *testing.T) {
	t.Setenv("HOMED_HOME", t.TempDir())
	t.Setenv("HOMED_LOG_LEVEL", "")
	logPath := filepath.Join(t.TempDir(), "homed.log")

	cfg, err := config.LoadFromBytes([]byte(`
logging:
  level: debug
  file:
    enabled: true
    path: ` + logPath + `
    format: json
  format:
    structured_to_stderr: never
`))
	if err != nil {
		t.Fatal(err)
	}

	logger, err := NewLoggerWithConfig("daemon", cfg)
	if err != nil {
		t.Fatal(err)
	}
	logger.WithField("session", "abc").Debug("Session authenticated")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	var line map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(data), &line); err != nil {
		t.Fatalf("Expected a JSON line, got %q: %v", data, err)
	}
	if line["msg"] != "Session authenticated" || line["session"] != "abc" || line["component"] != "daemon" {
		t.Errorf("Unexpected log line: %v", line)
	}
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name    string
		config  FormatConfig
		fields  logrus.Fields
		want    []string
		notWant []string
	}{
		{
			name:   "default",
			config: FormatConfig{},
			fields: logrus.Fields{"component": "hub", "session": "s1", "path": "devices.kitchenLights"},
			want:   []string{"[INFO]", "hub", "State updated", "path=devices.kitchenLights session=s1"},
		},
		{
			name:    "without component",
			config:  FormatConfig{DisableComponent: true, DisableTimestamp: true},
			fields:  logrus.Fields{"component": "hub"},
			want:    []string{"[INFO] State updated"},
			notWant: []string{"hub"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := logrus.New()
			logger.SetOutput(&buf)
			logger.SetFormatter(&TextFormatter{Config: tt.config})
			logger.WithFields(tt.fields).Info("State updated")

			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("Expected output to contain %q, got: %s", w, out)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(out, nw) {
					t.Errorf("Expected output not to contain %q, got: %s", nw, out)
				}
			}
		})
	}
}

func TestWarningLevelIsShortened(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&TextFormatter{Config: FormatConfig{DisableTimestamp: true}})
	logger.Warn("Dropped slow subscriber")

	if !strings.HasPrefix(buf.String(), "[WARN]") {
		t.Errorf("Expected [WARN] prefix, got: %s", buf.String())
	}
}

func TestPrettyLogger(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrettyLogger().WithWriter(&buf)
	p.Success("Logged in")
	p.Field("user", "ada@example.com")

	out := buf.String()
	if !strings.Contains(out, "Logged in") || !strings.Contains(out, "ada@example.com") {
		t.Errorf("Unexpected output: %s", out)
	}
}

func TestFormatValueQuoting(t *testing.T) {
	tests := map[interface{}]string{
		"devices.kitchenLights":   "devices.kitchenLights",
		"brightness out of range": `"brightness out of range"`,
		"":                        `""`,
		42:                        "42",
	}
	for in, want := range tests {
		if got := formatValue(in); got != want {
			t.Errorf("formatValue(%v) = %s, want %s", in, got, want)
		}
	}
	if got := formatValue(errors.New("no such device")); got != `"no such device"` {
		t.Errorf("error value = %s", got)
	}
}
