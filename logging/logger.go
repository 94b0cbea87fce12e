// Package logging builds the per-component logrus loggers used across homed.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grovetools/homed/config"
	"github.com/grovetools/homed/pkg/paths"
	"github.com/grovetools/homed/util/pathutil"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
)

// NewLogger creates and returns a pre-configured logger for a specific component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	var logCfg Config
	if cfg, err := config.LoadDefault(); err == nil {
		if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
			logrus.Warnf("Failed to parse 'logging' config: %v", err)
		}
	}

	entry := build(component, logCfg, os.Stderr)
	loggers[component] = entry
	return entry
}

// NewLoggerWithConfig creates a logger from an already loaded config and
// replaces any cached logger for component. The daemon uses it so the
// --config file also drives logging.
func NewLoggerWithConfig(component string, cfg *config.Config) (*logrus.Entry, error) {
	var logCfg Config
	if cfg != nil {
		if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
			return nil, err
		}
	}

	entry := build(component, logCfg, os.Stderr)

	loggersMu.Lock()
	loggers[component] = entry
	loggersMu.Unlock()
	return entry, nil
}

func build(component string, logCfg Config, stderr *os.File) *logrus.Entry {
	logger := logrus.New()

	levelStr := "info"
	if env := os.Getenv("HOMED_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if logCfg.Level != "" {
		levelStr = logCfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if os.Getenv("HOMED_LOG_CALLER") == "true" || logCfg.ReportCaller {
		logger.SetReportCaller(true)
	}

	switch logCfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	default:
		logger.SetFormatter(&TextFormatter{Config: logCfg.Format})
	}

	var writers []io.Writer
	if logCfg.File.Enabled {
		if w := openFileSink(logger, component, logCfg.File); w != nil {
			writers = append(writers, w)
		}
	}
	if toStderr(logCfg.Format.StructuredToStderr, logger.GetLevel(), stderr) {
		writers = append(writers, stderr)
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	return logger.WithField("component", component)
}

// toStderr decides whether structured logs go to stderr. In "auto" mode
// they do when debugging or when stderr is not a terminal.
func toStderr(mode string, level logrus.Level, stderr *os.File) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	isDebug := os.Getenv("HOMED_DEBUG") == "1" || level >= logrus.DebugLevel
	isInteractive := isatty.IsTerminal(stderr.Fd()) || isatty.IsCygwinTerminal(stderr.Fd())
	return isDebug || !isInteractive
}

// openFileSink opens the configured log file for appending.
func openFileSink(logger *logrus.Logger, component string, sink FileSinkConfig) io.Writer {
	path, err := pathutil.Expand(sink.Path)
	if err != nil {
		logger.Warnf("Invalid log file path %s: %v", sink.Path, err)
		return nil
	}
	if path == "" {
		path = filepath.Join(paths.StateDir(), "logs",
			fmt.Sprintf("%s-%s.log", component, time.Now().Format("2006-01-02")))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logger.Warnf("Failed to create log directory %s: %v", filepath.Dir(path), err)
		return nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger.Warnf("Failed to open log file %s: %v", path, err)
		return nil
	}
	if sink.Format == "json" {
		// The console keeps its own formatter.
		logger.AddHook(&fileHook{writer: file, formatter: &logrus.JSONFormatter{}})
		return nil
	}
	return file
}

// fileHook writes every entry to a writer with its own formatter.
type fileHook struct {
	writer    io.Writer
	formatter logrus.Formatter
	mu        sync.Mutex
}

func (h *fileHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.writer.Write(line)
	return err
}
