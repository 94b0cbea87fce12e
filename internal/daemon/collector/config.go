package collector

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/homed/config"
	"github.com/grovetools/homed/internal/daemon/store"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is how long the config collector waits for writes to
// settle before reloading.
const DefaultDebounce = 200 * time.Millisecond

// ConfigCollector watches the configuration files and pushes a new energy
// tariff whenever they change. Other settings need a restart.
type ConfigCollector struct {
	dirs     []string
	load     func() (*config.Config, error)
	debounce time.Duration
	logger   *logrus.Entry
}

// NewConfigCollector watches dirs and reloads with load.
func NewConfigCollector(dirs []string, load func() (*config.Config, error), debounce time.Duration, logger *logrus.Entry) *ConfigCollector {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &ConfigCollector{
		dirs:     dirs,
		load:     load,
		debounce: debounce,
		logger:   logger,
	}
}

// Name returns the collector's name.
func (c *ConfigCollector) Name() string { return "config" }

// Run watches until ctx is canceled.
func (c *ConfigCollector) Run(ctx context.Context, st *store.Store, changes chan<- Change) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := 0
	for _, dir := range c.dirs {
		if err := watcher.Add(dir); err != nil {
			// A missing global config dir is normal.
			c.logger.WithError(err).WithField("dir", dir).Debug("Not watching config directory")
			continue
		}
		watched++
	}
	if watched == 0 {
		c.logger.Debug("No config directories to watch")
		<-ctx.Done()
		return nil
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !config.IsConfigFile(event.Name) {
				continue
			}
			c.logger.WithField("file", filepath.Base(event.Name)).Debugf("Config event op=%v", event.Op)

			// Trailing-edge debounce: reload once writes stop.
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			file := event.Name
			timer = time.AfterFunc(c.debounce, func() {
				c.reload(ctx, file, changes)
			})
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.WithError(err).Error("Config watcher error")
		}
	}
}

func (c *ConfigCollector) reload(ctx context.Context, file string, changes chan<- Change) {
	cfg, err := c.load()
	if err != nil {
		c.logger.WithError(err).WithField("file", filepath.Base(file)).Warn("Ignoring invalid configuration")
		return
	}

	tariff := cfg.Tariff()
	c.logger.WithFields(logrus.Fields{
		"file":         filepath.Base(file),
		"rate_per_kwh": tariff.RatePerKWh,
	}).Info("Configuration reloaded")

	select {
	case changes <- Change{Source: "config", Tariff: &tariff}:
	case <-ctx.Done():
	}
}
