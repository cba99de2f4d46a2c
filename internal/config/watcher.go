package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"precioverdadero/internal/models"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const defaultDebounce = 250 * time.Millisecond

// FileWatcher calls onChange after a file has been written, created or
// replaced. Bursts of events inside the debounce window collapse into one call.
// The parent directory is watched so atomic-rename saves are seen.
type FileWatcher struct {
	path     string
	logger   *logrus.Logger
	debounce time.Duration
	onChange func()
}

func NewFileWatcher(path string, logger *logrus.Logger, onChange func()) *FileWatcher {
	return &FileWatcher{
		path:     filepath.Clean(path),
		logger:   logger,
		debounce: defaultDebounce,
		onChange: onChange,
	}
}

// Run blocks until ctx is cancelled.
func (fw *FileWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(fw.path)); err != nil {
		return err
	}

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(fw.debounce)
			} else {
				timer.Reset(fw.debounce)
			}
			timerCh = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fw.logger.WithError(err).WithField("path", fw.path).Warn("File watcher error")

		case <-timerCh:
			timerCh = nil
			fw.logger.WithField("path", fw.path).Debug("Watched file changed")
			fw.onChange()
		}
	}
}

// ConfigWatcher keeps the latest valid configuration and notifies
// callbacks when the file changes. Invalid edits are logged and ignored.
type ConfigWatcher struct {
	configPath string
	logger     *logrus.Logger
	mu         sync.RWMutex
	config     *models.Config
	callbacks  []func(*models.Config)
}

func NewConfigWatcher(configPath string, logger *logrus.Logger) *ConfigWatcher {
	return &ConfigWatcher{
		configPath: configPath,
		logger:     logger,
	}
}

// Start loads the file once, then watches it until ctx is cancelled.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	config, err := LoadConfig(cw.configPath)
	if err != nil {
		return err
	}
	cw.mu.Lock()
	cw.config = config
	cw.mu.Unlock()

	cw.logger.WithField("path", cw.configPath).Info("Configuration watcher started")
	err = NewFileWatcher(cw.configPath, cw.logger, cw.reloadConfig).Run(ctx)
	cw.logger.Info("Configuration watcher stopping")
	return err
}

// GetConfig returns the current configuration
func (cw *ConfigWatcher) GetConfig() *models.Config {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.config
}

// OnConfigChange registers a callback run after every successful reload
func (cw *ConfigWatcher) OnConfigChange(callback func(*models.Config)) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

func (cw *ConfigWatcher) reloadConfig() {
	newConfig, err := LoadConfig(cw.configPath)
	if err != nil {
		cw.logger.WithError(err).Error("Failed to reload configuration")
		return
	}

	cw.mu.Lock()
	oldConfig := cw.config
	cw.config = newConfig
	callbacks := append([]func(*models.Config){}, cw.callbacks...)
	cw.mu.Unlock()

	cw.logger.Info("Configuration reloaded successfully")
	cw.logConfigChanges(oldConfig, newConfig)

	for _, cb := range callbacks {
		cw.runCallback(cb, newConfig)
	}
}

func (cw *ConfigWatcher) runCallback(cb func(*models.Config), cfg *models.Config) {
	defer func() {
		if r := recover(); r != nil {
			cw.logger.WithField("panic", r).Error("Config change callback panicked")
		}
	}()
	cb(cfg)
}

func (cw *ConfigWatcher) logConfigChanges(old, new *models.Config) {
	if old == nil {
		return
	}
	if old.LogLevel != new.LogLevel {
		cw.logger.WithFields(logrus.Fields{"old": old.LogLevel, "new": new.LogLevel}).Info("Log level changed")
	}
	if old.RetentionDays != new.RetentionDays {
		cw.logger.WithFields(logrus.Fields{"old": old.RetentionDays, "new": new.RetentionDays}).Info("Retention days changed")
	}
	if old.Client.MinSyncIntervalMs != new.Client.MinSyncIntervalMs {
		cw.logger.WithFields(logrus.Fields{
			"old": old.Client.MinSyncIntervalMs,
			"new": new.Client.MinSyncIntervalMs,
		}).Info("Minimum sync interval changed")
	}
}
