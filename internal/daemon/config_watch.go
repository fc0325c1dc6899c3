package daemon

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.olrik.dev/acp/internal/core"
)

// reloadConfig re-reads config.hcl and hands the new knobs to the loop,
// which applies them before its next cycle. A broken file keeps the
// previous configuration.
func (d *Daemon) reloadConfig() error {
	oldConfig := core.Config
	configPath := core.GetConfigFilePath()

	newConfig, err := core.LoadConfig(configPath)
	if err != nil {
		slog.Error("Configuration file has errors, keeping previous configuration",
			"file", configPath,
			"error", err)
		return fmt.Errorf("config parse error: %w", err)
	}

	// Paths are fixed for the lifetime of the daemon
	newConfig.ConfigPath = oldConfig.ConfigPath
	newConfig.DataPath = oldConfig.DataPath
	core.Config = newConfig

	if d.loop != nil {
		detector, client := NewPortal(newConfig, slog.Default())
		d.loop.Reconfigure(OptionsFromConfig(newConfig), detector, client)
	}

	if newConfig.Schedule.Debounce != oldConfig.Schedule.Debounce ||
		newConfig.Schedule.QueueSize != oldConfig.Schedule.QueueSize ||
		newConfig.Watch != oldConfig.Watch {
		slog.Warn("Watch and queue settings take effect after a daemon restart")
	}

	if d.database != nil {
		d.database.LogDaemonEvent("config_reload", configPath)
	}
	return nil
}

// watchConfig reloads the configuration when config.hcl changes
func (d *Daemon) watchConfig() {
	configPath := core.GetConfigFilePath()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("Failed to create config file watcher", "error", err)
		return
	}

	if err := watcher.Add(configPath); err != nil {
		slog.Debug("Not watching config file", "error", err, "path", configPath)
		watcher.Close()
		return
	}

	var reloadTimer *time.Timer
	var reloadMutex sync.Mutex

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-d.ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				slog.Debug("Filesystem event on config file", "event", event.Op.String(), "file", event.Name)

				// Editors that save atomically drop the original inode from
				// the watch list, so the watch has to be re-added
				if event.Op&(fsnotify.Rename|fsnotify.Remove|fsnotify.Create) != 0 {
					go rewatch(watcher, configPath)
				}

				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				reloadMutex.Lock()
				// Debounce: wait 500ms after last change before reloading
				if reloadTimer != nil {
					reloadTimer.Stop()
				}
				reloadTimer = time.AfterFunc(500*time.Millisecond, func() {
					slog.Info("Configuration file changed, reloading...", "file", configPath)
					if err := d.reloadConfig(); err == nil {
						slog.Info("Configuration reloaded successfully")
					}
				})
				reloadMutex.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("Config file watcher error", "error", err)
			}
		}
	}()

	slog.Info("Watching configuration file for changes")
}

// rewatch re-adds the watch with backoff (10ms, 20ms, 40ms, 80ms) while
// the file is being replaced
func rewatch(watcher *fsnotify.Watcher, path string) {
	for attempt := 0; attempt < 5; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(10<<uint(attempt-1)) * time.Millisecond)
		}

		watcher.Remove(path)
		err := watcher.Add(path)
		if err == nil {
			slog.Debug("Re-added config watch", "path", path, "attempt", attempt+1)
			return
		}
		if attempt == 4 {
			slog.Error("Failed to re-add config watch after multiple attempts", "error", err, "path", path)
		}
	}
}
