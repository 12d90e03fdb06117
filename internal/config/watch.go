package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// WatchLogLevel watches the config file at path and calls onChange with the new
// logging.level whenever the file is written or replaced. Only the log level is
// hot-reloaded; every other setting still requires a restart.
//
// The directory is watched rather than the file itself so that editors and
// Kubernetes ConfigMap updates, which replace the file through a rename, are seen.
// The watcher stops when ctx is cancelled.
func WatchLogLevel(ctx context.Context, path string, onChange func(level string)) error {
	if path == "" {
		return fmt.Errorf("config file path is required for watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}

	clean := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(clean)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != clean {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				level, err := readLogLevel(clean)
				if err != nil {
					slog.Warn("config reload failed", "path", clean, "error", err)
					continue
				}
				onChange(level)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "error", err)
			}
		}
	}()

	return nil
}

// readLogLevel re-reads only logging.level from the file.
func readLogLevel(path string) (string, error) {
	v := viper.New()
	v.SetDefault("logging.level", "info")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return "", err
	}
	level := v.GetString("logging.level")
	switch level {
	case "debug", "info", "warn", "error":
		return level, nil
	default:
		return "", fmt.Errorf("invalid logging level: %s", level)
	}
}
