package config

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file on every write and passes the result to
// onChange. A file that fails to load is logged and skipped, the previous
// config stays active. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, log *slog.Logger, path string, onChange func(*Config)) error {
	const op = "config.Watch"

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	log.Info("watching config for changes", slog.String("op", op), slog.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// editors save via rename, so a Create counts as a write
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				log.Error("config reload failed, keeping previous",
					slog.String("op", op), slog.String("path", path), slog.String("error", err.Error()))
				continue
			}

			log.Info("config reloaded", slog.String("op", op), slog.String("methodology", cfg.Methodology.Version))
			onChange(cfg)

			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("config watcher error", slog.String("op", op), slog.String("error", err.Error()))
		}
	}
}
