// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/rs/zerolog/log"
)

// Watch calls apply with the log level from the configuration file every time
// the file is written. Nothing else is reloaded, the device geometry cannot
// change while it runs. Blocks until ctx is done.
func Watch(ctx context.Context, path string, apply func(level int)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Editors often replace the file instead of writing it, hence the
	// directory is watched.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	name := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			level, err := readLogLevel(path)
			if err != nil {
				log.Info().Err(err).Str("path", path).Msg("Configuration reload failed")
				continue
			}

			log.Info().Int("level", level).Msg("Log level reloaded")
			apply(level)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Info().Err(err).Send()
		}
	}
}

func readLogLevel(path string) (int, error) {
	var c Config
	if err := cleanenv.ReadConfig(path, &c); err != nil {
		return 0, err
	}

	return c.Log.Level, nil
}
