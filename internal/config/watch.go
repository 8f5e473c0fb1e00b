package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Watch loads the config at path, hands it to onUpdate and then polls the
// file's mtime, re-loading and re-applying it on change. Reload failures are
// logged and the previous config stays in effect.
func Watch(ctx context.Context, path string, interval time.Duration, logger *zerolog.Logger, onUpdate func(*Config)) error {
	if path == "" {
		path = DefaultPath
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	log := logger.With().Str("component", "config_watch").Str("path", path).Logger()

	cfg, err := Load(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(cfg)
	}

	go func(lastMod time.Time) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			info, err := os.Stat(path)
			if err != nil || !info.ModTime().After(lastMod) {
				continue
			}
			next, err := Load(path)
			if err != nil {
				log.Warn().Err(err).Msg("config reload failed, keeping previous")
				continue
			}
			lastMod = info.ModTime()
			log.Info().Str("log_level", next.LogLevel().String()).Msg("config reloaded")
			if onUpdate != nil {
				onUpdate(next)
			}
		}
	}(info.ModTime())

	return nil
}
