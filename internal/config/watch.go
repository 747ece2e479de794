package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watch re-reads path whenever it changes on disk and hands every valid
// result to onChange. Invalid edits are logged and the previous values stay
// in effect.
func Watch(path string, logger zerolog.Logger, onChange func(*Config)) {
	if path == "" {
		path = DefaultPath
	}
	log := logger.With().Str("component", "config").Logger()

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("config watch disabled")
		return
	}

	v.OnConfigChange(func(event fsnotify.Event) {
		if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			log.Warn().Err(err).Str("path", event.Name).Msg("ignoring invalid config change")
			return
		}
		log.Info().Str("path", event.Name).Msg("config reloaded")
		onChange(cfg)
	})
	v.WatchConfig()
}
