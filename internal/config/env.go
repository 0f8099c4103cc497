package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envOverrides are read from the environment after the file is decoded.
// They keep secrets out of the config file.
type envOverrides struct {
	TelegramToken string `env:"NOTIFSND_TELEGRAM_TOKEN"`
	HTTPToken     string `env:"NOTIFSND_HTTP_TOKEN"`
	StorageDriver string `env:"NOTIFSND_STORAGE_DRIVER"`
	StoragePath   string `env:"NOTIFSND_STORAGE_PATH"`
	LogLevel      string `env:"NOTIFSND_LOG_LEVEL"`
}

func applyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Telegram.Token, o.TelegramToken)
	set(&cfg.Sources.HTTP.Token, o.HTTPToken)
	set(&cfg.Storage.Driver, o.StorageDriver)
	set(&cfg.Storage.Path, o.StoragePath)
	set(&cfg.Logging.Level, o.LogLevel)
	return nil
}
