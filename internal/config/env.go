package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "PAWBOT"

// envOverrides are read from PAWBOT_<NAME>. Set values replace file values.
type envOverrides struct {
	TelegramToken string `envconfig:"TELEGRAM_TOKEN"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
	StorageDriver string `envconfig:"STORAGE_DRIVER"`
	StoragePath   string `envconfig:"STORAGE_PATH"`
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	Timezone      string `envconfig:"TIMEZONE"`
}

func applyEnv(cfg *Config) error {
	var e envOverrides
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Telegram.Token, e.TelegramToken)
	set(&cfg.Logging.Level, e.LogLevel)
	set(&cfg.Storage.Driver, e.StorageDriver)
	set(&cfg.Storage.Path, e.StoragePath)
	set(&cfg.Storage.RedisAddr, e.RedisAddr)
	set(&cfg.Storage.RedisPassword, e.RedisPassword)
	set(&cfg.Scheduler.Timezone, e.Timezone)
	return nil
}
