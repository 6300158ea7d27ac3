package app

import (
	"strings"
	"time"

	"pawbot/internal/config"
	"pawbot/internal/notifier"
	"pawbot/internal/storage"
	"pawbot/internal/task/engine"
	telegram "pawbot/internal/transport/telegram/adapter"
	logx "pawbot/pkg/logx"
)

// Durations below were checked by config.Validate; MustDuration only
// supplies the default for empty values.

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled:    cfg.Logging.File.Enabled,
			Path:       cfg.Logging.File.Path,
			MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
			MaxBackups: cfg.Logging.File.MaxBackups,
			MaxAgeDays: cfg.Logging.File.MaxAgeDays,
		},
	}
}

func mapTelegram(cfg *config.Config) telegram.Config {
	return telegram.Config{
		Token:       strings.TrimSpace(cfg.Telegram.Token),
		PollTimeout: config.MustDuration(cfg.Telegram.PollTimeout, 10*time.Second),
		APIURL:      cfg.Telegram.APIURL,
	}
}

func mapStorage(cfg *config.Config) storage.Config {
	sc := cfg.Storage
	return storage.Config{
		Driver:        strings.ToLower(strings.TrimSpace(sc.Driver)),
		Path:          strings.TrimSpace(sc.Path),
		BusyTimeout:   config.MustDuration(sc.BusyTimeout, 0),
		RedisAddr:     strings.TrimSpace(sc.RedisAddr),
		RedisPassword: sc.RedisPassword,
		RedisDB:       sc.RedisDB,
		RedisKey:      strings.TrimSpace(sc.RedisKey),
		DialTimeout:   config.MustDuration(sc.DialTimeout, 5*time.Second),
	}
}

func flushInterval(cfg *config.Config) time.Duration {
	return config.MustDuration(cfg.Storage.FlushInterval, 30*time.Second)
}

func deliveryTimeout(cfg *config.Config) time.Duration {
	return config.MustDuration(cfg.Scheduler.DeliveryTimeout, 15*time.Second)
}

func conversationTTL(cfg *config.Config) time.Duration {
	return config.MustDuration(cfg.Conversation.TTL, 30*time.Minute)
}

func mapTaskEngine(cfg *config.Config) engine.Config {
	te := cfg.TaskEngine
	return engine.Config{
		Workers:        te.Workers,
		QueueSize:      te.QueueSize,
		DefaultTimeout: deliveryTimeout(cfg),
		MaxQueueDelay:  config.MustDuration(te.MaxQueueDelay, 0),
		HistorySize:    te.HistorySize,
		RetryMax:       te.RetryMax,
		RetryBase:      config.MustDuration(te.RetryBase, 0),
		RetryMaxDelay:  config.MustDuration(te.RetryMaxDelay, 0),
	}
}

func mapNotifier(cfg *config.Config) notifier.Config {
	n := cfg.Notifier
	return notifier.Config{
		RatePerSec:      n.RatePerSec,
		Burst:           n.Burst,
		DedupWindow:     config.MustDuration(n.DedupWindow, 0),
		DedupMaxEntries: n.DedupMaxEntries,
	}
}
