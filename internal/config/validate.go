package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrMissingToken = errors.New("telegram.token is required (or set PAWBOT_TELEGRAM_TOKEN)")

// Validate checks field formats. It does not require a token so that offline
// commands can run without one; see RequireToken.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	dur := func(path, raw string) {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}
	dur("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	dur("storage.busy_timeout", cfg.Storage.BusyTimeout)
	dur("storage.dial_timeout", cfg.Storage.DialTimeout)
	dur("storage.flush_interval", cfg.Storage.FlushInterval)
	dur("scheduler.delivery_timeout", cfg.Scheduler.DeliveryTimeout)
	dur("task_engine.max_queue_delay", cfg.TaskEngine.MaxQueueDelay)
	dur("task_engine.retry_base", cfg.TaskEngine.RetryBase)
	dur("task_engine.retry_max_delay", cfg.TaskEngine.RetryMaxDelay)
	dur("notifier.dedup_window", cfg.Notifier.DedupWindow)
	dur("conversation.ttl", cfg.Conversation.TTL)

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "file", "json", "sqlite", "sqlite3":
	case "redis":
		if strings.TrimSpace(cfg.Storage.RedisAddr) == "" {
			errs = append(errs, errors.New("storage.redis_addr is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}

	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
		}
	}
	for path, v := range map[string]int{
		"task_engine.workers":        cfg.TaskEngine.Workers,
		"task_engine.queue_size":     cfg.TaskEngine.QueueSize,
		"task_engine.history_size":   cfg.TaskEngine.HistorySize,
		"task_engine.retry_max":      cfg.TaskEngine.RetryMax,
		"notifier.burst":             cfg.Notifier.Burst,
		"notifier.dedup_max_entries": cfg.Notifier.DedupMaxEntries,
		"conversation.workers":       cfg.Conversation.Workers,
		"storage.redis_db":           cfg.Storage.RedisDB,
		"notifier.rate_per_sec":      cfg.Notifier.RatePerSec,
		"logging.file.max_size_mb":   cfg.Logging.File.MaxSizeMB,
		"logging.file.max_backups":   cfg.Logging.File.MaxBackups,
		"logging.file.max_age_days":  cfg.Logging.File.MaxAgeDays,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s: must be >= 0", path))
		}
	}
	return errors.Join(errs...)
}

func RequireToken(cfg *Config) error {
	if cfg == nil || strings.TrimSpace(cfg.Telegram.Token) == "" {
		return ErrMissingToken
	}
	return nil
}
