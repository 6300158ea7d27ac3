// Package config loads the JSON or YAML configuration file, applies
// PAWBOT_* environment overrides and watches the file for changes.
package config

// Config is the file layout. Durations are Go duration strings ("10s", "1m").
type Config struct {
	Telegram     TelegramConfig     `json:"telegram"`
	Logging      LoggingConfig      `json:"logging"`
	Storage      StorageConfig      `json:"storage"`
	Scheduler    SchedulerConfig    `json:"scheduler"`
	TaskEngine   TaskEngineConfig   `json:"task_engine"`
	Notifier     NotifierConfig     `json:"notifier"`
	Conversation ConversationConfig `json:"conversation"`
}

type TelegramConfig struct {
	Token       string `json:"token"`
	PollTimeout string `json:"poll_timeout,omitempty"`
	APIURL      string `json:"api_url,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
}

// StorageConfig selects where user records live.
//
//	"storage": { "driver": "sqlite", "path": "./pawbot.db" }
//	"storage": { "driver": "redis", "redis_addr": "127.0.0.1:6379" }
type StorageConfig struct {
	Driver        string `json:"driver"` // file (default), sqlite, redis
	Path          string `json:"path"`
	BusyTimeout   string `json:"busy_timeout,omitempty"`
	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty"`
	RedisKey      string `json:"redis_key,omitempty"`
	DialTimeout   string `json:"dial_timeout,omitempty"`
	// FlushInterval is how often unsaved changes are retried.
	FlushInterval string `json:"flush_interval,omitempty"`
}

type SchedulerConfig struct {
	// Timezone of reminder times; empty means the host zone.
	Timezone        string `json:"timezone,omitempty"`
	DeliveryTimeout string `json:"delivery_timeout,omitempty"`
}

// TaskEngineConfig sizes the pool that runs reminder deliveries.
// retry_max defaults to 0: a failed delivery is logged and not retried.
type TaskEngineConfig struct {
	Workers       int    `json:"workers,omitempty"`
	QueueSize     int    `json:"queue_size,omitempty"`
	MaxQueueDelay string `json:"max_queue_delay,omitempty"`
	HistorySize   int    `json:"history_size,omitempty"`
	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
}

type NotifierConfig struct {
	RatePerSec      int    `json:"rate_per_sec,omitempty"`
	Burst           int    `json:"burst,omitempty"`
	DedupWindow     string `json:"dedup_window,omitempty"`
	DedupMaxEntries int    `json:"dedup_max_entries,omitempty"`
}

type ConversationConfig struct {
	// TTL ends an unfinished dialog after this much inactivity.
	TTL     string `json:"ttl,omitempty"`
	Workers int    `json:"workers,omitempty"`
}

// Default is the configuration used for omitted fields.
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{PollTimeout: "10s"},
		Logging:  LoggingConfig{Level: "info", Console: true},
		Storage: StorageConfig{
			Driver:        "file",
			Path:          "dog_care_data.json",
			FlushInterval: "30s",
		},
		Scheduler:    SchedulerConfig{DeliveryTimeout: "15s"},
		TaskEngine:   TaskEngineConfig{Workers: 2, QueueSize: 256, HistorySize: 200},
		Notifier:     NotifierConfig{RatePerSec: 25, Burst: 5},
		Conversation: ConversationConfig{TTL: "30m", Workers: 4},
	}
}
