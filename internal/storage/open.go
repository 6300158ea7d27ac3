package storage

import (
	"context"
	"errors"
	"strings"

	logx "pawbot/pkg/logx"
)

// Backend persists the full record map. Implementations rewrite the whole
// map on Save; last writer wins.
type Backend interface {
	Load(ctx context.Context) (Records, error)
	Save(ctx context.Context, recs Records) error
	Close() error
}

// Open initializes the configured backend.
func Open(cfg Config, log logx.Logger) (Backend, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "file", "json":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "redis":
		return openRedis(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
