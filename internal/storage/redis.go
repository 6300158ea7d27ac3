package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	logx "pawbot/pkg/logx"
)

const defaultRedisKey = "pawbot:records"

// redisStore keeps the JSON document under a single key.
type redisStore struct {
	log logx.Logger
	rdb *goredis.Client
	key string
}

func openRedis(cfg Config, log logx.Logger) (Backend, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("storage.redis_addr is required for redis driver")
	}
	key := strings.TrimSpace(cfg.RedisKey)
	if key == "" {
		key = defaultRedisKey
	}
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: dial,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dial)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisStore(rdb, key, log), nil
}

func newRedisStore(rdb *goredis.Client, key string, log logx.Logger) *redisStore {
	return &redisStore{log: log, rdb: rdb, key: key}
}

func (s *redisStore) Load(ctx context.Context) (Records, error) {
	if s == nil || s.rdb == nil {
		return nil, ErrClosed
	}
	b, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	recs, err := decodeRecords(b)
	if err != nil {
		// Keep the bad blob; the next Save overwrites the main key.
		if cerr := s.rdb.Set(ctx, s.corruptKey(), b, 0).Err(); cerr != nil {
			s.log.Warn("could not keep corrupt records", logx.String("key", s.corruptKey()), logx.Err(cerr))
		}
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return recs, nil
}

func (s *redisStore) corruptKey() string { return s.key + ":corrupt" }

func (s *redisStore) Save(ctx context.Context, recs Records) error {
	if s == nil || s.rdb == nil {
		return ErrClosed
	}
	b, err := encodeRecords(recs)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key, b, 0).Err()
}

func (s *redisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
