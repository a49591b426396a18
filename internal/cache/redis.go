package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agenthands/taxgraph/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Redis stores reports as JSON. A Redis without a client is a disabled cache:
// every Get misses and every Set is dropped.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	log    logrus.FieldLogger
}

// New returns a disabled cache when cfg.Addr is empty.
func New(ctx context.Context, cfg config.RedisConfig, log logrus.FieldLogger) (*Redis, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "cache")
	if cfg.Addr == "" {
		log.Info("redis address not set, report cache disabled")
		return &Redis{log: log}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	log.WithField("addr", cfg.Addr).Info("connected to redis")
	return NewWithClient(client, time.Duration(cfg.TTLSeconds)*time.Second, log), nil
}

func NewWithClient(client *redis.Client, ttl time.Duration, log logrus.FieldLogger) *Redis {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Redis{client: client, ttl: ttl, log: log}
}

func (r *Redis) Enabled() bool { return r.client != nil }

func (r *Redis) Get(ctx context.Context, key string, dst any) (bool, error) {
	if r.client == nil {
		return false, nil
	}
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(val, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	r.log.WithField("key", key).Debug("cache hit")
	return true, nil
}

func (r *Redis) Set(ctx context.Context, key string, v any) error {
	if r.client == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
