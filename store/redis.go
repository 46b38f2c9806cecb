package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"edgegate/logger"

	"github.com/redis/go-redis/v9"
)

// DefaultNamespace prefixes every key this process writes to Redis.
const DefaultNamespace = "edgegate:"

type RedisStore struct {
	Client    *redis.Client
	namespace string
	ctx       context.Context
}

func NewRedisStore(addr string, password string) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	return &RedisStore{
		Client:    client,
		namespace: DefaultNamespace,
		ctx:       context.Background(),
	}
}

// WithNamespace changes the key prefix. Tests use it to isolate runs.
func (s *RedisStore) WithNamespace(ns string) *RedisStore {
	s.namespace = ns
	return s
}

// Ping checks the connection so startup can fall back to the local store.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

func (s *RedisStore) key(k string) string {
	return s.namespace + k
}

func (s *RedisStore) Increment(key string, expiration time.Duration) (int64, error) {
	val, err := s.Client.Incr(s.ctx, s.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}

	if val == 1 && expiration > 0 {
		if err := s.Client.Expire(s.ctx, s.key(key), expiration).Err(); err != nil {
			logger.Warn("Redis expire failed", "key", key, "err", err)
		}
	}

	return val, nil
}

func (s *RedisStore) GetCounter(key string) (int64, error) {
	val, err := s.Client.Get(s.ctx, s.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

func (s *RedisStore) Reset(key string) error {
	return s.Client.Del(s.ctx, s.key(key)).Err()
}

func (s *RedisStore) Counters(prefix string) (map[string]int64, error) {
	full := s.key(prefix)
	res := make(map[string]int64)

	iter := s.Client.Scan(s.ctx, 0, full+"*", 100).Iterator()
	for iter.Next(s.ctx) {
		k := iter.Val()
		val, err := s.Client.Get(s.ctx, k).Int64()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get %s: %w", k, err)
		}
		res[strings.TrimPrefix(k, full)] = val
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", full, err)
	}
	return res, nil
}

func (s *RedisStore) Close() error {
	return s.Client.Close()
}
