package store

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const DefaultRedisKey = "receiver:entries"

// RedisSink pushes each entry line onto a Redis list.
type RedisSink struct {
	client *redis.Client
	key    string
}

// NewRedisSink connects to the Redis server at url (redis://host:port/db)
// and verifies the connection.
func NewRedisSink(ctx context.Context, url, key string) (*RedisSink, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.PoolSize = 10
	opts.MinIdleConns = 5
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSink{client: client, key: key}, nil
}

func (s *RedisSink) Append(ctx context.Context, e Entry) error {
	line, err := e.Line()
	if err != nil {
		return err
	}
	if err := s.client.RPush(ctx, s.key, line).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", s.key, err)
	}
	return nil
}

// Entries returns every line stored under the sink's key.
func (s *RedisSink) Entries(ctx context.Context) ([]string, error) {
	return s.client.LRange(ctx, s.key, 0, -1).Result()
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
