package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisBackend stores each collection under <prefix><collection>.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// RedisOptions configures NewRedisBackend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisBackend connects to redis and verifies the connection.
func NewRedisBackend(ctx context.Context, opts RedisOptions) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "planner:collection:"
	}
	return &RedisBackend{client: client, prefix: prefix}, nil
}

func (b *RedisBackend) Load(ctx context.Context, collection string) ([]byte, error) {
	data, err := b.client.Get(ctx, b.prefix+collection).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading collection %s: %w", collection, err)
	}
	return data, nil
}

func (b *RedisBackend) Save(ctx context.Context, collection string, data []byte) error {
	if err := b.client.Set(ctx, b.prefix+collection, data, 0).Err(); err != nil {
		return fmt.Errorf("saving collection %s: %w", collection, err)
	}
	return nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
