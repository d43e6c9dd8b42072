package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ibots:state:"

// RedisStore keeps state documents under ibots:state:<bot>.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore parses url and returns a store backed by it.
func NewRedisStore(url string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return &RedisStore{rdb: redis.NewClient(opt)}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func key(bot string) string { return keyPrefix + sanitizeSegment(bot) }

func (s *RedisStore) Load(ctx context.Context, bot string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, key(bot)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("redis get state: %w", err)
	}
	return data, nil
}

func (s *RedisStore) Save(ctx context.Context, bot string, data []byte) error {
	if err := s.rdb.Set(ctx, key(bot), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set state: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, bot string) error {
	if err := s.rdb.Del(ctx, key(bot)).Err(); err != nil {
		return fmt.Errorf("redis del state: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error { return s.rdb.Close() }
