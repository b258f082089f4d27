package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache[T any] struct {
	client    redis.UniversalClient
	namespace string
	maxJitter time.Duration
}

func NewRedisCache[T any](client redis.UniversalClient, namespace string) *RedisCache[T] {
	return &RedisCache[T]{
		client:    client,
		namespace: namespace,
		maxJitter: 5 * time.Second,
	}
}

func (r *RedisCache[T]) Get(ctx context.Context, key string) (T, error) {
	var value T

	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return value, ErrCacheMiss
	}
	if err != nil {
		return value, fmt.Errorf("redis get failed: %w", err)
	}

	err = json.Unmarshal(data, &value)
	if err != nil {
		return value, fmt.Errorf("unmarshal cached value failed: %w", err)
	}

	return value, nil
}

func (r *RedisCache[T]) Put(ctx context.Context, key string, value T, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cached value failed: %w", err)
	}

	if r.maxJitter > 0 {
		ttl += time.Duration(rand.Int63n(int64(r.maxJitter)))
	}

	err = r.client.Set(ctx, r.key(key), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

func (r *RedisCache[T]) Invalidate(ctx context.Context, key string) error {
	err := r.client.Del(ctx, r.key(key)).Err()
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	return nil
}

func (r *RedisCache[T]) key(key string) string {
	return fmt.Sprintf("%s:%s", r.namespace, key)
}
