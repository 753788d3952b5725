package sessionstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisKV stores keys under a namespace and broadcasts changes over a
// pub/sub channel so consoles in other processes see roster mutations.
type RedisKV struct {
	client    *redis.Client
	namespace string
}

// NewRedisClient initialises a Redis client and verifies connectivity
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		// Redis 7.x rejects the client-side caching handshake
		DisableIdentity: true,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewRedisKV wraps an existing client
func NewRedisKV(client *redis.Client, namespace string) *RedisKV {
	return &RedisKV{client: client, namespace: namespace}
}

func (r *RedisKV) key(k string) string {
	return r.namespace + ":" + k
}

func (r *RedisKV) channel() string {
	return r.namespace + ":changes"
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Publish sends the un-namespaced key on the change channel
func (r *RedisKV) Publish(ctx context.Context, key string) error {
	if err := r.client.Publish(ctx, r.channel(), key).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", key, err)
	}
	return nil
}

// Watch subscribes to the change channel and blocks until ctx is done
func (r *RedisKV) Watch(ctx context.Context, fn func(key string)) error {
	sub := r.client.Subscribe(ctx, r.channel())
	defer sub.Close()

	// Wait for the subscription confirmation so no publish is missed after Watch starts
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			fn(msg.Payload)
		}
	}
}
