package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Verify interface compliance
var _ Mirror = (*RedisMirror)(nil)

const (
	// DefaultRedisPrefix namespaces mirror keys in a shared Redis.
	DefaultRedisPrefix = "lexrag:"
	versionSuffix      = ":version"
)

// RedisMirror stores index blobs as plain Redis strings. The version of each
// blob lives in a sibling "<key>:version" key; Put watches it so concurrent
// writers cannot overwrite a newer blob.
type RedisMirror struct {
	client *redis.Client
	prefix string
}

// NewRedisMirror parses a redis:// URL and verifies the server answers PING.
func NewRedisMirror(ctx context.Context, url, prefix string) (*RedisMirror, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrMirrorUnreachable, err)
	}
	return NewRedisMirrorFromClient(client, prefix), nil
}

// NewRedisMirrorFromClient wraps an existing client.
func NewRedisMirrorFromClient(client *redis.Client, prefix string) *RedisMirror {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisMirror{client: client, prefix: prefix}
}

// Name implements Mirror.
func (m *RedisMirror) Name() string { return "redis" }

// Get returns the blob stored under key, or ErrBlobNotFound.
func (m *RedisMirror) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := m.client.Get(ctx, m.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob: %w", err)
	}
	return data, nil
}

// Version returns the stored version of key, 0 when absent.
func (m *RedisMirror) Version(ctx context.Context, key string) (int64, error) {
	v, err := m.client.Get(ctx, m.prefix+key+versionSuffix).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get blob version: %w", err)
	}
	return v, nil
}

// Put stores data under key if version is newer than the stored version.
func (m *RedisMirror) Put(ctx context.Context, key string, data []byte, version int64) error {
	dataKey := m.prefix + key
	versionKey := dataKey + versionSuffix

	err := m.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil && current >= version {
			return fmt.Errorf("%w: stored %d, put %d", ErrVersionConflict, current, version)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, dataKey, data, 0)
			pipe.Set(ctx, versionKey, version, 0)
			return nil
		})
		return err
	}, versionKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		// another writer touched the version between WATCH and EXEC
		return fmt.Errorf("%w: concurrent write to %s", ErrVersionConflict, key)
	case errors.Is(err, ErrVersionConflict):
		return err
	default:
		return fmt.Errorf("failed to put blob: %w", err)
	}
}

// Health pings the server.
func (m *RedisMirror) Health(ctx context.Context) error {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
