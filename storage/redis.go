// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisTTL is the expiration applied to keys written by a RedisStore
// when no WithTTL option is provided.
const DefaultRedisTTL = 24 * time.Hour

// RedisStore is a Store backed by redis.  Every key is written under the
// store's prefix, which should uniquely identify the end-user's session (for
// example "authflow:{session-id}:").
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var (
	_ Store    = (*RedisStore)(nil)
	_ Consumer = (*RedisStore)(nil)
)

// NewRedisStore creates a RedisStore using an existing client.
//
// Supported options:
//   - WithTTL
func NewRedisStore(client redis.UniversalClient, prefix string, opt ...Option) (*RedisStore, error) {
	const op = "storage.NewRedisStore"
	if client == nil {
		return nil, fmt.Errorf("%s: redis client is nil: %w", op, ErrNilParameter)
	}
	if prefix == "" {
		return nil, fmt.Errorf("%s: key prefix is empty: %w", op, ErrInvalidParameter)
	}
	opts := getOpts(opt...)
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    opts.withTTL,
	}, nil
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	const op = "RedisStore.Get"
	v, err := s.client.Get(ctx, s.key(key)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	return v, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	const op = "RedisStore.Set"
	if err := s.client.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	const op = "RedisStore.Delete"
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Consume implements Consumer using GETDEL, so concurrent consumers of the
// same key can never both observe the value.
func (s *RedisStore) Consume(ctx context.Context, key string) (string, bool, error) {
	const op = "RedisStore.Consume"
	v, err := s.client.GetDel(ctx, s.key(key)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	return v, true, nil
}
