// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package storage defines the key/value collaborator used to persist
// authentication material between requests, along with a few backends:
// MemoryStore, RedisStore and CookieStore.
//
// A Store is scoped to a single end-user's browser session.  Backends shared
// across users (like redis) must be given a per-user key prefix.
package storage

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")
	ErrInvalidCookie    = errors.New("invalid cookie")
)

// Store is a simple get/set/delete key value store.
type Store interface {
	// Get returns the value for key.  found is false when no value exists
	// and that is not an error.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores the value for key, replacing any existing value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key.  Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Consumer is implemented by stores which can read and delete a key in one
// atomic operation.
type Consumer interface {
	// Consume returns the value for key and deletes it.  A value can only be
	// consumed once.
	Consume(ctx context.Context, key string) (value string, found bool, err error)
}

// Consume reads and deletes key from s.  It uses s's Consumer implementation
// when available, otherwise it falls back to a Get followed by a Delete.  The
// key is deleted even when it is not found.
func Consume(ctx context.Context, s Store, key string) (string, bool, error) {
	const op = "storage.Consume"
	if s == nil {
		return "", false, fmt.Errorf("%s: store is nil: %w", op, ErrNilParameter)
	}
	if c, ok := s.(Consumer); ok {
		return c.Consume(ctx, key)
	}
	v, found, err := s.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	if err := s.Delete(ctx, key); err != nil {
		return "", false, err
	}
	return v, found, nil
}
