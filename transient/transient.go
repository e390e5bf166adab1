// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package transient provides one-time-use storage for the anti-replay
// material of an authorization request: state, nonce, PKCE code verifier and
// max_age.
//
// Reads are either consuming (Verify, GetOnce) or peeking (IsSet).  A
// consuming read always removes the entry, so a value can be consumed at most
// once.
package transient

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/hashicorp/go-uuid"
	"github.com/openrp/authflow/storage"
)

// Well known transient entry names.
const (
	State        = "state"
	Nonce        = "nonce"
	CodeVerifier = "code_verifier"
	MaxAge       = "max_age"
	RedirectURI  = "redirect_uri"
)

const (
	// DefaultPrefix is prepended to every entry name before it reaches the
	// underlying storage.Store.
	DefaultPrefix = "tx_"

	// valueLen is the number of random bytes in an issued value.
	valueLen = 32
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")
	ErrGeneratorFailed  = errors.New("value generation failed")
)

// Store issues and consumes transient values.  It's scoped to one end-user's
// browser session, just like the storage.Store it wraps.
type Store struct {
	store    storage.Store
	prefix   string
	generate func() (string, error)
}

// New creates a transient Store on top of s.
//
// Supported options:
//   - WithPrefix
//   - WithGenerator
func New(s storage.Store, opt ...Option) (*Store, error) {
	const op = "transient.New"
	if s == nil {
		return nil, fmt.Errorf("%s: storage is nil: %w", op, ErrNilParameter)
	}
	opts := getOpts(opt...)
	return &Store{
		store:    s,
		prefix:   opts.withPrefix,
		generate: opts.withGenerator,
	}, nil
}

// NewValue returns a random, url safe value with 256 bits of entropy.  It's
// suitable for a state, nonce or PKCE code verifier.
func NewValue() (string, error) {
	const op = "transient.NewValue"
	b, err := uuid.GenerateRandomBytes(valueLen)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrGeneratorFailed, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

// Issue generates a fresh random value, stores it under name and returns it.
func (s *Store) Issue(ctx context.Context, name string) (string, error) {
	const op = "transient.(Store).Issue"
	v, err := s.generate()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if v == "" {
		return "", fmt.Errorf("%s: generated value is empty: %w", op, ErrGeneratorFailed)
	}
	if err := s.Store(ctx, name, v); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

// Store saves a caller supplied value under name.
func (s *Store) Store(ctx context.Context, name, value string) error {
	const op = "transient.(Store).Store"
	if name == "" {
		return fmt.Errorf("%s: name is empty: %w", op, ErrInvalidParameter)
	}
	if value == "" {
		return fmt.Errorf("%s: value is empty: %w", op, ErrInvalidParameter)
	}
	if err := s.store.Set(ctx, s.key(name), value); err != nil {
		return fmt.Errorf("%s: unable to store %s: %w", op, name, err)
	}
	return nil
}

// Verify consumes the entry stored under name and reports whether it
// equals candidate.  The entry is deleted regardless of the outcome, so a
// guessed value can't be retried.  It returns false when no entry exists.
func (s *Store) Verify(ctx context.Context, name, candidate string) (bool, error) {
	const op = "transient.(Store).Verify"
	v, found, err := s.GetOnce(ctx, name)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !found || candidate == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(v), []byte(candidate)) == 1, nil
}

// GetOnce consumes the entry stored under name.  found is false when no entry
// exists; a value is never fabricated.
func (s *Store) GetOnce(ctx context.Context, name string) (value string, found bool, err error) {
	const op = "transient.(Store).GetOnce"
	if name == "" {
		return "", false, fmt.Errorf("%s: name is empty: %w", op, ErrInvalidParameter)
	}
	v, found, err := storage.Consume(ctx, s.store, s.key(name))
	if err != nil {
		return "", false, fmt.Errorf("%s: unable to consume %s: %w", op, name, err)
	}
	if !found || v == "" {
		return "", false, nil
	}
	return v, true, nil
}

// IsSet reports whether an entry exists under name without consuming it.
func (s *Store) IsSet(ctx context.Context, name string) (bool, error) {
	const op = "transient.(Store).IsSet"
	if name == "" {
		return false, fmt.Errorf("%s: name is empty: %w", op, ErrInvalidParameter)
	}
	v, found, err := s.store.Get(ctx, s.key(name))
	if err != nil {
		return false, fmt.Errorf("%s: unable to read %s: %w", op, name, err)
	}
	return found && v != "", nil
}
