// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4"
)

const (
	// DefaultCookiePrefix is the default prefix of cookie names written by a
	// CookieStore.
	DefaultCookiePrefix = "authflow_"

	// DefaultCookieMaxAge is the default lifetime of cookies written by a
	// CookieStore.
	DefaultCookieMaxAge = 7 * 24 * time.Hour

	// CookieKeyLen is the required length of a CookieStore encryption key.
	CookieKeyLen = 32
)

// CookieStore is a Store backed by the cookies of a single http request and
// its response.  Every value is encrypted (JWE dir/A256GCM) and bound to its
// key name, so cookies cannot be read by the browser or swapped between keys.
//
// A CookieStore must be created for every request. Writes are visible to
// subsequent reads made during the same request.
type CookieStore struct {
	w http.ResponseWriter
	r *http.Request

	key  []byte
	opts options

	// pending holds writes made during this request; a nil value marks a
	// deletion.
	pending map[string]*string
}

var _ Store = (*CookieStore)(nil)

// cookieValue is the encrypted payload of a cookie.
type cookieValue struct {
	Key   string `json:"k"`
	Value string `json:"v"`
}

// NewCookieStore creates a CookieStore for the request r and the response
// writer w.  The key must be exactly CookieKeyLen bytes.
//
// Supported options:
//   - WithCookiePrefix
//   - WithCookiePath
//   - WithCookieDomain
//   - WithInsecureCookies
//   - WithSameSite
//   - WithMaxAge
func NewCookieStore(w http.ResponseWriter, r *http.Request, key []byte, opt ...Option) (*CookieStore, error) {
	const op = "storage.NewCookieStore"
	switch {
	case w == nil:
		return nil, fmt.Errorf("%s: response writer is nil: %w", op, ErrNilParameter)
	case r == nil:
		return nil, fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	case len(key) != CookieKeyLen:
		return nil, fmt.Errorf("%s: key must be %d bytes: %w", op, CookieKeyLen, ErrInvalidParameter)
	}
	return &CookieStore{
		w:       w,
		r:       r,
		key:     key,
		opts:    getOpts(opt...),
		pending: map[string]*string{},
	}, nil
}

func (s *CookieStore) name(key string) string {
	return s.opts.withCookiePrefix + key
}

// Get implements Store.  A cookie which cannot be decrypted, or which was
// written for a different key, is reported as not found and expired, so a
// rotated key or a tampered cookie starts a fresh session instead of failing
// every request.
func (s *CookieStore) Get(_ context.Context, key string) (string, bool, error) {
	const op = "CookieStore.Get"
	if v, ok := s.pending[key]; ok {
		if v == nil {
			return "", false, nil
		}
		return *v, true, nil
	}
	c, err := s.r.Cookie(s.name(key))
	switch {
	case errors.Is(err, http.ErrNoCookie):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	v, err := s.open(key, c.Value)
	switch {
	case errors.Is(err, ErrInvalidCookie):
		http.SetCookie(s.w, s.cookie(key, "", -1))
		s.pending[key] = nil
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	return v, true, nil
}

// Set implements Store.
func (s *CookieStore) Set(_ context.Context, key, value string) error {
	const op = "CookieStore.Set"
	sealed, err := s.seal(key, value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	http.SetCookie(s.w, s.cookie(key, sealed, int(s.opts.withMaxAge.Seconds())))
	s.pending[key] = &value
	return nil
}

// Delete implements Store by expiring the cookie.
func (s *CookieStore) Delete(_ context.Context, key string) error {
	http.SetCookie(s.w, s.cookie(key, "", -1))
	s.pending[key] = nil
	return nil
}

func (s *CookieStore) cookie(key, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     s.name(key),
		Value:    value,
		Path:     s.opts.withCookiePath,
		Domain:   s.opts.withCookieDomain,
		MaxAge:   maxAge,
		Secure:   !s.opts.withInsecure,
		HttpOnly: true,
		SameSite: s.opts.withSameSite,
	}
}

func (s *CookieStore) seal(key, value string) (string, error) {
	enc, err := jose.NewEncrypter(jose.A256GCM, jose.Recipient{Algorithm: jose.DIRECT, Key: s.key}, nil)
	if err != nil {
		return "", fmt.Errorf("unable to create encrypter: %w", err)
	}
	pt, err := json.Marshal(cookieValue{Key: key, Value: value})
	if err != nil {
		return "", fmt.Errorf("unable to encode cookie value: %w", err)
	}
	obj, err := enc.Encrypt(pt)
	if err != nil {
		return "", fmt.Errorf("unable to encrypt cookie value: %w", err)
	}
	return obj.CompactSerialize()
}

func (s *CookieStore) open(key, sealed string) (string, error) {
	obj, err := jose.ParseEncrypted(sealed, []jose.KeyAlgorithm{jose.DIRECT}, []jose.ContentEncryption{jose.A256GCM})
	if err != nil {
		return "", fmt.Errorf("unable to parse cookie: %w", ErrInvalidCookie)
	}
	pt, err := obj.Decrypt(s.key)
	if err != nil {
		return "", fmt.Errorf("unable to decrypt cookie: %w", ErrInvalidCookie)
	}
	var cv cookieValue
	if err := json.Unmarshal(pt, &cv); err != nil {
		return "", fmt.Errorf("unable to decode cookie: %w", ErrInvalidCookie)
	}
	if cv.Key != key {
		return "", fmt.Errorf("cookie was not written for %q: %w", key, ErrInvalidCookie)
	}
	return cv.Value, nil
}
