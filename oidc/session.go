// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/oauth2"

	"github.com/openrp/authflow/jwt"
	"github.com/openrp/authflow/storage"
)

// Session storage keys.
const (
	SessionUser                 = "user"
	SessionAccessToken          = "access_token"
	SessionAccessTokenExpiresAt = "access_token_expires_at"
	SessionIDToken              = "id_token"
	SessionRefreshToken         = "refresh_token"
)

// sessionKeys are every key a session may persist.
var sessionKeys = []string{
	SessionUser,
	SessionAccessToken,
	SessionAccessTokenExpiresAt,
	SessionIDToken,
	SessionRefreshToken,
}

// expirySkew is subtracted from an access token's lifetime when deciding
// whether it's expired.
const expirySkew = 10 * time.Second

// Session is an end-user's established session.  It's only changed by a Flow,
// after a successful exchange or renewal, and cleared by logout.
type Session struct {
	AccessToken          AccessToken
	AccessTokenExpiresAt time.Time
	IDToken              IDToken
	RefreshToken         RefreshToken

	// User is the end-user's profile.
	User map[string]interface{}

	// Claims are the verified claims of IDToken.  They're only set for the
	// Flow which verified the id_token, and never persisted.
	Claims *jwt.VerifiedClaims
}

// Empty reports whether no session field is set.
func (s Session) Empty() bool {
	return s.AccessToken == "" && s.IDToken == "" && s.RefreshToken == "" && s.User == nil
}

// Expired reports whether the access token expires within expirySkew of now.
// An access token without an expiry never expires.
func (s Session) Expired(now time.Time) bool {
	if s.AccessTokenExpiresAt.IsZero() {
		return false
	}
	return s.AccessTokenExpiresAt.Round(0).Before(now.Add(expirySkew))
}

// Token returns the session's tokens as an oauth2.Token, with the id_token as
// its "id_token" extra.
func (s Session) Token() *oauth2.Token {
	t := &oauth2.Token{
		AccessToken:  string(s.AccessToken),
		TokenType:    "Bearer",
		RefreshToken: string(s.RefreshToken),
		Expiry:       s.AccessTokenExpiresAt,
	}
	if s.IDToken != "" {
		t = t.WithExtra(map[string]interface{}{"id_token": string(s.IDToken)})
	}
	return t
}

// copy returns a Session which doesn't share the User map.
func (s Session) copy() Session {
	if s.User != nil {
		u := make(map[string]interface{}, len(s.User))
		for k, v := range s.User {
			u[k] = v
		}
		s.User = u
	}
	return s
}

// loadSession reads the persisted fields selected by p from store.
func loadSession(ctx context.Context, store storage.Store, p Persistence) (Session, error) {
	const op = "loadSession"
	var s Session
	get := func(key string) (string, error) {
		v, _, err := store.Get(ctx, key)
		if err != nil {
			return "", fmt.Errorf("%s: unable to read %s: %w", op, key, err)
		}
		return v, nil
	}

	if p.User {
		v, err := get(SessionUser)
		if err != nil {
			return Session{}, err
		}
		if v != "" {
			if err := json.Unmarshal([]byte(v), &s.User); err != nil {
				return Session{}, fmt.Errorf("%s: unable to decode %s: %w", op, SessionUser, err)
			}
		}
	}
	if p.AccessToken {
		v, err := get(SessionAccessToken)
		if err != nil {
			return Session{}, err
		}
		s.AccessToken = AccessToken(v)
		if v, err = get(SessionAccessTokenExpiresAt); err != nil {
			return Session{}, err
		}
		if v != "" {
			secs, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return Session{}, fmt.Errorf("%s: unable to decode %s: %w", op, SessionAccessTokenExpiresAt, err)
			}
			s.AccessTokenExpiresAt = time.Unix(secs, 0)
		}
	}
	if p.IDToken {
		v, err := get(SessionIDToken)
		if err != nil {
			return Session{}, err
		}
		s.IDToken = IDToken(v)
	}
	if p.RefreshToken {
		v, err := get(SessionRefreshToken)
		if err != nil {
			return Session{}, err
		}
		s.RefreshToken = RefreshToken(v)
	}
	return s, nil
}

// persistSession writes the fields of s selected by p to store.  Empty fields
// are deleted.  When a write fails, every session key is deleted so no
// partial session is left behind.
func persistSession(ctx context.Context, store storage.Store, p Persistence, s Session) error {
	const op = "persistSession"
	type field struct {
		key     string
		persist bool
		value   func() (string, error)
	}
	fields := []field{
		{SessionUser, p.User, func() (string, error) {
			if s.User == nil {
				return "", nil
			}
			b, err := json.Marshal(s.User)
			return string(b), err
		}},
		{SessionAccessToken, p.AccessToken, func() (string, error) { return string(s.AccessToken), nil }},
		{SessionAccessTokenExpiresAt, p.AccessToken, func() (string, error) {
			if s.AccessTokenExpiresAt.IsZero() {
				return "", nil
			}
			return strconv.FormatInt(s.AccessTokenExpiresAt.Unix(), 10), nil
		}},
		{SessionIDToken, p.IDToken, func() (string, error) { return string(s.IDToken), nil }},
		{SessionRefreshToken, p.RefreshToken, func() (string, error) { return string(s.RefreshToken), nil }},
	}

	for _, f := range fields {
		if !f.persist {
			continue
		}
		v, err := f.value()
		if err == nil {
			if v == "" {
				err = store.Delete(ctx, f.key)
			} else {
				err = store.Set(ctx, f.key, v)
			}
		}
		if err != nil {
			err = fmt.Errorf("%s: unable to persist %s: %w", op, f.key, err)
			if cErr := clearSession(ctx, store); cErr != nil {
				err = multierror.Append(err, cErr)
			}
			return err
		}
	}
	return nil
}

// clearSession deletes every session key, whether it's persisted or not.
func clearSession(ctx context.Context, store storage.Store) error {
	const op = "clearSession"
	var result *multierror.Error
	for _, k := range sessionKeys {
		if err := store.Delete(ctx, k); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: unable to delete %s: %w", op, k, err))
		}
	}
	return result.ErrorOrNil()
}
