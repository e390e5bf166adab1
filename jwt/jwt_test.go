// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidator(t *testing.T) {
	t.Parallel()
	_, err := NewValidator(nil)
	require.ErrorIs(t, err, ErrNilParameter)

	sv, err := NewSymmetricVerifier(testSecret)
	require.NoError(t, err)
	v, err := NewValidator(sv)
	require.NoError(t, err)
	assert.Equal(t, sv, v.verifier)
}

// TestValidator_Validate_Valid_JWT tests cases where a JWT is expected to be valid.
func TestValidator_Validate_Valid_JWT(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	priv := TestGenerateRSAKey(t)
	jwks := StartTestJWKS(t, TestJWK(t, priv, RS256, testKeyID))
	f, err := NewKeyFetcher(WithHTTPClient(jwks.HTTPClient()))
	require.NoError(t, err)
	av, err := NewAsymmetricVerifier(jwks.Issuer(), f)
	require.NoError(t, err)
	validator, err := NewValidator(av)
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	maxAge := 5 * time.Minute

	base := func() map[string]interface{} {
		return map[string]interface{}{
			"iss": jwks.Issuer(),
			"sub": "auth0|alice",
			"aud": "client-1",
			"iat": now.Unix(),
			"exp": now.Add(time.Hour).Unix(),
		}
	}
	with := func(kv ...interface{}) map[string]interface{} {
		c := base()
		for i := 0; i < len(kv); i += 2 {
			c[kv[i].(string)] = kv[i+1]
		}
		return c
	}
	expected := func() Expected {
		return Expected{
			Issuer:    jwks.Issuer(),
			Audiences: []string{"client-1"},
			Now:       func() time.Time { return now },
		}
	}

	tests := []struct {
		name     string
		claims   map[string]interface{}
		expected func(e Expected) Expected
	}{
		{name: "minimal identity token", claims: base()},
		{
			name:   "nonce matches",
			claims: with("nonce", "n-1"),
			expected: func(e Expected) Expected {
				e.Nonce = "n-1"
				return e
			},
		},
		{
			name:   "exp within leeway",
			claims: with("exp", now.Add(-30*time.Second).Unix()),
		},
		{
			name:   "aud array shares one element",
			claims: with("aud", []string{"https://api.example.com/", "client-1"}, "azp", "client-1"),
		},
		{
			name:   "auth_time within max_age",
			claims: with("auth_time", now.Add(-time.Minute).Unix()),
			expected: func(e Expected) Expected {
				e.MaxAge = &maxAge
				return e
			},
		},
		{
			name:   "organization by id",
			claims: with("org_id", "org_123"),
			expected: func(e Expected) Expected {
				e.Organizations = []string{"org_123"}
				return e
			},
		},
		{
			name:   "custom leeway",
			claims: with("exp", now.Add(-2*time.Minute).Unix()),
			expected: func(e Expected) Expected {
				e.Leeway = 3 * time.Minute
				return e
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			e := expected()
			if tt.expected != nil {
				e = tt.expected(e)
			}
			raw := TestSignJWT(t, priv, string(RS256), tt.claims, testKeyID)
			got, err := validator.Validate(ctx, raw, e)
			require.NoError(err)
			assert.Equal(jwks.Issuer(), got.Issuer())
			assert.Equal("auth0|alice", got.Subject())
			assert.Contains(got.Audience(), "client-1")
		})
	}
}

// TestValidator_Validate_Invalid_JWT tests cases where a JWT is expected to be invalid.
func TestValidator_Validate_Invalid_JWT(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	priv := TestGenerateRSAKey(t)
	jwks := StartTestJWKS(t, TestJWK(t, priv, RS256, testKeyID))
	f, err := NewKeyFetcher(WithHTTPClient(jwks.HTTPClient()))
	require.NoError(t, err)
	av, err := NewAsymmetricVerifier(jwks.Issuer(), f)
	require.NoError(t, err)
	validator, err := NewValidator(av)
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	maxAge := 5 * time.Minute
	base := func() map[string]interface{} {
		return map[string]interface{}{
			"iss": jwks.Issuer(),
			"sub": "auth0|alice",
			"aud": "client-1",
			"iat": now.Unix(),
			"exp": now.Add(time.Hour).Unix(),
		}
	}
	with := func(kv ...interface{}) map[string]interface{} {
		c := base()
		for i := 0; i < len(kv); i += 2 {
			if kv[i+1] == nil {
				delete(c, kv[i].(string))
				continue
			}
			c[kv[i].(string)] = kv[i+1]
		}
		return c
	}
	sign := func(c map[string]interface{}) string {
		return TestSignJWT(t, priv, string(RS256), c, testKeyID)
	}
	expected := Expected{
		Issuer:    jwks.Issuer(),
		Audiences: []string{"client-1"},
		Nonce:     "n-1",
		MaxAge:    &maxAge,
		Now:       func() time.Time { return now },
	}
	valid := with("nonce", "n-1", "auth_time", now.Unix())

	tests := []struct {
		name      string
		raw       string
		wantIsErr error
	}{
		{name: "malformed", raw: "not.a.jwt", wantIsErr: ErrMalformedToken},
		{name: "two segments", raw: "eyJhbGciOiJSUzI1NiJ9.e30", wantIsErr: ErrMalformedToken},
		{name: "hs256 against asymmetric verifier", raw: TestSignJWT(t, testSecret, string(HS256), valid, testKeyID), wantIsErr: ErrAlgorithmMismatch},
		{name: "wrong issuer", raw: sign(with("iss", "https://evil.example.com/", "nonce", "n-1", "auth_time", now.Unix())), wantIsErr: ErrInvalidIssuer},
		{name: "missing sub", raw: sign(with("sub", nil, "nonce", "n-1", "auth_time", now.Unix())), wantIsErr: ErrInvalidSubject},
		{name: "aud shares nothing", raw: sign(with("aud", []string{"a", "b"}, "azp", "a", "nonce", "n-1", "auth_time", now.Unix())), wantIsErr: ErrInvalidAudience},
		{name: "expired past leeway", raw: sign(with("exp", now.Add(-2*time.Minute).Unix(), "nonce", "n-1", "auth_time", now.Unix())), wantIsErr: ErrExpiredToken},
		{name: "missing iat", raw: sign(with("iat", nil, "nonce", "n-1", "auth_time", now.Unix())), wantIsErr: ErrInvalidIssuedAt},
		{name: "multi aud without azp", raw: sign(with("aud", []string{"client-1", "api"}, "nonce", "n-1", "auth_time", now.Unix())), wantIsErr: ErrInvalidAuthorizedParty},
		{name: "nonce differs", raw: sign(with("nonce", "n-2", "auth_time", now.Unix())), wantIsErr: ErrInvalidNonce},
		{name: "nonce missing", raw: sign(with("auth_time", now.Unix())), wantIsErr: ErrInvalidNonce},
		{name: "auth_time too old", raw: sign(with("nonce", "n-1", "auth_time", now.Add(-time.Hour).Unix())), wantIsErr: ErrInvalidAuthTime},
		{name: "auth_time missing", raw: sign(with("nonce", "n-1")), wantIsErr: ErrInvalidAuthTime},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := validator.Validate(ctx, tt.raw, expected)
			require.Error(err)
			assert.Nil(got)
			assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
		})
	}

	t.Run("claims are not checked before the signature", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		// expired and signed by an unknown key: the signature error wins
		other := TestGenerateRSAKey(t)
		raw := TestSignJWT(t, other, string(RS256), with("exp", int64(0)), testKeyID)
		_, err := validator.Validate(ctx, raw, expected)
		require.Error(err)
		assert.True(errors.Is(err, ErrInvalidSignature))
		assert.False(errors.Is(err, ErrInvalidClaim))
	})
	t.Run("missing expected values", func(t *testing.T) {
		_, err := validator.Validate(ctx, sign(valid), Expected{Audiences: []string{"client-1"}})
		require.ErrorIs(t, err, ErrInvalidParameter)
		_, err = validator.Validate(ctx, sign(valid), Expected{Issuer: jwks.Issuer()})
		require.ErrorIs(t, err, ErrInvalidParameter)
	})
	t.Run("negative leeway disables it", func(t *testing.T) {
		e := expected
		e.Leeway = -1
		_, err := validator.Validate(ctx, sign(with("nonce", "n-1", "auth_time", now.Unix(), "exp", now.Add(-time.Second).Unix())), e)
		require.ErrorIs(t, err, ErrExpiredToken)
	})
}

// TestValidator_Symmetric covers HS256 identity tokens, and an RS256 token
// rejected by the symmetric verifier.
func TestValidator_Symmetric(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sv, err := NewSymmetricVerifier(testSecret)
	require.NoError(t, err)
	validator, err := NewValidator(sv)
	require.NoError(t, err)
	claims := map[string]interface{}{
		"iss": "https://example.com/",
		"sub": "auth0|alice",
		"aud": "client-1",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	expected := Expected{Issuer: "https://example.com/", Audiences: []string{"client-1"}}

	got, err := validator.Validate(ctx, TestSignJWT(t, testSecret, string(HS256), claims, ""), expected)
	require.NoError(t, err)
	assert.Equal(t, "auth0|alice", got.Subject())

	_, err = validator.Validate(ctx, TestSignJWT(t, TestGenerateRSAKey(t), string(RS256), claims, testKeyID), expected)
	require.ErrorIs(t, err, ErrAlgorithmMismatch)
}

func TestVerifiedClaims(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	c := &VerifiedClaims{claims: map[string]interface{}{
		"iss":       "https://example.com/",
		"sub":       "auth0|alice",
		"aud":       []interface{}{"client-1", "api"},
		"nonce":     "n-1",
		"org_id":    "org_123",
		"org_name":  "acme",
		"auth_time": json.Number("1700000000"),
		"exp":       json.Number("1700003600"),
		"email":     "alice@example.com",
	}}
	assert.Equal("https://example.com/", c.Issuer())
	assert.Equal("auth0|alice", c.Subject())
	assert.Equal([]string{"client-1", "api"}, c.Audience())
	assert.Equal("n-1", c.Nonce())
	id, name := c.Organization()
	assert.Equal("org_123", id)
	assert.Equal("acme", name)
	at, ok := c.AuthTime()
	assert.True(ok)
	assert.Equal(int64(1_700_000_000), at.Unix())
	exp, ok := c.Expiration()
	assert.True(ok)
	assert.Equal(int64(1_700_003_600), exp.Unix())
	assert.Equal("alice@example.com", c.GetString("email"))
	assert.Equal("", c.GetString("missing"))
	_, ok = c.Get("missing")
	assert.False(ok)

	m := c.Claims()
	m["sub"] = "eve"
	assert.Equal("auth0|alice", c.Subject())

	b, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(string(b), `"email":"alice@example.com"`)
}
