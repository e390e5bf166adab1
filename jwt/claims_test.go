// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertClaimErr(t *testing.T, err error, claim string, sentinel error) {
	t.Helper()
	require.Error(t, err)
	assert.Truef(t, errors.Is(err, ErrInvalidClaim), "wanted \"%s\" but got \"%s\"", ErrInvalidClaim, err)
	assert.Truef(t, errors.Is(err, sentinel), "wanted \"%s\" but got \"%s\"", sentinel, err)
	var cErr *ClaimError
	require.True(t, errors.As(err, &cErr))
	assert.Equal(t, claim, cErr.Claim)
}

func TestClaimValidator_Issuer(t *testing.T) {
	t.Parallel()
	c := NewClaimValidator(map[string]interface{}{"iss": "https://example.com/"})
	require.NoError(t, c.Issuer("https://example.com/"))
	assertClaimErr(t, c.Issuer("https://example.com"), "iss", ErrInvalidIssuer)
	assertClaimErr(t, c.Issuer("https://evil.com/"), "iss", ErrInvalidIssuer)
	assertClaimErr(t, NewClaimValidator(map[string]interface{}{}).Issuer("https://example.com/"), "iss", ErrInvalidIssuer)
}

func TestClaimValidator_Audience(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		aud      interface{}
		expected []string
		wantErr  bool
	}{
		{name: "string-match", aud: "client-1", expected: []string{"client-1"}},
		{name: "array-match-one", aud: []interface{}{"api", "client-1"}, expected: []string{"client-1", "other"}},
		{name: "string-slice-match", aud: []string{"api", "client-1"}, expected: []string{"client-1"}},
		{name: "array-no-intersection", aud: []interface{}{"api", "client-2"}, expected: []string{"client-1", "other"}, wantErr: true},
		{name: "string-no-match", aud: "client-2", expected: []string{"client-1"}, wantErr: true},
		{name: "missing", expected: []string{"client-1"}, wantErr: true},
		{name: "empty-string", aud: "", expected: []string{""}, wantErr: true},
		{name: "non-string-element", aud: []interface{}{"client-1", 1}, expected: []string{"client-1"}, wantErr: true},
		{name: "number", aud: json.Number("1"), expected: []string{"1"}, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			claims := map[string]interface{}{}
			if tt.aud != nil {
				claims["aud"] = tt.aud
			}
			err := NewClaimValidator(claims).Audience(tt.expected)
			if tt.wantErr {
				assertClaimErr(t, err, "aud", ErrInvalidAudience)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestClaimValidator_Expiration(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	leeway := 60 * time.Second
	tests := []struct {
		name    string
		exp     interface{}
		wantErr bool
	}{
		{name: "future", exp: json.Number("1700003600")},
		{name: "now", exp: json.Number("1700000000")},
		{name: "within-leeway", exp: json.Number("1699999950")},
		{name: "exactly-leeway", exp: json.Number("1699999940")},
		{name: "past-leeway", exp: json.Number("1699999939"), wantErr: true},
		{name: "long-expired", exp: float64(1_600_000_000), wantErr: true},
		{name: "fractional", exp: json.Number("1700000000.5")},
		{name: "missing", wantErr: true},
		{name: "string", exp: "1700003600", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			claims := map[string]interface{}{}
			if tt.exp != nil {
				claims["exp"] = tt.exp
			}
			err := NewClaimValidator(claims).Expiration(leeway, now)
			if tt.wantErr {
				assertClaimErr(t, err, "exp", ErrExpiredToken)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestClaimValidator_IssuedAtAndSubject(t *testing.T) {
	t.Parallel()
	c := NewClaimValidator(map[string]interface{}{"iat": json.Number("1700000000"), "sub": "auth0|alice"})
	require.NoError(t, c.IssuedAt())
	require.NoError(t, c.Subject())

	empty := NewClaimValidator(map[string]interface{}{"iat": "yesterday", "sub": ""})
	assertClaimErr(t, empty.IssuedAt(), "iat", ErrInvalidIssuedAt)
	assertClaimErr(t, empty.Subject(), "sub", ErrInvalidSubject)
}

func TestClaimValidator_AuthorizedParty(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		claims  map[string]interface{}
		wantErr bool
	}{
		{name: "single-aud-no-azp", claims: map[string]interface{}{"aud": "client-1"}},
		{name: "single-element-array-no-azp", claims: map[string]interface{}{"aud": []interface{}{"client-1"}}},
		{name: "multi-aud-azp", claims: map[string]interface{}{"aud": []interface{}{"api", "client-1"}, "azp": "client-1"}},
		{name: "multi-aud-missing-azp", claims: map[string]interface{}{"aud": []interface{}{"api", "client-1"}}, wantErr: true},
		{name: "multi-aud-wrong-azp", claims: map[string]interface{}{"aud": []interface{}{"api", "client-1"}, "azp": "client-2"}, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := NewClaimValidator(tt.claims).AuthorizedParty([]string{"client-1"})
			if tt.wantErr {
				assertClaimErr(t, err, "azp", ErrInvalidAuthorizedParty)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestClaimValidator_Nonce(t *testing.T) {
	t.Parallel()
	c := NewClaimValidator(map[string]interface{}{"nonce": "n-1"})
	require.NoError(t, c.Nonce("n-1"))
	assertClaimErr(t, c.Nonce("n-2"), "nonce", ErrInvalidNonce)
	assertClaimErr(t, c.Nonce("n-"), "nonce", ErrInvalidNonce)
	assertClaimErr(t, NewClaimValidator(map[string]interface{}{}).Nonce("n-1"), "nonce", ErrInvalidNonce)

	// the nonce is secret and never part of the message
	err := c.Nonce("n-2")
	assert.NotContains(t, err.Error(), "n-1")
	assert.NotContains(t, err.Error(), "n-2")
}

func TestClaimValidator_AuthTime(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	maxAge := 300 * time.Second
	leeway := 60 * time.Second
	tests := []struct {
		name     string
		authTime interface{}
		wantErr  bool
	}{
		{name: "recent", authTime: json.Number("1699999900")},
		{name: "at-max-age-plus-leeway", authTime: json.Number("1699999640")},
		{name: "too-old", authTime: json.Number("1699999639"), wantErr: true},
		{name: "missing", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			claims := map[string]interface{}{}
			if tt.authTime != nil {
				claims["auth_time"] = tt.authTime
			}
			err := NewClaimValidator(claims).AuthTime(maxAge, leeway, now)
			if tt.wantErr {
				assertClaimErr(t, err, "auth_time", ErrInvalidAuthTime)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestClaimValidator_Organization(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		claims    map[string]interface{}
		expected  []string
		wantClaim string
	}{
		{name: "id-match", claims: map[string]interface{}{"org_id": "org_123"}, expected: []string{"org_123"}},
		{name: "id-one-of", claims: map[string]interface{}{"org_id": "org_123"}, expected: []string{"org_999", "org_123"}},
		{name: "name-case-insensitive", claims: map[string]interface{}{"org_name": "Acme"}, expected: []string{"acme"}},
		{name: "mixed-list-name", claims: map[string]interface{}{"org_name": "acme"}, expected: []string{"org_999", "ACME"}},
		{name: "id-mismatch", claims: map[string]interface{}{"org_id": "org_123"}, expected: []string{"org_999"}, wantClaim: "org_id"},
		{name: "id-is-case-sensitive", claims: map[string]interface{}{"org_id": "org_ABC"}, expected: []string{"org_abc"}, wantClaim: "org_id"},
		{name: "id-missing", claims: map[string]interface{}{"org_name": "org_123"}, expected: []string{"org_123"}, wantClaim: "org_id"},
		{name: "name-mismatch", claims: map[string]interface{}{"org_name": "acme"}, expected: []string{"globex"}, wantClaim: "org_name"},
		{name: "name-missing", claims: map[string]interface{}{"org_id": "org_123"}, expected: []string{"acme"}, wantClaim: "org_name"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := NewClaimValidator(tt.claims).Organization(tt.expected)
			if tt.wantClaim != "" {
				assertClaimErr(t, err, tt.wantClaim, ErrInvalidOrganization)
				return
			}
			require.NoError(t, err)
		})
	}
}
