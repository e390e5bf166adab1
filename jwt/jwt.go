// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
Package jwt parses, verifies and validates identity tokens.

Verification happens in three strictly ordered steps: Parse splits and decodes
the compact token without any trust decision, a Verifier checks the signature
with the one algorithm it was configured with, and only then are the claims
checked by a ClaimValidator.  A Validator composes the three.

Asymmetric keys are fetched from the issuer's well-known key set by a
KeyFetcher, which caches them per issuer.
*/
package jwt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultLeeway defines the amount of clock skew allowed when validating the
// time based claims exp and auth_time.
const DefaultLeeway = 60 * time.Second

// Validator validates identity tokens: it parses them, verifies their
// signature with its Verifier, and only then checks their claims.
type Validator struct {
	verifier Verifier
}

// NewValidator returns a Validator that uses the given Verifier.  The
// Verifier, and so the accepted algorithm, comes from configuration only.
func NewValidator(v Verifier) (*Validator, error) {
	const op = "jwt.NewValidator"
	if v == nil {
		return nil, fmt.Errorf("%s: verifier is nil: %w", op, ErrNilParameter)
	}
	return &Validator{verifier: v}, nil
}

// Expected defines the expected claims of an identity token.
type Expected struct {
	// Issuer must equal the iss claim exactly.  Required.
	Issuer string

	// Audiences must intersect the aud claim, and contain azp when aud has
	// several entries.  Required.
	Audiences []string

	// Nonce, when set, must equal the nonce claim.
	Nonce string

	// MaxAge, when set, requires auth_time to be no older than MaxAge.
	MaxAge *time.Duration

	// Organizations, when set, must contain the token's org_id or org_name.
	Organizations []string

	// Leeway is the clock skew allowed for exp and auth_time.  It defaults to
	// DefaultLeeway when zero; a negative value means no leeway.
	Leeway time.Duration

	// Now provides the time used for time based checks.  It defaults to
	// time.Now.
	Now func() time.Time
}

// Validate parses raw, verifies its signature and validates its claims
// against expected, in that order.  Claim checks never run against a token
// whose signature hasn't been verified.
func (v *Validator) Validate(ctx context.Context, raw string, expected Expected) (*VerifiedClaims, error) {
	const op = "Validator.Validate"
	switch {
	case expected.Issuer == "":
		return nil, fmt.Errorf("%s: expected issuer is empty: %w", op, ErrInvalidParameter)
	case len(expected.Audiences) == 0:
		return nil, fmt.Errorf("%s: expected audiences are empty: %w", op, ErrInvalidParameter)
	}

	t, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := v.verifier.Verify(ctx, t); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now()
	if expected.Now != nil {
		now = expected.Now()
	}
	leeway := expected.Leeway
	switch {
	case leeway == 0:
		leeway = DefaultLeeway
	case leeway < 0:
		leeway = 0
	}

	c := NewClaimValidator(t.claims)
	checks := []func() error{
		func() error { return c.Issuer(expected.Issuer) },
		c.Subject,
		func() error { return c.Audience(expected.Audiences) },
		func() error { return c.Expiration(leeway, now) },
		c.IssuedAt,
		func() error { return c.AuthorizedParty(expected.Audiences) },
	}
	if expected.Nonce != "" {
		checks = append(checks, func() error { return c.Nonce(expected.Nonce) })
	}
	if expected.MaxAge != nil {
		checks = append(checks, func() error { return c.AuthTime(*expected.MaxAge, leeway, now) })
	}
	if len(expected.Organizations) > 0 {
		checks = append(checks, func() error { return c.Organization(expected.Organizations) })
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return &VerifiedClaims{claims: t.Claims()}, nil
}

// VerifiedClaims are the claims of a token which passed signature
// verification and every claim check.
type VerifiedClaims struct {
	claims map[string]interface{}
}

// Issuer returns the iss claim.
func (c *VerifiedClaims) Issuer() string { return c.GetString("iss") }

// Subject returns the sub claim.
func (c *VerifiedClaims) Subject() string { return c.GetString("sub") }

// Nonce returns the nonce claim.
func (c *VerifiedClaims) Nonce() string { return c.GetString("nonce") }

// Audience returns the aud claim as a list.
func (c *VerifiedClaims) Audience() []string {
	aud, _ := audiences(c.claims["aud"])
	return aud
}

// Organization returns the org_id and org_name claims.
func (c *VerifiedClaims) Organization() (id, name string) {
	return c.GetString("org_id"), c.GetString("org_name")
}

// AuthTime returns the auth_time claim.
func (c *VerifiedClaims) AuthTime() (time.Time, bool) {
	return numericDate(c.claims["auth_time"])
}

// Expiration returns the exp claim.
func (c *VerifiedClaims) Expiration() (time.Time, bool) {
	return numericDate(c.claims["exp"])
}

// Get returns the claim named name.
func (c *VerifiedClaims) Get(name string) (interface{}, bool) {
	v, ok := c.claims[name]
	return v, ok
}

// GetString returns the claim named name when it's a string, and "" otherwise.
func (c *VerifiedClaims) GetString(name string) string {
	s, _ := c.claims[name].(string)
	return s
}

// Claims returns a copy of every claim.
func (c *VerifiedClaims) Claims() map[string]interface{} {
	m := make(map[string]interface{}, len(c.claims))
	for k, v := range c.claims {
		m[k] = v
	}
	return m
}

// MarshalJSON encodes the claims as a JSON object.
func (c *VerifiedClaims) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.claims)
}
