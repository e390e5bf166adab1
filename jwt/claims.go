// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// OrganizationIDPrefix marks an expected organization value as an
// organization id; any other value is compared against the org_name claim.
const OrganizationIDPrefix = "org_"

// ClaimValidator runs individual claim checks against the claims of a token
// whose signature has already been verified.  Every check returns a
// *ClaimError naming the claim on failure.
type ClaimValidator struct {
	claims map[string]interface{}
}

// NewClaimValidator returns a ClaimValidator for claims.
func NewClaimValidator(claims map[string]interface{}) *ClaimValidator {
	return &ClaimValidator{claims: claims}
}

// Issuer requires iss to equal expected exactly.
func (c *ClaimValidator) Issuer(expected string) error {
	iss, ok := c.claims["iss"].(string)
	switch {
	case !ok || iss == "":
		return claimErr("iss", "missing")
	case iss != expected:
		return claimErr("iss", "does not match the expected issuer")
	}
	return nil
}

// Audience requires aud (a string or an array of strings) to contain at least
// one of expected.
func (c *ClaimValidator) Audience(expected []string) error {
	aud, ok := audiences(c.claims["aud"])
	if !ok {
		return claimErr("aud", "missing or not a string or array of strings")
	}
	for _, a := range aud {
		for _, e := range expected {
			if a == e {
				return nil
			}
		}
	}
	return claimErr("aud", "does not contain an expected audience")
}

// Expiration requires exp to exist and now <= exp + leeway.
func (c *ClaimValidator) Expiration(leeway time.Duration, now time.Time) error {
	exp, ok := numericDate(c.claims["exp"])
	switch {
	case !ok:
		return claimErr("exp", "missing or not a numeric date")
	case now.After(exp.Add(leeway)):
		return claimErr("exp", "token is expired")
	}
	return nil
}

// IssuedAt requires iat to exist and be a numeric date.
func (c *ClaimValidator) IssuedAt() error {
	if _, ok := numericDate(c.claims["iat"]); !ok {
		return claimErr("iat", "missing or not a numeric date")
	}
	return nil
}

// Subject requires a non-empty sub.
func (c *ClaimValidator) Subject() error {
	if sub, ok := c.claims["sub"].(string); !ok || sub == "" {
		return claimErr("sub", "missing")
	}
	return nil
}

// AuthorizedParty requires, when aud has more than one entry, that azp exists
// and is one of audience.
func (c *ClaimValidator) AuthorizedParty(audience []string) error {
	aud, _ := audiences(c.claims["aud"])
	if len(aud) <= 1 {
		return nil
	}
	azp, ok := c.claims["azp"].(string)
	if !ok || azp == "" {
		return claimErr("azp", "missing with multiple audiences")
	}
	for _, a := range audience {
		if azp == a {
			return nil
		}
	}
	return claimErr("azp", "does not match an expected audience")
}

// Nonce requires nonce to equal expected exactly.
func (c *ClaimValidator) Nonce(expected string) error {
	nonce, ok := c.claims["nonce"].(string)
	switch {
	case !ok || nonce == "":
		return claimErr("nonce", "missing")
	case nonce != expected:
		return claimErr("nonce", "does not match the issued nonce")
	}
	return nil
}

// AuthTime requires auth_time to exist and now - auth_time <= maxAge + leeway.
// Call it only when a max_age was requested.
func (c *ClaimValidator) AuthTime(maxAge, leeway time.Duration, now time.Time) error {
	at, ok := numericDate(c.claims["auth_time"])
	switch {
	case !ok:
		return claimErr("auth_time", "missing or not a numeric date")
	case now.After(at.Add(maxAge + leeway)):
		return claimErr("auth_time", "too much time has elapsed since the last end-user authentication")
	}
	return nil
}

// Organization requires the token to belong to one of expected.  Values with
// the OrganizationIDPrefix are compared against org_id exactly, all others
// against org_name without regard to case.
func (c *ClaimValidator) Organization(expected []string) error {
	id, _ := c.claims["org_id"].(string)
	name, _ := c.claims["org_name"].(string)
	byID := false
	for _, e := range expected {
		if strings.HasPrefix(e, OrganizationIDPrefix) {
			byID = true
			if id != "" && id == e {
				return nil
			}
			continue
		}
		if name != "" && strings.EqualFold(name, e) {
			return nil
		}
	}
	claim := "org_name"
	if byID {
		claim = "org_id"
	}
	if (byID && id == "") || (!byID && name == "") {
		return claimErr(claim, "missing")
	}
	return claimErr(claim, "does not match an expected organization")
}

// audiences returns aud as a slice; a single string is a one element slice.
func audiences(v interface{}) ([]string, bool) {
	switch aud := v.(type) {
	case string:
		if aud == "" {
			return nil, false
		}
		return []string{aud}, true
	case []string:
		return aud, len(aud) > 0
	case []interface{}:
		out := make([]string, 0, len(aud))
		for _, a := range aud {
			s, ok := a.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, len(out) > 0
	}
	return nil, false
}

// numericDate converts a JSON NumericDate (seconds since the epoch, possibly
// fractional) to a time.
func numericDate(v interface{}) (time.Time, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return time.Unix(i, 0), true
		}
		var err error
		if f, err = n.Float64(); err != nil {
			return time.Time{}, false
		}
	case float64:
		f = n
	case int64:
		return time.Unix(n, 0), true
	case int:
		return time.Unix(int64(n), 0), true
	default:
		return time.Time{}, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)), true
}
