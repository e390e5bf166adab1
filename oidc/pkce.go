// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import "golang.org/x/oauth2"

// ChallengeMethod represents PKCE code challenge methods as defined by RFC
// 7636.
type ChallengeMethod string

// S256 is the only challenge method sent: SHA-256 of the verifier, base64url
// encoded without padding.
const S256 ChallengeMethod = "S256"

// NewCodeVerifier generates a PKCE code verifier: 32 random bytes, base64url
// encoded.  It never fails.
func NewCodeVerifier() string {
	return oauth2.GenerateVerifier()
}

// CodeChallenge derives the S256 code challenge of verifier.
func CodeChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}
