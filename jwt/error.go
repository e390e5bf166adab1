// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")
	ErrUnsupportedAlg   = errors.New("unsupported signing algorithm")

	ErrMalformedToken    = errors.New("malformed token")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrKeyNotFound       = errors.New("signing key not found")
	ErrAlgorithmMismatch = errors.New("signing algorithm mismatch")

	ErrInvalidResponse = errors.New("invalid response")
	ErrNetwork         = errors.New("network error")

	ErrInvalidClaim           = errors.New("invalid claim")
	ErrInvalidIssuer          = errors.New("invalid issuer (iss) claim")
	ErrInvalidAudience        = errors.New("invalid audience (aud) claim")
	ErrExpiredToken           = errors.New("token is expired (exp)")
	ErrInvalidIssuedAt        = errors.New("invalid issued at (iat) claim")
	ErrInvalidSubject         = errors.New("invalid subject (sub) claim")
	ErrInvalidAuthorizedParty = errors.New("invalid authorized party (azp) claim")
	ErrInvalidNonce           = errors.New("invalid nonce claim")
	ErrInvalidAuthTime        = errors.New("invalid auth_time claim")
	ErrInvalidOrganization    = errors.New("invalid organization claim")
)

// MalformedTokenError is returned when a raw token can't be split and decoded
// into a header, claims and signature.
type MalformedTokenError struct {
	Reason string
}

// Error implements the error interface.
func (e *MalformedTokenError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformedToken, e.Reason)
}

// Is reports whether target is ErrMalformedToken.
func (e *MalformedTokenError) Is(target error) bool {
	return target == ErrMalformedToken
}

// SignatureReason identifies why a signature check failed.
type SignatureReason string

const (
	ReasonAlgorithmMismatch SignatureReason = "algorithm_mismatch"
	ReasonKeyNotFound       SignatureReason = "key_not_found"
	ReasonInvalidKey        SignatureReason = "invalid_key"
	ReasonBadSignature      SignatureReason = "bad_signature"
)

// SignatureError is returned when a token's signature can't be verified.
type SignatureError struct {
	Reason SignatureReason
	// Alg is the algorithm declared by the token header.
	Alg Alg
	// Expected is the algorithm of the configured Verifier.
	Expected Alg
	// KeyID is the kid declared by the token header.
	KeyID string
}

// Error implements the error interface.
func (e *SignatureError) Error() string {
	switch e.Reason {
	case ReasonAlgorithmMismatch:
		return fmt.Sprintf("%s: token alg %q does not match expected %q", ErrInvalidSignature, e.Alg, e.Expected)
	case ReasonKeyNotFound:
		return fmt.Sprintf("%s: no key found for kid %q", ErrInvalidSignature, e.KeyID)
	default:
		return fmt.Sprintf("%s: %s", ErrInvalidSignature, e.Reason)
	}
}

// Is reports whether target is ErrInvalidSignature, or the sentinel matching
// the error's Reason.
func (e *SignatureError) Is(target error) bool {
	switch target {
	case ErrInvalidSignature:
		return true
	case ErrAlgorithmMismatch:
		return e.Reason == ReasonAlgorithmMismatch
	case ErrKeyNotFound:
		return e.Reason == ReasonKeyNotFound
	}
	return false
}

// ClaimError is returned when a claim check fails.  It names the claim, but
// never carries claim values, since some of them (nonce) are secrets.
type ClaimError struct {
	Claim  string
	Reason string
}

// claimSentinels maps a claim name to its sentinel error.
var claimSentinels = map[string]error{
	"iss":       ErrInvalidIssuer,
	"aud":       ErrInvalidAudience,
	"exp":       ErrExpiredToken,
	"iat":       ErrInvalidIssuedAt,
	"sub":       ErrInvalidSubject,
	"azp":       ErrInvalidAuthorizedParty,
	"nonce":     ErrInvalidNonce,
	"auth_time": ErrInvalidAuthTime,
	"org_id":    ErrInvalidOrganization,
	"org_name":  ErrInvalidOrganization,
}

// Error implements the error interface.
func (e *ClaimError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrInvalidClaim, e.Claim, e.Reason)
}

// Is reports whether target is ErrInvalidClaim or the sentinel of the failed
// claim.
func (e *ClaimError) Is(target error) bool {
	if target == ErrInvalidClaim {
		return true
	}
	s, ok := claimSentinels[e.Claim]
	return ok && s == target
}

func claimErr(claim, format string, a ...interface{}) *ClaimError {
	return &ClaimError{Claim: claim, Reason: fmt.Sprintf(format, a...)}
}

// ResponseError is returned when a remote endpoint (token, key set or
// userinfo) answers without the fields a successful response requires.
type ResponseError struct {
	Endpoint   string
	StatusCode int
	// Code and Description are the OAuth2 error and error_description
	// parameters, when the endpoint returned them.
	Code        string
	Description string
	Reason      string
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	msg := fmt.Sprintf("%s from %s endpoint (status %d)", ErrInvalidResponse, e.Endpoint, e.StatusCode)
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Code)
		if e.Description != "" {
			msg = fmt.Sprintf("%s: %s", msg, e.Description)
		}
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	return msg
}

// Is reports whether target is ErrInvalidResponse.
func (e *ResponseError) Is(target error) bool {
	return target == ErrInvalidResponse
}

// NetworkError wraps a transport failure.  Unwrap returns the transport's
// error unmodified.
type NetworkError struct {
	Endpoint string
	Err      error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s calling %s endpoint: %s", ErrNetwork, e.Endpoint, e.Err)
}

// Unwrap returns the transport error.
func (e *NetworkError) Unwrap() error { return e.Err }

// Is reports whether target is ErrNetwork.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}
