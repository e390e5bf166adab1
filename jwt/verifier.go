// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/go-jose/go-jose/v4"
)

// minHMACKeyLen is the shortest secret accepted for HS256.
const minHMACKeyLen = 32

// Verifier checks the signature of a parsed Token.  A Verifier supports
// exactly one algorithm, chosen when it's created; a token whose header
// declares any other algorithm is rejected before any cryptographic check.
type Verifier interface {
	Algorithm() Alg
	Verify(ctx context.Context, t *Token) error
}

// SymmetricVerifier verifies HS256 tokens with a shared secret.
type SymmetricVerifier struct {
	secret []byte
}

var _ Verifier = (*SymmetricVerifier)(nil)

// NewSymmetricVerifier creates a SymmetricVerifier.  The secret must be at
// least 32 bytes.
func NewSymmetricVerifier(secret []byte) (*SymmetricVerifier, error) {
	const op = "jwt.NewSymmetricVerifier"
	if len(secret) < minHMACKeyLen {
		return nil, fmt.Errorf("%s: secret must be at least %d bytes: %w", op, minHMACKeyLen, ErrInvalidParameter)
	}
	return &SymmetricVerifier{secret: append([]byte(nil), secret...)}, nil
}

// Algorithm returns HS256.
func (v *SymmetricVerifier) Algorithm() Alg { return HS256 }

// Verify implements Verifier.
func (v *SymmetricVerifier) Verify(_ context.Context, t *Token) error {
	const op = "SymmetricVerifier.Verify"
	if t == nil {
		return fmt.Errorf("%s: token is nil: %w", op, ErrNilParameter)
	}
	if err := checkAlg(t, HS256); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := verifySignature(t, HS256, v.secret); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// AsymmetricVerifier verifies RS256 tokens with keys published by the
// configured issuer.  The key set is always looked up by that issuer, never by
// the iss claim of the token being verified.
type AsymmetricVerifier struct {
	issuer string
	keys   *KeyFetcher
}

var _ Verifier = (*AsymmetricVerifier)(nil)

// NewAsymmetricVerifier creates an AsymmetricVerifier for issuer.
func NewAsymmetricVerifier(issuer string, keys *KeyFetcher) (*AsymmetricVerifier, error) {
	const op = "jwt.NewAsymmetricVerifier"
	switch {
	case issuer == "":
		return nil, fmt.Errorf("%s: issuer is empty: %w", op, ErrInvalidParameter)
	case keys == nil:
		return nil, fmt.Errorf("%s: key fetcher is nil: %w", op, ErrNilParameter)
	}
	return &AsymmetricVerifier{issuer: issuer, keys: keys}, nil
}

// Algorithm returns RS256.
func (v *AsymmetricVerifier) Algorithm() Alg { return RS256 }

// Verify implements Verifier.  A network failure while fetching keys is
// returned as is; a missing key is a SignatureError with ReasonKeyNotFound.
func (v *AsymmetricVerifier) Verify(ctx context.Context, t *Token) error {
	const op = "AsymmetricVerifier.Verify"
	if t == nil {
		return fmt.Errorf("%s: token is nil: %w", op, ErrNilParameter)
	}
	if err := checkAlg(t, RS256); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	kid := t.Header().KeyID
	k, err := v.keys.Key(ctx, v.issuer, kid)
	switch {
	case errors.Is(err, ErrKeyNotFound):
		return fmt.Errorf("%s: %w", op, &SignatureError{Reason: ReasonKeyNotFound, KeyID: kid, Alg: RS256, Expected: RS256})
	case err != nil:
		return fmt.Errorf("%s: %w", op, err)
	}
	if k.Algorithm != "" && k.Algorithm != string(RS256) {
		return fmt.Errorf("%s: %w", op, &SignatureError{Reason: ReasonInvalidKey, KeyID: kid, Alg: RS256, Expected: RS256})
	}
	pub, ok := k.Key.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%s: %w", op, &SignatureError{Reason: ReasonInvalidKey, KeyID: kid, Alg: RS256, Expected: RS256})
	}
	if err := verifySignature(t, RS256, pub); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func checkAlg(t *Token, expected Alg) error {
	if got := t.Header().Alg; got != expected {
		return &SignatureError{Reason: ReasonAlgorithmMismatch, Alg: got, Expected: expected, KeyID: t.Header().KeyID}
	}
	return nil
}

// verifySignature pins go-jose's allow-list to the one expected algorithm.
func verifySignature(t *Token, alg Alg, key interface{}) error {
	jws, err := jose.ParseSigned(t.Raw(), []jose.SignatureAlgorithm{alg.jose()})
	if err != nil {
		return &SignatureError{Reason: ReasonBadSignature, Alg: t.Header().Alg, Expected: alg, KeyID: t.Header().KeyID}
	}
	if _, err := jws.Verify(key); err != nil {
		return &SignatureError{Reason: ReasonBadSignature, Alg: t.Header().Alg, Expected: alg, KeyID: t.Header().KeyID}
	}
	return nil
}
