// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"fmt"

	"github.com/go-jose/go-jose/v4"
)

// Alg represents asymmetric and symmetric signing algorithms
type Alg string

const (
	// JOSE asymmetric signing algorithm values as defined by RFC 7518.
	//
	// See: https://tools.ietf.org/html/rfc7518#section-3.1
	RS256 Alg = "RS256" // RSASSA-PKCS-v1.5 using SHA-256

	// JOSE symmetric signing algorithm values as defined by RFC 7518.
	HS256 Alg = "HS256" // HMAC using SHA-256
)

// supportedAlgorithms are the only algorithms a Verifier can be configured
// with.
var supportedAlgorithms = map[Alg]jose.SignatureAlgorithm{
	RS256: jose.RS256,
	HS256: jose.HS256,
}

// SupportedSigningAlgorithm returns an error if any of the given Algs
// are not supported signing algorithms.
func SupportedSigningAlgorithm(algs ...Alg) error {
	for _, a := range algs {
		if _, ok := supportedAlgorithms[a]; !ok {
			return fmt.Errorf("unsupported signing algorithm %q: %w", a, ErrUnsupportedAlg)
		}
	}
	return nil
}

func (a Alg) jose() jose.SignatureAlgorithm {
	return supportedAlgorithms[a]
}
