// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Header is the decoded JOSE header of a token.
type Header struct {
	Alg   Alg
	KeyID string
	Type  string
}

// Token is a parsed, but not yet verified, compact JWS.  It's immutable once
// parsed; the accessors return copies.
type Token struct {
	raw       string
	header    Header
	claims    map[string]interface{}
	signature []byte
}

// Parse splits raw into its three segments and decodes them.  The header must
// be a JSON object with a non-empty string "alg", and the claims must be a
// JSON object.  The signature is kept as opaque bytes.
//
// Parse makes no trust decision: the returned Token must still be verified.
// Failures are a *MalformedTokenError.
func Parse(raw string) (*Token, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, &MalformedTokenError{Reason: fmt.Sprintf("expected 3 segments but found %d", len(parts))}
	}
	for i, p := range parts {
		if p == "" {
			return nil, &MalformedTokenError{Reason: fmt.Sprintf("segment %d is empty", i+1)}
		}
	}

	var hdr map[string]interface{}
	if err := decodeSegment(parts[0], &hdr); err != nil {
		return nil, &MalformedTokenError{Reason: "header: " + err.Error()}
	}
	h, err := parseHeader(hdr)
	if err != nil {
		return nil, &MalformedTokenError{Reason: "header: " + err.Error()}
	}

	var claims map[string]interface{}
	if err := decodeSegment(parts[1], &claims); err != nil {
		return nil, &MalformedTokenError{Reason: "claims: " + err.Error()}
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, &MalformedTokenError{Reason: "signature is not base64url encoded"}
	}

	return &Token{
		raw:       raw,
		header:    h,
		claims:    claims,
		signature: sig,
	}, nil
}

func decodeSegment(seg string, v *map[string]interface{}) error {
	b, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return fmt.Errorf("not base64url encoded")
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("not a JSON object")
	}
	if *v == nil {
		return fmt.Errorf("not a JSON object")
	}
	if dec.More() {
		return fmt.Errorf("trailing data after JSON object")
	}
	return nil
}

func parseHeader(hdr map[string]interface{}) (Header, error) {
	var h Header
	alg, ok := hdr["alg"].(string)
	if !ok || alg == "" {
		return h, fmt.Errorf("missing alg")
	}
	h.Alg = Alg(alg)
	if v, found := hdr["kid"]; found {
		kid, ok := v.(string)
		if !ok {
			return h, fmt.Errorf("kid is not a string")
		}
		h.KeyID = kid
	}
	if v, found := hdr["typ"]; found {
		typ, ok := v.(string)
		if !ok {
			return h, fmt.Errorf("typ is not a string")
		}
		h.Type = typ
	}
	return h, nil
}

// Raw returns the compact serialization the Token was parsed from.
func (t *Token) Raw() string { return t.raw }

// Header returns the decoded header.
func (t *Token) Header() Header { return t.header }

// Claims returns a shallow copy of the token's claims.  Numeric claims are
// json.Number values.
func (t *Token) Claims() map[string]interface{} {
	c := make(map[string]interface{}, len(t.claims))
	for k, v := range t.claims {
		c[k] = v
	}
	return c
}

// Signature returns a copy of the decoded signature bytes.
func (t *Token) Signature() []byte {
	return append([]byte(nil), t.signature...)
}
