// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCodeVerifier(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	v1, v2 := NewCodeVerifier(), NewCodeVerifier()
	// 32 bytes, base64url without padding
	assert.Len(v1, 43)
	assert.NotEqual(v1, v2)
	assert.NotContains(v1, "=")
}

func TestCodeChallenge(t *testing.T) {
	t.Parallel()
	calcHash := func(data []byte) string {
		h := sha256.New()
		_, _ = h.Write(data)
		sum := h.Sum(nil)
		return base64.RawURLEncoding.EncodeToString(sum)
	}
	t.Run("basics", func(t *testing.T) {
		assert := assert.New(t)
		v := NewCodeVerifier()
		assert.Equal(calcHash([]byte(v)), CodeChallenge(v))
		assert.Equal(CodeChallenge(v), CodeChallenge(v))
	})
	t.Run("rfc7636-appendix-b", func(t *testing.T) {
		assert := assert.New(t)
		assert.Equal("E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", CodeChallenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"))
	})
}
