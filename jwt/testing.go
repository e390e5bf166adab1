// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/require"
)

// TestGenerateRSAKey will generate a 2048 bit test RSA key.
func TestGenerateRSAKey(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return k
}

// TestSignJWT will bundle the provided claims into a signed test JWT.  key is
// a crypto.PrivateKey for asymmetric algs, or a []byte secret for HS256.  The
// alg is taken as is, so tokens with a mismatched alg can be produced.
func TestSignJWT(t testing.TB, key interface{}, alg string, claims interface{}, keyID string) string {
	t.Helper()
	require := require.New(t)

	hdr := &jose.SignerOptions{}
	hdr = hdr.WithType("JWT")
	if keyID != "" {
		hdr = hdr.WithHeader("kid", keyID)
	}
	sig, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.SignatureAlgorithm(alg), Key: key}, hdr)
	require.NoError(err)

	payload, err := json.Marshal(claims)
	require.NoError(err)
	obj, err := sig.Sign(payload)
	require.NoError(err)
	raw, err := obj.CompactSerialize()
	require.NoError(err)
	return raw
}

// TestJWK returns the public JSON web key of priv.
func TestJWK(t testing.TB, priv crypto.Signer, alg Alg, keyID string) jose.JSONWebKey {
	t.Helper()
	return jose.JSONWebKey{
		Key:       priv.Public(),
		KeyID:     keyID,
		Algorithm: string(alg),
		Use:       "sig",
	}
}

// TestJWKS is a TLS key set endpoint for tests.  It counts the requests it
// serves.
type TestJWKS struct {
	t      testing.TB
	server *httptest.Server

	mu       sync.Mutex
	keys     []jose.JSONWebKey
	status   int
	body     string
	requests int
}

// StartTestJWKS starts a TestJWKS which is closed by t.Cleanup.  Its
// Issuer() publishes the key set at Issuer() + WellKnownJWKS.
func StartTestJWKS(t testing.TB, keys ...jose.JSONWebKey) *TestJWKS {
	t.Helper()
	j := &TestJWKS{t: t, keys: keys, status: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/"+WellKnownJWKS, j.serveKeys)
	j.server = httptest.NewTLSServer(mux)
	t.Cleanup(j.server.Close)
	return j
}

func (j *TestJWKS) serveKeys(w http.ResponseWriter, _ *http.Request) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.requests++
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(j.status)
	if j.body != "" {
		_, _ = w.Write([]byte(j.body))
		return
	}
	err := json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: j.keys})
	require.NoError(j.t, err)
}

// Issuer returns the issuer url of the server, with a trailing slash.
func (j *TestJWKS) Issuer() string { return j.server.URL + "/" }

// HTTPClient returns a client which trusts the server's certificate.
func (j *TestJWKS) HTTPClient() *http.Client { return j.server.Client() }

// SetKeys replaces the published keys.
func (j *TestJWKS) SetKeys(keys ...jose.JSONWebKey) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.keys = keys
}

// SetResponse makes the server answer with status and a raw body.  An empty
// body restores the published key set.
func (j *TestJWKS) SetResponse(status int, body string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
	j.body = body
}

// Requests returns the number of key set requests served.
func (j *TestJWKS) Requests() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.requests
}
