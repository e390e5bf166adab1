// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"crypto/rsa"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/hashicorp/go-secure-stdlib/strutil"
	"github.com/stretchr/testify/require"

	"github.com/openrp/authflow/jwt"
)

// Default client credentials of a TestProvider.  The secret is long enough to
// verify HS256 id_tokens.
const (
	TestClientID     = "test-client-id"
	TestClientSecret = "test-client-secret-which-is-at-least-32-bytes"
	TestRedirectURL  = "https://example.com/callback"
	TestKeyID        = "test-key-id"
)

// TestProvider is local server that supports test provider capabilities which
// make writing tests much easier.  It serves discovery, the authorize, token,
// key set and userinfo endpoints, and counts the requests each one receives.
//
// The authorize endpoint doesn't authenticate anyone: it redirects to the
// redirect_uri with the expected auth code, and remembers the nonce and PKCE
// challenge it was sent so the token endpoint can honor them.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string

	signingKey *rsa.PrivateKey

	mu                  sync.Mutex
	clientID            string
	clientSecret        string
	alg                 jwt.Alg
	allowedRedirectURIs []string
	expectedAuthCode    string
	accessToken         string
	refreshToken        string
	replySubject        string
	replyUserinfo       map[string]interface{}
	customClaims        map[string]interface{}
	customAudience      []string
	omitIDToken         bool
	omitAccessToken     bool
	disableUserInfo     bool
	rotateRefresh       bool
	expiresIn           time.Duration
	nowFunc             func() time.Time

	// captured by the authorize endpoint
	authNonce     string
	authChallenge string
	authRedirect  string

	requests map[string]int
	renewals int

	t testing.TB
}

// testProviderOptions is the set of available options for StartTestProvider
type testProviderOptions struct {
	withPort int
}

// WithTestPort provides an optional port for StartTestProvider.
func WithTestPort(port int) Option {
	return func(o interface{}) {
		if v, ok := o.(*testProviderOptions); ok {
			v.withPort = port
		}
	}
}

// StartTestProvider creates a disposable TestProvider, which is stopped when
// the test completes.  It signs RS256 id_tokens by default.
//
// Supported options:
//   - WithTestPort
func StartTestProvider(t testing.TB, opt ...Option) *TestProvider {
	t.Helper()
	require := require.New(t)
	var opts testProviderOptions
	ApplyOpts(&opts, opt...)

	p := &TestProvider{
		clientID:            TestClientID,
		clientSecret:        TestClientSecret,
		alg:                 jwt.RS256,
		allowedRedirectURIs: []string{TestRedirectURL},
		expectedAuthCode:    "test-auth-code",
		accessToken:         "test-access-token",
		replySubject:        "auth0|alice",
		replyUserinfo: map[string]interface{}{
			"email": "alice@example.com",
			"name":  "Alice",
		},
		expiresIn: time.Hour,
		nowFunc:   time.Now,
		requests:  map[string]int{},
		t:         t,
	}
	p.signingKey = jwt.TestGenerateRSAKey(t)

	if opts.withPort != 0 {
		p.httpServer = httptestNewUnstartedServerWithPort(t, p, opts.withPort)
	} else {
		p.httpServer = httptest.NewUnstartedServer(p)
	}
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	cert := p.httpServer.Certificate()
	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	require.NoError(err)
	p.caCert = buf.String()

	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the current base URL for the test provider's running webserver.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// Domain returns the host and port of the test provider, suitable for
// Config.Domain.
func (p *TestProvider) Domain() string {
	return strings.TrimPrefix(p.httpServer.URL, "https://")
}

// Issuer returns the issuer of id_tokens signed by the test provider.
func (p *TestProvider) Issuer() string { return p.httpServer.URL + "/" }

// CACert returns the pem-encoded CA certificate used by the test provider's
// HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// HTTPClient returns an http client which trusts the test provider.
func (p *TestProvider) HTTPClient() *http.Client { return p.httpServer.Client() }

// SigningKey returns the RSA key RS256 id_tokens are signed with.
func (p *TestProvider) SigningKey() *rsa.PrivateKey { return p.signingKey }

// SetClientCreds is for configuring the client information required for the
// OIDC workflows.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// SetSigningAlgorithm configures how id_tokens are signed: RS256 with the
// test provider's key, or HS256 with the client secret.
func (p *TestProvider) SetSigningAlgorithm(alg jwt.Alg) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alg = alg
}

// SetExpectedAuthCode configures the auth code to return from /authorize and
// the allowed auth code for /oauth/token.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
}

// SetAllowedRedirectURIs allows you to configure the allowed redirect URIs for
// the OIDC workflow. If not configured TestRedirectURL is used.
func (p *TestProvider) SetAllowedRedirectURIs(uris []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetAccessToken configures the access_token returned by /oauth/token.
func (p *TestProvider) SetAccessToken(t string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accessToken = t
}

// SetRefreshToken configures the refresh_token returned by /oauth/token, and
// the only refresh token it accepts.
func (p *TestProvider) SetRefreshToken(t string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshToken = t
}

// SetExpiresIn configures the expires_in returned by /oauth/token.
func (p *TestProvider) SetExpiresIn(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expiresIn = d
}

// SetCustomClaims lets you set claims to return in the id_token.  They
// override the standard claims, and a nil value removes a claim.
func (p *TestProvider) SetCustomClaims(customClaims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = customClaims
}

// SetCustomAudience configures what audience value to embed in the id_token.
func (p *TestProvider) SetCustomAudience(customAudience ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customAudience = customAudience
}

// SetUserInfoReply configures the profile returned by /userinfo.
func (p *TestProvider) SetUserInfoReply(profile map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replyUserinfo = profile
}

// SetNowFunc configures how the test provider will determine the current
// time.
func (p *TestProvider) SetNowFunc(n func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nowFunc = n
}

// SetOmitIDTokens forces /oauth/token not to return an id_token.
func (p *TestProvider) SetOmitIDTokens(omit bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = omit
}

// SetOmitAccessTokens forces an error state where /oauth/token does not
// return an access_token.
func (p *TestProvider) SetOmitAccessTokens(omit bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitAccessToken = omit
}

// SetRotateRefreshTokens makes the refresh_token grant replace the refresh
// token with a new one on every renewal.
func (p *TestProvider) SetRotateRefreshTokens(rotate bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rotateRefresh = rotate
}

// RefreshToken returns the refresh token the test provider currently
// accepts.
func (p *TestProvider) RefreshToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshToken
}

// SetDisableUserInfo makes the userinfo endpoint return 404 and omits it from
// the discovery config.
func (p *TestProvider) SetDisableUserInfo(disable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableUserInfo = disable
}

// Requests returns the number of requests path received.
func (p *TestProvider) Requests(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[path]
}

// Authorize plays the end-user's browser: it follows authURL to the authorize
// endpoint and returns the callback URL the provider redirects to.
func (p *TestProvider) Authorize(authURL string) (*url.URL, error) {
	client := *p.HTTPClient()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, err := client.Get(authURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		return nil, fmt.Errorf("authorize returned %d", resp.StatusCode)
	}
	return url.Parse(resp.Header.Get("Location"))
}

// SignIDToken signs claims the way the test provider signs its id_tokens.
func (p *TestProvider) SignIDToken(claims map[string]interface{}) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signIDToken(claims)
}

func (p *TestProvider) signIDToken(claims map[string]interface{}) string {
	if p.alg == jwt.HS256 {
		return jwt.TestSignJWT(p.t, []byte(p.clientSecret), string(jwt.HS256), claims, "")
	}
	return jwt.TestSignJWT(p.t, p.signingKey, string(jwt.RS256), claims, TestKeyID)
}

// idTokenClaims returns the claims of the next id_token.  An empty nonce is
// left out.
func (p *TestProvider) idTokenClaims(nonce string) map[string]interface{} {
	now := p.nowFunc()
	claims := map[string]interface{}{
		"iss":       p.Issuer(),
		"sub":       p.replySubject,
		"aud":       p.clientID,
		"iat":       now.Unix(),
		"exp":       now.Add(5 * time.Minute).Unix(),
		"auth_time": now.Unix(),
	}
	if len(p.customAudience) > 0 {
		claims["aud"] = p.customAudience
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	for k, v := range p.customClaims {
		if v == nil {
			delete(claims, k)
			continue
		}
		claims[k] = v
	}
	return claims
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, errorCode, errorMessage string) {
	qv := req.URL.Query()

	redirectURI := qv.Get("redirect_uri") +
		"?state=" + url.QueryEscape(qv.Get("state")) +
		"&error=" + url.QueryEscape(errorCode)

	if errorMessage != "" {
		redirectURI += "&error_description=" + url.QueryEscape(errorMessage)
	}

	http.Redirect(w, req, redirectURI, http.StatusFound)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) error {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}

	w.WriteHeader(statusCode)
	return p.writeJSON(w, &body)
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.t.Helper()
	p.requests[req.URL.Path]++

	w.Header().Set("Content-Type", "application/json")

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		reply := struct {
			Issuer           string   `json:"issuer"`
			AuthEndpoint     string   `json:"authorization_endpoint"`
			TokenEndpoint    string   `json:"token_endpoint"`
			JWKSURI          string   `json:"jwks_uri"`
			UserinfoEndpoint string   `json:"userinfo_endpoint,omitempty"`
			Algs             []string `json:"id_token_signing_alg_values_supported"`
		}{
			Issuer:           p.Issuer(),
			AuthEndpoint:     p.Addr() + authorizePath,
			TokenEndpoint:    p.Addr() + tokenPath,
			JWKSURI:          p.Addr() + "/" + jwt.WellKnownJWKS,
			UserinfoEndpoint: p.Addr() + userInfoPath,
			Algs:             []string{string(p.alg)},
		}
		if p.disableUserInfo {
			reply.UserinfoEndpoint = ""
		}
		_ = p.writeJSON(w, &reply)

	case authorizePath:
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		qv := req.URL.Query()

		redirectURI := qv.Get("redirect_uri")
		if !strutil.StrListContains(p.allowedRedirectURIs, redirectURI) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch {
		case qv.Get("response_type") != ResponseTypeCode:
			p.writeAuthErrorResponse(w, req, "unsupported_response_type", "")
			return
		case qv.Get("client_id") != p.clientID:
			p.writeAuthErrorResponse(w, req, "unauthorized_client", "unknown client_id")
			return
		case !strutil.StrListContains(strings.Fields(qv.Get("scope")), "openid"):
			p.writeAuthErrorResponse(w, req, "invalid_scope", "")
			return
		case qv.Get("state") == "":
			p.writeAuthErrorResponse(w, req, "invalid_request", "missing state parameter")
			return
		case p.expectedAuthCode == "":
			p.writeAuthErrorResponse(w, req, "access_denied", "")
			return
		}
		if method := qv.Get("code_challenge_method"); method != "" && method != string(S256) {
			p.writeAuthErrorResponse(w, req, "invalid_request", "unsupported code_challenge_method")
			return
		}
		p.authNonce = qv.Get("nonce")
		p.authChallenge = qv.Get("code_challenge")
		p.authRedirect = redirectURI

		redirectURI += "?state=" + url.QueryEscape(qv.Get("state")) +
			"&code=" + url.QueryEscape(p.expectedAuthCode)
		http.Redirect(w, req, redirectURI, http.StatusFound)

	case "/" + jwt.WellKnownJWKS:
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		jwks := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwt.TestJWK(p.t, p.signingKey, jwt.RS256, TestKeyID)}}
		_ = p.writeJSON(w, jwks)

	case tokenPath:
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if req.FormValue("client_id") != p.clientID || req.FormValue("client_secret") != p.clientSecret {
			_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "bad client credentials")
			return
		}

		var nonce string
		switch req.FormValue("grant_type") {
		case "authorization_code":
			switch {
			case !strutil.StrListContains(p.allowedRedirectURIs, req.FormValue("redirect_uri")):
				_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not allowed")
				return
			case p.authRedirect != "" && req.FormValue("redirect_uri") != p.authRedirect:
				_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "redirect_uri doesn't match the authorization request")
				return
			case req.FormValue("code") != p.expectedAuthCode:
				_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_grant", "unexpected auth code")
				return
			case p.authChallenge != "" && CodeChallenge(req.FormValue("code_verifier")) != p.authChallenge:
				_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "code_verifier doesn't match the code_challenge")
				return
			}
			nonce = p.authNonce
		case "refresh_token":
			if p.refreshToken == "" || req.FormValue("refresh_token") != p.refreshToken {
				_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unknown refresh token")
				return
			}
			p.renewals++
			if p.rotateRefresh {
				p.refreshToken = fmt.Sprintf("%s-rotated-%d", p.refreshToken, p.renewals)
			}
		default:
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "unsupported_grant_type", "bad grant_type")
			return
		}

		reply := struct {
			AccessToken  string `json:"access_token,omitempty"`
			IDToken      string `json:"id_token,omitempty"`
			RefreshToken string `json:"refresh_token,omitempty"`
			TokenType    string `json:"token_type"`
			ExpiresIn    int64  `json:"expires_in,omitempty"`
		}{
			AccessToken:  p.accessToken,
			RefreshToken: p.refreshToken,
			TokenType:    "Bearer",
			ExpiresIn:    int64(p.expiresIn.Seconds()),
		}
		if p.renewals > 0 && req.FormValue("grant_type") == "refresh_token" {
			reply.AccessToken = p.accessToken + "-renewed-" + strconv.Itoa(p.renewals)
		}
		if !p.omitIDToken {
			reply.IDToken = p.signIDToken(p.idTokenClaims(nonce))
		}
		if p.omitAccessToken {
			reply.AccessToken = ""
		}
		_ = p.writeJSON(w, &reply)

	case userInfoPath:
		if p.disableUserInfo {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if req.Header.Get("Authorization") != "Bearer "+p.accessToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		reply := map[string]interface{}{"sub": p.replySubject}
		for k, v := range p.replyUserinfo {
			reply[k] = v
		}
		_ = p.writeJSON(w, reply)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// httptestNewUnstartedServerWithPort is roughly the same as
// httptest.NewUnstartedServer() but allows the caller to explicitly choose the
// port if desired.
func httptestNewUnstartedServerWithPort(t testing.TB, handler http.Handler, port int) *httptest.Server {
	t.Helper()
	require := require.New(t)
	require.NotEmpty(port)

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	l, err := net.Listen("tcp", addr)
	require.NoError(err)

	return &httptest.Server{
		Listener: l,
		Config:   &http.Server{Handler: handler},
	}
}
