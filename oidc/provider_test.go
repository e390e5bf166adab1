// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrp/authflow/jwt"
)

// testLogger returns a trace level logger which writes to the test's log.
func testLogger(t testing.TB) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   t.Name(),
		Level:  hclog.Trace,
		Output: testWriter{t},
	})
}

type testWriter struct{ t testing.TB }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}

func TestNewProvider_config(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tp := StartTestProvider(t)

	stopped := StartTestProvider(t)
	stopped.Stop()

	tests := []struct {
		name        string
		config      *Config
		opt         []Option
		wantErr     bool
		wantIsErr   error
		wantKeys    bool
		wantJWKSURL string
	}{
		{
			name:        "rs256",
			config:      TestConfig(t, tp),
			wantKeys:    true,
			wantJWKSURL: tp.Addr() + "/" + jwt.WellKnownJWKS,
		},
		{
			name:   "hs256",
			config: TestConfig(t, tp, WithSigningAlgorithm(jwt.HS256)),
		},
		{
			name:   "hs256-ignores-key-set",
			config: TestConfig(t, tp, WithSigningAlgorithm(jwt.HS256), WithDiscovery(), WithJWKSURL("https://keys.example.com/jwks.json")),
		},
		{
			name:        "jwks-url-override",
			config:      TestConfig(t, tp, WithJWKSURL("https://keys.example.com/jwks.json")),
			wantKeys:    true,
			wantJWKSURL: "https://keys.example.com/jwks.json",
		},
		{
			name:        "discovery",
			config:      TestConfig(t, tp, WithDiscovery()),
			wantKeys:    true,
			wantJWKSURL: tp.Addr() + "/" + jwt.WellKnownJWKS,
		},
		{
			name:        "with-options",
			config:      TestConfig(t, tp),
			opt:         []Option{WithHTTPClient(tp.HTTPClient()), WithKeySetCache(jwt.NewMemoryKeySetCache()), WithKeySetTTL(time.Minute)},
			wantKeys:    true,
			wantJWKSURL: tp.Addr() + "/" + jwt.WellKnownJWKS,
		},
		{
			name:    "discovery-unreachable",
			config:  TestConfig(t, stopped, WithDiscovery()),
			wantErr: true,
		},
		{
			name:      "nil-config",
			wantErr:   true,
			wantIsErr: ErrNilParameter,
		},
		{
			name:      "invalid-config",
			config:    &Config{Domain: "tenant.example.com"},
			wantErr:   true,
			wantIsErr: ErrInvalidConfiguration,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := NewProvider(ctx, tt.config, tt.opt...)
			if tt.wantErr {
				require.Error(err)
				if tt.wantIsErr != nil {
					assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				}
				return
			}
			require.NoError(err)
			assert.Equal(tt.config, got.Config())
			assert.NotNil(got.HTTPClient())
			assert.Equal(tt.wantKeys, got.KeyFetcher() != nil)
			assert.Equal(tt.wantJWKSURL, got.endpoints.JWKSURL)
			assert.Equal(tp.Addr()+authorizePath, got.Endpoint().AuthURL)
			assert.Equal(tp.Addr()+tokenPath, got.Endpoint().TokenURL)
			assert.Equal(tp.Addr()+userInfoPath, got.endpoints.UserInfoURL)
		})
	}
	t.Run("discovery-issuer-mismatch", func(t *testing.T) {
		mismatch := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"issuer":"https://evil.example.com/","authorization_endpoint":"https://evil.example.com/authorize"}`))
		}))
		t.Cleanup(mismatch.Close)
		c := TestConfig(t, tp, WithDiscovery())
		c.Domain = mismatch.Listener.Addr().String()
		_, err := NewProvider(ctx, c, WithHTTPClient(mismatch.Client()))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unable to discover provider")
	})
}

func TestProvider_UserInfo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		p := TestNewProvider(t, tp)
		got, err := p.UserInfo(ctx, "test-access-token")
		require.NoError(err)
		assert.Equal(map[string]interface{}{
			"sub":   "auth0|alice",
			"email": "alice@example.com",
			"name":  "Alice",
		}, got)
	})
	t.Run("discovered", func(t *testing.T) {
		tp := StartTestProvider(t)
		p := TestNewProvider(t, tp, WithDiscovery())
		got, err := p.UserInfo(ctx, "test-access-token")
		require.NoError(t, err)
		assert.Equal(t, "auth0|alice", got["sub"])
	})
	t.Run("discovered-without-userinfo", func(t *testing.T) {
		tp := StartTestProvider(t)
		tp.SetDisableUserInfo(true)
		p := TestNewProvider(t, tp, WithDiscovery())
		_, err := p.UserInfo(ctx, "test-access-token")
		require.Error(t, err)
		assert.Truef(t, errors.Is(err, ErrUserInfoFailed), "wanted \"%s\" but got \"%s\"", ErrUserInfoFailed, err)
	})

	tp := StartTestProvider(t)
	p := TestNewProvider(t, tp)
	stopped := StartTestProvider(t)
	stoppedP := TestNewProvider(t, stopped)
	stopped.Stop()
	noSub := StartTestProvider(t)
	noSub.SetUserInfoReply(map[string]interface{}{"sub": "", "email": "alice@example.com"})
	noSubP := TestNewProvider(t, noSub)

	tests := []struct {
		name      string
		p         *Provider
		token     AccessToken
		wantIsErr error
	}{
		{name: "empty-token", p: p, wantIsErr: ErrInvalidParameter},
		{name: "unauthorized", p: p, token: "not-the-access-token", wantIsErr: ErrUserInfoFailed},
		{name: "network", p: stoppedP, token: "test-access-token", wantIsErr: ErrNetwork},
		{name: "missing-sub", p: noSubP, token: "test-access-token", wantIsErr: ErrInvalidResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			_, err := tt.p.UserInfo(ctx, tt.token)
			require.Error(err)
			assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
		})
	}
}

func TestProvider_LogoutURL(t *testing.T) {
	t.Parallel()
	tp := StartTestProvider(t)
	p := TestNewProvider(t, tp)
	tests := []struct {
		name      string
		returnTo  string
		want      url.Values
		wantIsErr error
	}{
		{
			name:     "with-return-to",
			returnTo: "https://app.example.com/bye",
			want:     url.Values{"client_id": {TestClientID}, "returnTo": {"https://app.example.com/bye"}},
		},
		{
			name: "without-return-to",
			want: url.Values{"client_id": {TestClientID}},
		},
		{
			name:      "relative-return-to",
			returnTo:  "/bye",
			wantIsErr: ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := p.LogoutURL(tt.returnTo)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			u, err := url.Parse(got)
			require.NoError(err)
			assert.Equal("https", u.Scheme)
			assert.Equal(tp.Domain(), u.Host)
			assert.Equal(logoutPath, u.Path)
			assert.Equal(tt.want, u.Query())
		})
	}
}

func TestProvider_RequestContext(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	p := TestNewProvider(t, tp, WithResponseMode(ResponseModeFormPost))
	r := httptest.NewRequest(http.MethodGet, "https://example.com/callback?code=c1&state=s1", nil)
	rc, err := p.RequestContext(r)
	require.NoError(err)
	assert.Empty(rc.Code, "form_post ignores the query string")
}
