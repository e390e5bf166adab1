// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"github.com/openrp/authflow/jwt"
	"github.com/openrp/authflow/storage"
)

func TestApplyOpts(t *testing.T) {
	// Let's make sure we don't panic on nil options
	anonymousOpts := struct {
		Names []string
	}{
		nil,
	}
	ApplyOpts(anonymousOpts, nil)
}

func Test_getAuthURLOpts(t *testing.T) {
	t.Parallel()
	c := &Config{
		Scopes:    []string{"openid", "email"},
		Audiences: []string{"https://api.example.com"},
		MaxAge:    func() *int { i := 60; return &i }(),
	}
	t.Run("config-defaults", func(t *testing.T) {
		assert := assert.New(t)
		opts := getAuthURLOpts(c)
		assert.Equal([]string{"openid", "email"}, opts.withScopes)
		assert.Equal([]string{"https://api.example.com"}, opts.withAudiences)
		assert.Equal(60, *opts.withMaxAge)
		assert.Empty(opts.withState)
	})
	t.Run("overrides", func(t *testing.T) {
		assert := assert.New(t)
		opts := getAuthURLOpts(c,
			WithState("st"),
			WithNonce("n"),
			WithScopes("profile"),
			WithAudiences("https://other.example.com"),
			WithMaxAge(0),
			WithOrganization("org_123"),
			WithInvitation("inv_123"),
			WithPrompts(Login),
			WithUILocales(language.French, language.AmericanEnglish),
			WithLoginHint("alice@example.com"),
			WithRedirectURL("https://app.example.com/other"),
			WithExtraParams(map[string]string{"screen_hint": "signup"}),
			WithPKCE(), // ignored
		)
		assert.Equal(authURLOptions{
			withState:        "st",
			withNonce:        "n",
			withScopes:       []string{"openid", "profile"},
			withAudiences:    []string{"https://other.example.com"},
			withMaxAge:       func() *int { i := 0; return &i }(),
			withOrganization: "org_123",
			withInvitation:   "inv_123",
			withPrompts:      []Prompt{Login},
			withUILocales:    []language.Tag{language.French, language.AmericanEnglish},
			withLoginHint:    "alice@example.com",
			withRedirectURL:  "https://app.example.com/other",
			withExtraParams:  map[string]string{"screen_hint": "signup"},
		}, opts)
		assert.False(c.UsePKCE)
	})
}

func Test_getProviderOpts(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	opts := getProviderOpts()
	assert.NotNil(opts.withNow)
	assert.Nil(opts.withHTTPClient)

	testNow := func() time.Time { return time.Unix(1, 0) }
	client := &http.Client{}
	cache := jwt.NewMemoryKeySetCache()
	opts = getProviderOpts(WithHTTPClient(client), WithNow(testNow), WithKeySetCache(cache), WithKeySetTTL(time.Minute), WithNow(nil))
	assert.Equal(client, opts.withHTTPClient)
	assert.Equal(time.Unix(1, 0), opts.withNow())
	assert.Equal(cache, opts.withKeySetCache)
	assert.Equal(time.Minute, *opts.withKeySetTTL)
}

func Test_getFlowOpts(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	s := storage.NewMemoryStore()
	opts := getFlowOpts(WithTransientStore(s), WithTransientPrefix("auth0_"))
	assert.Equal(flowOptions{withTransientStore: s, withTransientPrefix: "auth0_"}, opts)
}

func Test_getRenewOpts(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.Empty(getRenewOpts().withScopes)
	assert.Equal([]string{"read:messages"}, getRenewOpts(WithScopes("read:messages")).withScopes)
}
