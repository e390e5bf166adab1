// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/text/language"

	"github.com/openrp/authflow/jwt"
	"github.com/openrp/authflow/storage"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// authURLOptions is the set of available options for Flow.AuthURL
type authURLOptions struct {
	withState        string
	withNonce        string
	withScopes       []string
	withAudiences    []string
	withMaxAge       *int
	withOrganization string
	withInvitation   string
	withPrompts      []Prompt
	withUILocales    []language.Tag
	withLoginHint    string
	withRedirectURL  string
	withExtraParams  map[string]string
}

// getAuthURLOpts applies the opt overrides to the Config's defaults.
func getAuthURLOpts(c *Config, opt ...Option) authURLOptions {
	opts := authURLOptions{
		withScopes:    c.Scopes,
		withAudiences: c.Audiences,
		withMaxAge:    c.MaxAge,
	}
	ApplyOpts(&opts, opt...)
	opts.withScopes = withOpenID(opts.withScopes)
	return opts
}

// providerOptions is the set of available options for NewProvider
type providerOptions struct {
	withHTTPClient  *http.Client
	withKeySetCache jwt.KeySetCache
	withKeySetTTL   *time.Duration
	withNow         func() time.Time
}

func getProviderOpts(opt ...Option) providerOptions {
	opts := providerOptions{withNow: time.Now}
	ApplyOpts(&opts, opt...)
	return opts
}

// flowOptions is the set of available options for Provider.NewFlow
type flowOptions struct {
	withTransientStore  storage.Store
	withTransientPrefix string
}

func getFlowOpts(opt ...Option) flowOptions {
	var opts flowOptions
	ApplyOpts(&opts, opt...)
	return opts
}

// renewOptions is the set of available options for Flow.Renew
type renewOptions struct {
	withScopes []string
}

func getRenewOpts(opt ...Option) renewOptions {
	var opts renewOptions
	ApplyOpts(&opts, opt...)
	return opts
}

// WithAudiences provides an optional list of audiences for: Config and
// Flow.AuthURL.  The first audience is sent as the audience parameter.
func WithAudiences(auds ...string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *Config:
			v.Audiences = auds
		case *authURLOptions:
			v.withAudiences = auds
		}
	}
}

// WithScopes provides an optional list of scopes for: Config, Flow.AuthURL and
// Flow.Renew.  The openid scope is always requested by Config and
// Flow.AuthURL, whether it's in the list or not.
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *Config:
			v.Scopes = scopes
		case *authURLOptions:
			v.withScopes = scopes
		case *renewOptions:
			v.withScopes = scopes
		}
	}
}

// WithMaxAge provides an optional max_age, in seconds, for: Config and
// Flow.AuthURL.  When an authentication requested a max_age, its id_token
// must carry an auth_time no older than max_age.
func WithMaxAge(seconds int) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *Config:
			v.MaxAge = &seconds
		case *authURLOptions:
			v.withMaxAge = &seconds
		}
	}
}

// WithResponseMode provides an optional response mode for the Config.
func WithResponseMode(m ResponseMode) Option {
	return func(o interface{}) {
		if c, ok := o.(*Config); ok {
			c.ResponseMode = m
		}
	}
}

// WithPKCE enables PKCE for the Config.
func WithPKCE() Option {
	return func(o interface{}) {
		if c, ok := o.(*Config); ok {
			c.UsePKCE = true
		}
	}
}

// WithSigningAlgorithm provides the id_token signing algorithm for the Config.
func WithSigningAlgorithm(alg jwt.Alg) Option {
	return func(o interface{}) {
		if c, ok := o.(*Config); ok {
			c.SigningAlgorithm = alg
		}
	}
}

// WithLeeway provides the clock skew allowed for the Config.
func WithLeeway(d time.Duration) Option {
	return func(o interface{}) {
		if c, ok := o.(*Config); ok {
			c.Leeway = d
		}
	}
}

// WithJWKSURL overrides the key set URL for the Config.
func WithJWKSURL(u string) Option {
	return func(o interface{}) {
		if c, ok := o.(*Config); ok {
			c.JWKSURL = u
		}
	}
}

// WithOrganizations provides the organizations id_tokens must belong to for
// the Config.
func WithOrganizations(orgs ...string) Option {
	return func(o interface{}) {
		if c, ok := o.(*Config); ok {
			c.Organizations = orgs
		}
	}
}

// WithPersistence selects which session fields the Config persists.
func WithPersistence(p Persistence) Option {
	return func(o interface{}) {
		if c, ok := o.(*Config); ok {
			c.Persist = p
		}
	}
}

// WithUserInfo makes the Config populate the session user from the userinfo
// endpoint instead of the id_token claims.
func WithUserInfo() Option {
	return func(o interface{}) {
		if c, ok := o.(*Config); ok {
			c.SkipUserInfo = false
		}
	}
}

// WithDiscovery makes the Config resolve endpoints with OIDC discovery.
func WithDiscovery() Option {
	return func(o interface{}) {
		if c, ok := o.(*Config); ok {
			c.Discovery = true
		}
	}
}

// WithProviderCA provides an optional CA cert for the Config.
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if c, ok := o.(*Config); ok {
			c.ProviderCA = cert
		}
	}
}

// WithHTTPTimeout provides the request timeout for the Config.
func WithHTTPTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if c, ok := o.(*Config); ok {
			c.HTTPTimeout = d
		}
	}
}

// WithLogger provides an optional logger for the Config.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if c, ok := o.(*Config); ok {
			c.Logger = l
		}
	}
}

// WithState provides a caller supplied state for Flow.AuthURL.  It's stored
// for verification at exchange, instead of a generated one.
func WithState(s string) Option {
	return func(o interface{}) {
		if v, ok := o.(*authURLOptions); ok {
			v.withState = s
		}
	}
}

// WithNonce provides a caller supplied nonce for Flow.AuthURL.
func WithNonce(n string) Option {
	return func(o interface{}) {
		if v, ok := o.(*authURLOptions); ok {
			v.withNonce = n
		}
	}
}

// WithOrganization provides an optional organization for Flow.AuthURL.
func WithOrganization(org string) Option {
	return func(o interface{}) {
		if v, ok := o.(*authURLOptions); ok {
			v.withOrganization = org
		}
	}
}

// WithInvitation provides an optional organization invitation for
// Flow.AuthURL.
func WithInvitation(inv string) Option {
	return func(o interface{}) {
		if v, ok := o.(*authURLOptions); ok {
			v.withInvitation = inv
		}
	}
}

// WithPrompts provides an optional list of prompt values for Flow.AuthURL.
// None can't be combined with any other prompt.
func WithPrompts(prompts ...Prompt) Option {
	return func(o interface{}) {
		if v, ok := o.(*authURLOptions); ok {
			v.withPrompts = prompts
		}
	}
}

// WithUILocales provides an optional list of preferred UI languages for
// Flow.AuthURL.
func WithUILocales(tags ...language.Tag) Option {
	return func(o interface{}) {
		if v, ok := o.(*authURLOptions); ok {
			v.withUILocales = tags
		}
	}
}

// WithLoginHint provides an optional login_hint for Flow.AuthURL.
func WithLoginHint(hint string) Option {
	return func(o interface{}) {
		if v, ok := o.(*authURLOptions); ok {
			v.withLoginHint = hint
		}
	}
}

// WithRedirectURL overrides the Config's redirect URL for Flow.AuthURL.
func WithRedirectURL(u string) Option {
	return func(o interface{}) {
		if v, ok := o.(*authURLOptions); ok {
			v.withRedirectURL = u
		}
	}
}

// WithExtraParams provides additional authorization request parameters for
// Flow.AuthURL.  They never override the parameters the flow sets itself.
func WithExtraParams(params map[string]string) Option {
	return func(o interface{}) {
		if v, ok := o.(*authURLOptions); ok {
			v.withExtraParams = params
		}
	}
}

// WithHTTPClient provides the http client for NewProvider, instead of one
// built from the Config.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		if v, ok := o.(*providerOptions); ok {
			v.withHTTPClient = c
		}
	}
}

// WithKeySetCache provides the key set cache for NewProvider.  Share one
// (like a jwt.StoreKeySetCache over redis) between processes to share
// fetched keys.
func WithKeySetCache(c jwt.KeySetCache) Option {
	return func(o interface{}) {
		if v, ok := o.(*providerOptions); ok {
			v.withKeySetCache = c
		}
	}
}

// WithKeySetTTL provides the key set cache TTL for NewProvider.
func WithKeySetTTL(d time.Duration) Option {
	return func(o interface{}) {
		if v, ok := o.(*providerOptions); ok {
			v.withKeySetTTL = &d
		}
	}
}

// WithNow provides an optional func for determining what the current time it
// is, for NewProvider.
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if v, ok := o.(*providerOptions); ok && now != nil {
			v.withNow = now
		}
	}
}

// WithTransientStore provides a storage.Store for the transient values of
// Provider.NewFlow.  By default they share the session's store.
func WithTransientStore(s storage.Store) Option {
	return func(o interface{}) {
		if v, ok := o.(*flowOptions); ok {
			v.withTransientStore = s
		}
	}
}

// WithTransientPrefix provides the key prefix of transient values for
// Provider.NewFlow.
func WithTransientPrefix(p string) Option {
	return func(o interface{}) {
		if v, ok := o.(*flowOptions); ok {
			v.withTransientPrefix = p
		}
	}
}
