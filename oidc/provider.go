// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"

	"github.com/openrp/authflow/jwt"
)

const (
	authorizePath = "/authorize"
	tokenPath     = "/oauth/token"
	userInfoPath  = "/userinfo"
	logoutPath    = "/v2/logout"

	userInfoEndpoint = "userinfo"
)

// Provider provides integration with an OIDC provider for the authorization
// code flow.  It's safe for concurrent use, and is meant to be shared by every
// request; per end-user state lives in a Flow.
type Provider struct {
	config *Config
	client *http.Client

	// provider resolves endpoints and serves userinfo requests.
	provider  *oidc.Provider
	endpoints endpoints

	keys      *jwt.KeyFetcher
	validator *jwt.Validator
	logger    hclog.Logger
	now       func() time.Time
}

type endpoints struct {
	AuthURL     string
	TokenURL    string
	UserInfoURL string
	JWKSURL     string
}

// NewProvider creates and initializes a Provider.  Endpoints are derived from
// the Config's Domain, or resolved with OIDC discovery when the Config enables
// it, in which case the provider must be reachable and its discovery document's
// issuer must match exactly.
//
// The id_token verifier is chosen by the Config's SigningAlgorithm, and only by
// it: HS256 verifies with the client secret, RS256 with the keys published by
// the configured issuer.
//
// Supported options:
//   - WithHTTPClient
//   - WithKeySetCache
//   - WithKeySetTTL
//   - WithNow
func NewProvider(ctx context.Context, c *Config, opt ...Option) (*Provider, error) {
	const op = "NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}
	opts := getProviderOpts(opt...)

	client := opts.withHTTPClient
	if client == nil {
		var err error
		if client, err = c.HTTPClient(); err != nil {
			return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
		}
	}
	logger := c.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	p := &Provider{
		config: c,
		client: client,
		logger: logger.Named("provider"),
		now:    opts.withNow,
	}
	if err := p.resolveEndpoints(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		verifier jwt.Verifier
		err      error
	)
	switch c.SigningAlgorithm {
	case jwt.HS256:
		sv, err := jwt.NewSymmetricVerifier([]byte(c.ClientSecret))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		verifier = sv
	default:
		fetcherOpts := []jwt.Option{
			jwt.WithHTTPClient(client),
			jwt.WithLogger(logger),
			jwt.WithNow(p.now),
			jwt.WithJWKSURL(p.endpoints.JWKSURL),
		}
		if opts.withKeySetCache != nil {
			fetcherOpts = append(fetcherOpts, jwt.WithKeySetCache(opts.withKeySetCache))
		}
		if opts.withKeySetTTL != nil {
			fetcherOpts = append(fetcherOpts, jwt.WithKeySetTTL(*opts.withKeySetTTL))
		}
		keys, err := jwt.NewKeyFetcher(fetcherOpts...)
		if err != nil {
			return nil, fmt.Errorf("%s: unable to create key fetcher: %w", op, err)
		}
		av, err := jwt.NewAsymmetricVerifier(c.Issuer(), keys)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		p.keys, verifier = keys, av
	}
	if p.validator, err = jwt.NewValidator(verifier); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// resolveEndpoints builds the go-oidc provider, either from the well known
// endpoints of the Config's Domain or with discovery.
func (p *Provider) resolveEndpoints(ctx context.Context) error {
	const op = "Provider.resolveEndpoints"
	oidcCtx := oidc.ClientContext(ctx, p.client)
	issuer := p.config.Issuer()

	if p.config.Discovery {
		provider, err := oidc.NewProvider(oidcCtx, issuer)
		if err != nil {
			return fmt.Errorf("%s: unable to discover provider %s: %w", op, issuer, err)
		}
		var discovered struct {
			JWKSURL string `json:"jwks_uri"`
		}
		if err := provider.Claims(&discovered); err != nil {
			return fmt.Errorf("%s: unable to read discovery document: %w", op, err)
		}
		p.provider = provider
		p.endpoints = endpoints{
			AuthURL:     provider.Endpoint().AuthURL,
			TokenURL:    provider.Endpoint().TokenURL,
			UserInfoURL: provider.UserInfoEndpoint(),
			JWKSURL:     discovered.JWKSURL,
		}
	} else {
		base := "https://" + p.config.Domain
		pc := &oidc.ProviderConfig{
			IssuerURL:   issuer,
			AuthURL:     base + authorizePath,
			TokenURL:    base + tokenPath,
			UserInfoURL: base + userInfoPath,
			JWKSURL:     base + "/" + jwt.WellKnownJWKS,
			Algorithms:  []string{string(p.config.SigningAlgorithm)},
		}
		p.provider = pc.NewProvider(oidcCtx)
		p.endpoints = endpoints{
			AuthURL:     pc.AuthURL,
			TokenURL:    pc.TokenURL,
			UserInfoURL: pc.UserInfoURL,
			JWKSURL:     pc.JWKSURL,
		}
	}
	if p.config.JWKSURL != "" {
		p.endpoints.JWKSURL = p.config.JWKSURL
	}
	if p.config.SigningAlgorithm == jwt.HS256 {
		// verified with the client secret, no key set is ever fetched
		p.endpoints.JWKSURL = ""
	}
	p.logger.Debug("resolved endpoints", "issuer", issuer, "discovery", p.config.Discovery,
		"authorization_endpoint", p.endpoints.AuthURL, "token_endpoint", p.endpoints.TokenURL,
		"jwks_uri", p.endpoints.JWKSURL)
	return nil
}

// Config returns the Provider's Config.
func (p *Provider) Config() *Config {
	return p.config
}

// HTTPClient returns the http client used to reach the provider.
func (p *Provider) HTTPClient() *http.Client {
	return p.client
}

// KeyFetcher returns the Provider's key fetcher, or nil when id_tokens are
// HS256 signed.
func (p *Provider) KeyFetcher() *jwt.KeyFetcher {
	return p.keys
}

// Endpoint returns the provider's oauth2 endpoints.
func (p *Provider) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   p.endpoints.AuthURL,
		TokenURL:  p.endpoints.TokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// oauth2Config is used to build authorization URLs.
func (p *Provider) oauth2Config(redirectURL string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: string(p.config.ClientSecret),
		Endpoint:     p.Endpoint(),
		RedirectURL:  redirectURL,
		Scopes:       scopes,
	}
}

// verifyIDToken verifies t's signature, then validates its claims.  An empty
// nonce and a nil maxAge skip those checks; renewals use neither.
func (p *Provider) verifyIDToken(ctx context.Context, t IDToken, nonce string, maxAge *int) (*jwt.VerifiedClaims, error) {
	const op = "Provider.verifyIDToken"
	expected := jwt.Expected{
		Issuer:        p.config.Issuer(),
		Audiences:     []string{p.config.ClientID},
		Nonce:         nonce,
		Organizations: p.config.Organizations,
		Leeway:        p.config.Leeway,
		Now:           p.now,
	}
	if p.config.Leeway == 0 {
		expected.Leeway = -1
	}
	if maxAge != nil {
		d := time.Duration(*maxAge) * time.Second
		expected.MaxAge = &d
	}
	claims, err := p.validator.Validate(ctx, string(t), expected)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return claims, nil
}

// UserInfo gets the end-user's profile from the userinfo endpoint, using the
// access token.
func (p *Provider) UserInfo(ctx context.Context, t AccessToken) (map[string]interface{}, error) {
	const op = "Provider.UserInfo"
	if t == "" {
		return nil, fmt.Errorf("%s: access token is empty: %w", op, ErrInvalidParameter)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: string(t), TokenType: "Bearer"})
	info, err := p.provider.UserInfo(oidc.ClientContext(ctx, p.client), ts)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return nil, fmt.Errorf("%s: %w", op, &NetworkError{Endpoint: userInfoEndpoint, Err: err})
		}
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUserInfoFailed, err)
	}
	var profile map[string]interface{}
	if err := info.Claims(&profile); err != nil {
		return nil, fmt.Errorf("%s: unable to decode profile: %w: %w", op, ErrUserInfoFailed, err)
	}
	if sub, _ := profile["sub"].(string); sub == "" {
		return nil, fmt.Errorf("%s: %w", op, &ResponseError{Endpoint: userInfoEndpoint, StatusCode: http.StatusOK, Reason: "sub is missing"})
	}
	return profile, nil
}

// LogoutURL returns the provider's logout URL, which ends the end-user's
// session at the provider and then redirects to returnTo, when set.
func (p *Provider) LogoutURL(returnTo string) (string, error) {
	const op = "Provider.LogoutURL"
	if returnTo != "" {
		if u, err := url.Parse(returnTo); err != nil || u.Scheme == "" || u.Host == "" {
			return "", fmt.Errorf("%s: return to URL must be absolute: %w", op, ErrInvalidParameter)
		}
	}
	q := url.Values{}
	q.Set("client_id", p.config.ClientID)
	if returnTo != "" {
		q.Set("returnTo", returnTo)
	}
	u := url.URL{
		Scheme:   "https",
		Host:     p.config.Domain,
		Path:     logoutPath,
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}

// RequestContext reads the authorization response of r, using the configured
// response mode.
func (p *Provider) RequestContext(r *http.Request) (*RequestContext, error) {
	return NewRequestContext(r, p.config.ResponseMode)
}
