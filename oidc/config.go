// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-secure-stdlib/strutil"
	"gopkg.in/yaml.v3"

	"github.com/openrp/authflow/internal/httpclient"
	"github.com/openrp/authflow/jwt"
)

// ClientSecret is an oauth client Secret.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret.
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret.
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret.
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// MarshalYAML will redact the client secret.
func (t ClientSecret) MarshalYAML() (interface{}, error) {
	return RedactedClientSecret, nil
}

// ResponseMode is the channel the provider uses to return the authorization
// response to the redirect URL.
type ResponseMode string

const (
	// ResponseModeQuery returns code and state as query parameters.
	ResponseModeQuery ResponseMode = "query"

	// ResponseModeFormPost returns code and state in a form encoded POST body.
	ResponseModeFormPost ResponseMode = "form_post"
)

// ResponseTypeCode is the only supported response_type: the authorization
// code flow.
const ResponseTypeCode = "code"

// DefaultScopes are requested when no scopes are configured.
var DefaultScopes = []string{oidc.ScopeOpenID, "profile", "email"}

// Persistence selects which session fields are persisted in the session
// storage.Store.  Fields which aren't persisted only live for the current
// Flow.
type Persistence struct {
	User         bool `yaml:"user" json:"user"`
	AccessToken  bool `yaml:"access_token" json:"access_token"`
	IDToken      bool `yaml:"id_token" json:"id_token"`
	RefreshToken bool `yaml:"refresh_token" json:"refresh_token"`
}

// Config represents the configuration of a relying party using the
// authorization code flow.  Use NewConfig or LoadConfig to get a Config with
// defaults applied, and call Validate after changing one.
type Config struct {
	// Domain is the provider's host (and optional port), without a scheme or
	// path.  Every endpoint is derived from it.
	Domain string `yaml:"domain"`

	// ClientID is the relying party id.
	ClientID string `yaml:"client_id"`

	// ClientSecret is the relying party secret.  It's required for HS256
	// signed id_tokens, which it verifies.
	ClientSecret ClientSecret `yaml:"client_secret"`

	// RedirectURL is the absolute URL the provider returns the authorization
	// response to.
	RedirectURL string `yaml:"redirect_url"`

	// Audiences of the APIs access tokens are requested for.  The first one
	// is sent as the audience parameter.
	Audiences []string `yaml:"audiences"`

	// Scopes requested by default.  They must include "openid".
	Scopes []string `yaml:"scopes"`

	ResponseMode ResponseMode `yaml:"response_mode"`
	ResponseType string       `yaml:"response_type"`

	// UsePKCE enables the S256 PKCE code challenge.
	UsePKCE bool `yaml:"use_pkce"`

	// SigningAlgorithm is the only algorithm id_tokens may be signed with:
	// RS256 (keys from the provider's key set) or HS256 (the client secret).
	SigningAlgorithm jwt.Alg `yaml:"signing_algorithm"`

	// Leeway is the clock skew allowed when validating exp and auth_time.
	Leeway time.Duration `yaml:"leeway"`

	// MaxAge is the default max_age, in seconds, of an authentication.  Nil
	// means no max_age is requested.
	MaxAge *int `yaml:"max_age"`

	// JWKSURL overrides the provider's key set URL.
	JWKSURL string `yaml:"jwks_url"`

	// Organizations, when set, are the organizations an id_token's org_id or
	// org_name claim must match.
	Organizations []string `yaml:"organizations"`

	Persist Persistence `yaml:"persist"`

	// SkipUserInfo populates the session's user from the id_token's claims
	// instead of the userinfo endpoint.
	SkipUserInfo bool `yaml:"skip_userinfo"`

	// Discovery resolves the provider's endpoints with its
	// /.well-known/openid-configuration document instead of deriving them
	// from Domain.
	Discovery bool `yaml:"discovery"`

	// ProviderCA is an optional CA certs (PEM encoded) to use when sending
	// requests to the provider.
	ProviderCA string `yaml:"provider_ca"`

	// HTTPTimeout bounds every request sent to the provider.
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	Logger hclog.Logger `yaml:"-"`
}

// configDefaults returns a Config with every default applied.
func configDefaults() Config {
	return Config{
		Scopes:           append([]string(nil), DefaultScopes...),
		ResponseMode:     ResponseModeQuery,
		ResponseType:     ResponseTypeCode,
		SigningAlgorithm: jwt.RS256,
		Leeway:           jwt.DefaultLeeway,
		Persist:          Persistence{User: true},
		SkipUserInfo:     true,
		HTTPTimeout:      httpclient.DefaultTimeout,
	}
}

// NewConfig composes a new config for a provider.  The returned Config has
// been validated.
//
// Supported options:
//   - WithAudiences
//   - WithScopes
//   - WithResponseMode
//   - WithPKCE
//   - WithSigningAlgorithm
//   - WithLeeway
//   - WithMaxAge
//   - WithJWKSURL
//   - WithOrganizations
//   - WithPersistence
//   - WithUserInfo
//   - WithDiscovery
//   - WithProviderCA
//   - WithHTTPTimeout
//   - WithLogger
func NewConfig(domain, clientID string, clientSecret ClientSecret, redirectURL string, opt ...Option) (*Config, error) {
	const op = "NewConfig"
	c := configDefaults()
	c.Domain = domain
	c.ClientID = clientID
	c.ClientSecret = clientSecret
	c.RedirectURL = redirectURL
	ApplyOpts(&c, opt...)
	c.Scopes = withOpenID(c.Scopes)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &c, nil
}

// LoadConfig reads a YAML config file.  Keys missing from the file keep their
// defaults, and the options are applied on top of the file.  The returned
// Config has been validated.
func LoadConfig(path string, opt ...Option) (*Config, error) {
	const op = "LoadConfig"
	if path == "" {
		return nil, fmt.Errorf("%s: path is empty: %w", op, ErrInvalidParameter)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read config: %w", op, err)
	}
	c := configDefaults()
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("%s: unable to parse config: %w", op, err)
	}
	ApplyOpts(&c, opt...)
	c.Scopes = withOpenID(c.Scopes)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &c, nil
}

// withOpenID makes sure the required openid scope comes first, and removes
// duplicates.
func withOpenID(scopes []string) []string {
	return strutil.RemoveDuplicatesStable(append([]string{oidc.ScopeOpenID}, scopes...), false)
}

// Validate the configuration.  Every invalid field is reported as a
// *ConfigError, combined into a single multierror.  Validate doesn't send any
// requests to the provider.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	invalid := func(field, reason string) {
		result = multierror.Append(result, &ConfigError{Field: field, Reason: reason})
	}

	switch {
	case c.Domain == "":
		invalid("domain", "is empty")
	default:
		if u, err := url.Parse("https://" + c.Domain); err != nil || u.Host != c.Domain {
			invalid("domain", "must be a host name without a scheme or path")
		}
	}
	if c.ClientID == "" {
		invalid("client_id", "is empty")
	}
	switch {
	case c.RedirectURL == "":
		invalid("redirect_url", "is empty")
	default:
		if u, err := url.Parse(c.RedirectURL); err != nil || u.Scheme == "" || u.Host == "" {
			invalid("redirect_url", "must be an absolute URL")
		}
	}
	switch c.ResponseMode {
	case ResponseModeQuery, ResponseModeFormPost:
	default:
		invalid("response_mode", fmt.Sprintf("%q is not supported", c.ResponseMode))
	}
	if c.ResponseType != ResponseTypeCode {
		invalid("response_type", fmt.Sprintf("%q is not supported", c.ResponseType))
	}
	if err := jwt.SupportedSigningAlgorithm(c.SigningAlgorithm); err != nil {
		invalid("signing_algorithm", fmt.Sprintf("%q is not supported", c.SigningAlgorithm))
	} else if c.SigningAlgorithm == jwt.HS256 {
		if _, err := jwt.NewSymmetricVerifier([]byte(c.ClientSecret)); err != nil {
			invalid("client_secret", "HS256 requires a client secret of at least 32 bytes")
		}
	}
	if !strutil.StrListContains(c.Scopes, oidc.ScopeOpenID) {
		invalid("scopes", "must include openid")
	}
	if c.Leeway < 0 {
		invalid("leeway", "is negative")
	}
	if c.MaxAge != nil && *c.MaxAge < 0 {
		invalid("max_age", "is negative")
	}
	if c.JWKSURL != "" {
		if u, err := url.Parse(c.JWKSURL); err != nil || u.Scheme == "" || u.Host == "" {
			invalid("jwks_url", "must be an absolute URL")
		}
	}
	for _, o := range c.Organizations {
		if o == "" {
			invalid("organizations", "contains an empty organization")
			break
		}
	}
	if c.HTTPTimeout < 0 {
		invalid("http_timeout", "is negative")
	}
	if c.ProviderCA != "" {
		if _, err := httpclient.New(c.ProviderCA, c.HTTPTimeout); err != nil {
			invalid("provider_ca", "is not a valid PEM encoded certificate")
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Issuer returns the expected iss claim of id_tokens: https://{domain}/
func (c *Config) Issuer() string {
	return "https://" + c.Domain + "/"
}

// HTTPClient is a helper function that creates a new http client for the
// provider configured.
func (c *Config) HTTPClient() (*http.Client, error) {
	const op = "Config.HTTPClient"
	client, err := httpclient.New(c.ProviderCA, c.HTTPTimeout)
	if err != nil {
		if errors.Is(err, httpclient.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		return nil, fmt.Errorf("%s: could not get an http client: %w", op, err)
	}
	return client, nil
}

// HTTPClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key used
// by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
func HTTPClientContext(ctx context.Context, client *http.Client) context.Context {
	// simple to implement as a wrapper for the coreos package
	return oidc.ClientContext(ctx, client)
}
