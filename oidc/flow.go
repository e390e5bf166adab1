// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-secure-stdlib/strutil"
	"golang.org/x/oauth2"

	"github.com/openrp/authflow/storage"
	"github.com/openrp/authflow/transient"
)

// reservedParams can't be set with WithExtraParams.
var reservedParams = []string{
	"response_type", "response_mode", "client_id", "redirect_uri", "scope",
	"state", "nonce", "code_challenge", "code_challenge_method", "max_age",
}

// Flow drives one end-user's authorization code flow.  Create one per request
// with Provider.NewFlow; a Flow isn't safe for concurrent use.
type Flow struct {
	provider  *Provider
	sessions  storage.Store
	transient *transient.Store
	session   Session
}

// NewFlow creates a Flow for the end-user whose session lives in sessions,
// and loads the session fields the Config persists.  Transient values (state,
// nonce, code verifier and max_age) are kept in the same store unless
// WithTransientStore is used.
//
// Supported options:
//   - WithTransientStore
//   - WithTransientPrefix
func (p *Provider) NewFlow(ctx context.Context, sessions storage.Store, opt ...Option) (*Flow, error) {
	const op = "Provider.NewFlow"
	if sessions == nil {
		return nil, fmt.Errorf("%s: session store is nil: %w", op, ErrNilParameter)
	}
	opts := getFlowOpts(opt...)
	ts := opts.withTransientStore
	if ts == nil {
		ts = sessions
	}
	var txOpts []transient.Option
	if opts.withTransientPrefix != "" {
		txOpts = append(txOpts, transient.WithPrefix(opts.withTransientPrefix))
	}
	tx, err := transient.New(ts, txOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s, err := loadSession(ctx, sessions, p.config.Persist)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Flow{
		provider:  p,
		sessions:  sessions,
		transient: tx,
		session:   s,
	}, nil
}

// Provider returns the Provider the Flow was created by.
func (f *Flow) Provider() *Provider {
	return f.provider
}

// Session returns a copy of the end-user's session.
func (f *Flow) Session() Session {
	return f.session.copy()
}

// User returns a copy of the end-user's profile, or nil when no user is
// authenticated.
func (f *Flow) User() map[string]interface{} {
	return f.session.copy().User
}

// AuthURL builds the provider's authorization URL the end-user is redirected
// to.  A state and nonce are generated, unless provided, and stored for
// verification at exchange; with PKCE a code verifier is generated and stored
// and only its S256 challenge is sent.  A max_age is stored as well, so the
// id_token's auth_time can be checked.
//
// Supported options:
//   - WithState
//   - WithNonce
//   - WithScopes
//   - WithAudiences
//   - WithMaxAge
//   - WithOrganization
//   - WithInvitation
//   - WithPrompts
//   - WithUILocales
//   - WithLoginHint
//   - WithRedirectURL
//   - WithExtraParams
func (f *Flow) AuthURL(ctx context.Context, opt ...Option) (string, error) {
	const op = "Flow.AuthURL"
	c := f.provider.config
	opts := getAuthURLOpts(c, opt...)

	if opts.withMaxAge != nil && *opts.withMaxAge < 0 {
		return "", fmt.Errorf("%s: max age is negative: %w", op, ErrInvalidParameter)
	}
	redirectURL := c.RedirectURL
	if opts.withRedirectURL != "" {
		if u, err := url.Parse(opts.withRedirectURL); err != nil || u.Scheme == "" || u.Host == "" {
			return "", fmt.Errorf("%s: redirect URL must be absolute: %w", op, ErrInvalidParameter)
		}
		redirectURL = opts.withRedirectURL
	}
	var params []oauth2.AuthCodeOption
	if len(opts.withPrompts) > 0 {
		prompt, err := promptParam(opts.withPrompts)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		params = append(params, oauth2.SetAuthURLParam("prompt", prompt))
	}

	// extra params go first, so they can't override what follows
	for k, v := range opts.withExtraParams {
		if strutil.StrListContains(reservedParams, k) {
			continue
		}
		params = append(params, oauth2.SetAuthURLParam(k, v))
	}

	state, err := f.issueOrStore(ctx, transient.State, opts.withState)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	nonce, err := f.issueOrStore(ctx, transient.Nonce, opts.withNonce)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	params = append(params,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("response_mode", string(c.ResponseMode)),
	)

	if c.UsePKCE {
		verifier := NewCodeVerifier()
		if err := f.transient.Store(ctx, transient.CodeVerifier, verifier); err != nil {
			return "", fmt.Errorf("%s: unable to store code verifier: %w", op, err)
		}
		params = append(params, oauth2.S256ChallengeOption(verifier))
	}
	// the token request must repeat the redirect_uri sent here
	if redirectURL != c.RedirectURL {
		if err := f.transient.Store(ctx, transient.RedirectURI, redirectURL); err != nil {
			return "", fmt.Errorf("%s: unable to store redirect URL: %w", op, err)
		}
	} else {
		stale, err := f.transient.IsSet(ctx, transient.RedirectURI)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if stale {
			if _, _, err := f.transient.GetOnce(ctx, transient.RedirectURI); err != nil {
				return "", fmt.Errorf("%s: %w", op, err)
			}
		}
	}
	if opts.withMaxAge != nil {
		maxAge := strconv.Itoa(*opts.withMaxAge)
		if err := f.transient.Store(ctx, transient.MaxAge, maxAge); err != nil {
			return "", fmt.Errorf("%s: unable to store max age: %w", op, err)
		}
		params = append(params, oauth2.SetAuthURLParam("max_age", maxAge))
	}
	if len(opts.withAudiences) > 0 && opts.withAudiences[0] != "" {
		params = append(params, oauth2.SetAuthURLParam("audience", opts.withAudiences[0]))
	}
	if opts.withOrganization != "" {
		params = append(params, oauth2.SetAuthURLParam("organization", opts.withOrganization))
	}
	if opts.withInvitation != "" {
		params = append(params, oauth2.SetAuthURLParam("invitation", opts.withInvitation))
	}
	if len(opts.withUILocales) > 0 {
		locales := make([]string, 0, len(opts.withUILocales))
		for _, l := range opts.withUILocales {
			locales = append(locales, l.String())
		}
		params = append(params, oauth2.SetAuthURLParam("ui_locales", strings.Join(locales, " ")))
	}
	if opts.withLoginHint != "" {
		params = append(params, oauth2.SetAuthURLParam("login_hint", opts.withLoginHint))
	}

	authURL := f.provider.oauth2Config(redirectURL, opts.withScopes).AuthCodeURL(state, params...)
	f.provider.logger.Debug("built authorization url", "pkce", c.UsePKCE, "response_mode", c.ResponseMode,
		"max_age", opts.withMaxAge != nil, "scopes", opts.withScopes)
	return authURL, nil
}

func (f *Flow) issueOrStore(ctx context.Context, name, value string) (string, error) {
	if value == "" {
		return f.transient.Issue(ctx, name)
	}
	if err := f.transient.Store(ctx, name, value); err != nil {
		return "", err
	}
	return value, nil
}

// Exchange completes the flow with the authorization response in rc.  It
// returns false, and no error, when rc carries no code: the end-user simply
// hasn't authenticated yet.
//
// Otherwise the state is verified, the PKCE code verifier consumed, the code
// exchanged at the token endpoint and the id_token verified and validated
// against the issued nonce and max_age.  The session is only changed, and
// persisted, once every step succeeded.
//
// A Flow with an authenticated user refuses to exchange another code with
// ErrDuplicateSession, before any transient value is consumed; so a replayed
// callback is rejected by this guard rather than by the (already consumed)
// state.
func (f *Flow) Exchange(ctx context.Context, rc *RequestContext) (bool, error) {
	const op = "Flow.Exchange"
	if rc == nil {
		return false, fmt.Errorf("%s: request context is nil: %w", op, ErrNilParameter)
	}
	if rc.Error != nil {
		return false, fmt.Errorf("%s: %w", op, rc.Error)
	}
	if rc.Code == "" {
		return false, nil
	}
	if f.session.User != nil {
		return false, fmt.Errorf("%s: %w", op, ErrDuplicateSession)
	}

	ok, err := f.transient.Verify(ctx, transient.State, rc.State)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return false, fmt.Errorf("%s: state is missing or doesn't match: %w", op, ErrInvalidState)
	}

	c := f.provider.config
	redirectURL, found, err := f.transient.GetOnce(ctx, transient.RedirectURI)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		redirectURL = c.RedirectURL
	}
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {rc.Code},
		"redirect_uri": {redirectURL},
	}
	if c.UsePKCE {
		verifier, found, err := f.transient.GetOnce(ctx, transient.CodeVerifier)
		if err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		if !found {
			return false, fmt.Errorf("%s: %w", op, ErrMissingCodeVerifier)
		}
		form.Set("code_verifier", verifier)
	}

	now := f.provider.now()
	tr, err := f.provider.requestToken(ctx, form)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	next := Session{
		AccessToken:          tr.AccessToken,
		AccessTokenExpiresAt: tr.expiry(now),
		IDToken:              tr.IDToken,
		RefreshToken:         tr.RefreshToken,
	}

	if tr.IDToken != "" {
		nonce, found, err := f.transient.GetOnce(ctx, transient.Nonce)
		if err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		if !found {
			return false, fmt.Errorf("%s: %w", op, ErrMissingNonce)
		}
		maxAge, err := f.storedMaxAge(ctx)
		if err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		if next.Claims, err = f.provider.verifyIDToken(ctx, tr.IDToken, nonce, maxAge); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
	}

	switch {
	case !c.SkipUserInfo:
		profile, err := f.provider.UserInfo(ctx, next.AccessToken)
		if err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		if next.Claims != nil && profile["sub"] != next.Claims.Subject() {
			return false, fmt.Errorf("%s: userinfo subject doesn't match the id_token subject: %w", op, ErrUserInfoFailed)
		}
		next.User = profile
	case next.Claims != nil:
		next.User = next.Claims.Claims()
	}

	if err := persistSession(ctx, f.sessions, c.Persist, next); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	f.session = next
	f.provider.logger.Debug("exchanged authorization code", "id_token", tr.IDToken != "",
		"refresh_token", tr.RefreshToken != "", "userinfo", !c.SkipUserInfo)
	return true, nil
}

// storedMaxAge consumes the max_age stored by AuthURL.
func (f *Flow) storedMaxAge(ctx context.Context) (*int, error) {
	const op = "Flow.storedMaxAge"
	v, found, err := f.transient.GetOnce(ctx, transient.MaxAge)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, nil
	}
	maxAge, err := strconv.Atoi(v)
	if err != nil || maxAge < 0 {
		return nil, fmt.Errorf("%s: stored max age is invalid: %w", op, ErrInvalidParameter)
	}
	return &maxAge, nil
}

// Renew uses the session's refresh token to get a new access token.  An
// id_token in the response is verified like at exchange, but without a nonce
// or max_age.  A rotated refresh token replaces the session's one.
//
// Supported options:
//   - WithScopes
func (f *Flow) Renew(ctx context.Context, opt ...Option) error {
	const op = "Flow.Renew"
	if f.session.RefreshToken == "" {
		return fmt.Errorf("%s: %w", op, ErrMissingRefreshToken)
	}
	opts := getRenewOpts(opt...)
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {string(f.session.RefreshToken)},
	}
	if len(opts.withScopes) > 0 {
		form.Set("scope", strings.Join(opts.withScopes, " "))
	}

	now := f.provider.now()
	tr, err := f.provider.requestToken(ctx, form)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	next := f.session.copy()
	next.AccessToken = tr.AccessToken
	next.AccessTokenExpiresAt = tr.expiry(now)
	if tr.IDToken != "" {
		claims, err := f.provider.verifyIDToken(ctx, tr.IDToken, "", nil)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		next.IDToken, next.Claims = tr.IDToken, claims
	}
	if tr.RefreshToken != "" {
		next.RefreshToken = tr.RefreshToken
	}

	if err := persistSession(ctx, f.sessions, f.provider.config.Persist, next); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	f.session = next
	f.provider.logger.Debug("renewed access token", "id_token", tr.IDToken != "", "rotated", tr.RefreshToken != "")
	return nil
}

// Logout clears the session and deletes every persisted session key,
// regardless of which fields the Config persists.  It doesn't end the
// end-user's session at the provider; redirect to Provider.LogoutURL for
// that.
func (f *Flow) Logout(ctx context.Context) error {
	const op = "Flow.Logout"
	f.session = Session{}
	if err := clearSession(ctx, f.sessions); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// LogoutURL is a shortcut for Provider.LogoutURL.
func (f *Flow) LogoutURL(returnTo string) (string, error) {
	return f.provider.LogoutURL(returnTo)
}
