// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AccessToken is an oauth access_token
type AccessToken string

// RedactedAccessToken is the redacted string or json for an oauth access_token
const RedactedAccessToken = "[REDACTED: access_token]"

// String will redact the token
func (t AccessToken) String() string {
	return RedactedAccessToken
}

// MarshalJSON will redact the token
func (t AccessToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedAccessToken)
}

// IDToken is an oidc id_token
type IDToken string

// RedactedIDToken is the redacted string or json for an oidc id_token
const RedactedIDToken = "[REDACTED: id_token]"

// String will redact the token
func (t IDToken) String() string {
	return RedactedIDToken
}

// MarshalJSON will redact the token
func (t IDToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedIDToken)
}

// RefreshToken is an oauth refresh_token
type RefreshToken string

// RedactedRefreshToken is the redacted string or json for an oauth refresh_token
const RedactedRefreshToken = "[REDACTED: refresh_token]"

// String will redact the token
func (t RefreshToken) String() string {
	return RedactedRefreshToken
}

// MarshalJSON will redact the token
func (t RefreshToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedRefreshToken)
}

const (
	// maxTokenResponseSize bounds how much of a token endpoint response is
	// read.
	maxTokenResponseSize = 1 << 20

	tokenEndpoint = "token"
)

// tokenResponse is a token endpoint response.  See:
// https://openid.net/specs/openid-connect-core-1_0.html#TokenResponse
type tokenResponse struct {
	AccessToken  AccessToken  `json:"access_token"`
	IDToken      IDToken      `json:"id_token"`
	RefreshToken RefreshToken `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    json.Number  `json:"expires_in"`
	Scope        string       `json:"scope"`

	ErrorCode        string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// expiry converts expires_in into an absolute time.  The zero time means the
// provider didn't say.
func (r *tokenResponse) expiry(now time.Time) time.Time {
	secs, err := r.ExpiresIn.Int64()
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(secs) * time.Second)
}

// requestToken posts form to the token endpoint with client_secret_post
// authentication.  It's called at most once per exchange or renewal and never
// retries.  A response without an access_token is a *ResponseError.
func (p *Provider) requestToken(ctx context.Context, form url.Values) (*tokenResponse, error) {
	const op = "Provider.requestToken"
	form.Set("client_id", p.config.ClientID)
	if p.config.ClientSecret != "" {
		form.Set("client_secret", string(p.config.ClientSecret))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoints.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create token request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, &NetworkError{Endpoint: tokenEndpoint, Err: err})
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, &NetworkError{Endpoint: tokenEndpoint, Err: err})
	}

	var tr tokenResponse
	jsonErr := json.Unmarshal(body, &tr)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %w", op, &ResponseError{
			Endpoint:    tokenEndpoint,
			StatusCode:  resp.StatusCode,
			Code:        tr.ErrorCode,
			Description: tr.ErrorDescription,
		})
	}
	if jsonErr != nil {
		reason := "response is not a JSON object"
		if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "" && mt != "application/json" {
			reason = fmt.Sprintf("unexpected content type %s", mt)
		}
		return nil, fmt.Errorf("%s: %w", op, &ResponseError{Endpoint: tokenEndpoint, StatusCode: resp.StatusCode, Reason: reason})
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%s: %w", op, &ResponseError{
			Endpoint:    tokenEndpoint,
			StatusCode:  resp.StatusCode,
			Code:        tr.ErrorCode,
			Description: tr.ErrorDescription,
			Reason:      "access_token is missing",
		})
	}
	if tr.TokenType != "" && !strings.EqualFold(tr.TokenType, "bearer") {
		p.logger.Debug("token endpoint returned a non bearer token", "token_type", tr.TokenType)
	}
	return &tr, nil
}
