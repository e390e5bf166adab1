// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"net/http"
	"net/url"
)

// RequestContext is the authorization response the provider sent to the
// redirect URL.  Flow.Exchange reads it instead of the http request, so a
// Flow can be driven without a server.
type RequestContext struct {
	// Code is the authorization code.  It's empty when the end-user hasn't
	// authenticated yet.
	Code string

	// State is the state returned with the response.
	State string

	// Error is set when the provider returned an error response instead of
	// a code.
	Error *AuthError
}

// NewRequestContext reads the authorization response from r: the query
// string for ResponseModeQuery, the form encoded POST body for
// ResponseModeFormPost.  A form_post callback which isn't a POST carries no
// response.
func NewRequestContext(r *http.Request, mode ResponseMode) (*RequestContext, error) {
	const op = "NewRequestContext"
	if r == nil {
		return nil, fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	var values url.Values
	switch mode {
	case ResponseModeQuery:
		values = r.URL.Query()
	case ResponseModeFormPost:
		if r.Method != http.MethodPost {
			return &RequestContext{}, nil
		}
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("%s: unable to parse form: %w", op, err)
		}
		values = r.PostForm
	default:
		return nil, fmt.Errorf("%s: unsupported response mode %q: %w", op, mode, ErrInvalidParameter)
	}

	rc := &RequestContext{
		Code:  values.Get("code"),
		State: values.Get("state"),
	}
	if code := values.Get("error"); code != "" {
		rc.Error = &AuthError{
			Code:        code,
			Description: values.Get("error_description"),
			URI:         values.Get("error_uri"),
		}
	}
	return rc, nil
}
