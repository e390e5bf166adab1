// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/openrp/authflow/oidc"
)

// ErrMissingCode is given to the ErrorResponseFunc when a callback carries
// neither a code nor an error.
var ErrMissingCode = errors.New("authorization code is missing")

// Login creates a handler which redirects the end-user to the provider's
// authorization URL.  The options are passed to oidc.Flow.AuthURL.  The
// ErrorResponseFunc is used when the URL can't be built.
func Login(fr FlowReader, eFn ErrorResponseFunc, opt ...oidc.Option) (http.HandlerFunc, error) {
	const op = "callback.Login"
	switch {
	case fr == nil:
		return nil, fmt.Errorf("%s: flow reader is nil: %w", op, oidc.ErrInvalidParameter)
	case eFn == nil:
		return nil, fmt.Errorf("%s: error response func is nil: %w", op, oidc.ErrInvalidParameter)
	}
	return func(w http.ResponseWriter, req *http.Request) {
		f, err := fr.Read(w, req)
		if err != nil {
			eFn("", nil, fmt.Errorf("%s: unable to read flow: %w", op, err), w, req)
			return
		}
		authURL, err := f.AuthURL(req.Context(), opt...)
		if err != nil {
			eFn("", nil, fmt.Errorf("%s: %w", op, err), w, req)
			return
		}
		http.Redirect(w, req, authURL, http.StatusFound)
	}, nil
}

// AuthCode creates an oidc authorization code callback handler which reads
// the provider's response with the configured response mode and completes the
// end-user's Flow.
//
// The SuccessResponseFunc is used to create a response when callback is
// successful. The ErrorResponseFunc is to create a response when the callback
// fails: with the provider's error response, or with the error raised while
// exchanging the code.
func AuthCode(fr FlowReader, sFn SuccessResponseFunc, eFn ErrorResponseFunc) (http.HandlerFunc, error) {
	const op = "callback.AuthCode"
	switch {
	case fr == nil:
		return nil, fmt.Errorf("%s: flow reader is nil: %w", op, oidc.ErrInvalidParameter)
	case sFn == nil:
		return nil, fmt.Errorf("%s: success response func is nil: %w", op, oidc.ErrInvalidParameter)
	case eFn == nil:
		return nil, fmt.Errorf("%s: error response func is nil: %w", op, oidc.ErrInvalidParameter)
	}
	return func(w http.ResponseWriter, req *http.Request) {
		f, err := fr.Read(w, req)
		if err != nil {
			eFn("", nil, fmt.Errorf("%s: unable to read flow: %w", op, err), w, req)
			return
		}
		rc, err := f.Provider().RequestContext(req)
		if err != nil {
			eFn("", nil, fmt.Errorf("%s: %w", op, err), w, req)
			return
		}
		if rc.Error != nil {
			eFn(rc.State, rc.Error, nil, w, req)
			return
		}
		ok, err := f.Exchange(req.Context(), rc)
		switch {
		case err != nil:
			eFn(rc.State, nil, fmt.Errorf("%s: unable to exchange authorization code: %w", op, err), w, req)
			return
		case !ok:
			eFn(rc.State, nil, fmt.Errorf("%s: %w", op, ErrMissingCode), w, req)
			return
		}
		sFn(rc.State, f.Session(), w, req)
	}, nil
}

// Logout creates a handler which clears the end-user's session and then
// redirects to the provider's logout URL, which returns to returnTo.
func Logout(fr FlowReader, returnTo string, eFn ErrorResponseFunc) (http.HandlerFunc, error) {
	const op = "callback.Logout"
	switch {
	case fr == nil:
		return nil, fmt.Errorf("%s: flow reader is nil: %w", op, oidc.ErrInvalidParameter)
	case eFn == nil:
		return nil, fmt.Errorf("%s: error response func is nil: %w", op, oidc.ErrInvalidParameter)
	}
	return func(w http.ResponseWriter, req *http.Request) {
		f, err := fr.Read(w, req)
		if err != nil {
			eFn("", nil, fmt.Errorf("%s: unable to read flow: %w", op, err), w, req)
			return
		}
		logoutURL, err := f.LogoutURL(returnTo)
		if err != nil {
			eFn("", nil, fmt.Errorf("%s: %w", op, err), w, req)
			return
		}
		if err := f.Logout(req.Context()); err != nil {
			eFn("", nil, fmt.Errorf("%s: %w", op, err), w, req)
			return
		}
		http.Redirect(w, req, logoutURL, http.StatusFound)
	}, nil
}
