// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"fmt"

	"github.com/openrp/authflow/jwt"
)

var (
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrNilParameter         = errors.New("nil parameter")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrInvalidCACert        = errors.New("invalid CA certificate")
	ErrInvalidState         = errors.New("invalid state")
	ErrMissingNonce         = errors.New("id_token returned without an issued nonce")
	ErrMissingCodeVerifier  = errors.New("code verifier is missing")
	ErrDuplicateSession     = errors.New("a session is already established")
	ErrMissingRefreshToken  = errors.New("refresh token is missing")
	ErrUserInfoFailed       = errors.New("user info failed")
	ErrLoginFailed          = errors.New("login failed")
)

// ResponseError is returned when the token or userinfo endpoint answers
// without the fields a successful response requires.
type ResponseError = jwt.ResponseError

// NetworkError wraps transport failures; Unwrap returns the transport's error.
type NetworkError = jwt.NetworkError

// ErrInvalidResponse and ErrNetwork match ResponseError and NetworkError.
var (
	ErrInvalidResponse = jwt.ErrInvalidResponse
	ErrNetwork         = jwt.ErrNetwork
)

// ConfigError describes one invalid Config field.  Config.Validate reports
// every ConfigError it finds, combined with go-multierror.
type ConfigError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidConfiguration, e.Field, e.Reason)
}

// Is reports whether target is ErrInvalidConfiguration.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

// AuthError represents an OAuth2 error response sent to the callback by the
// provider instead of an authorization code.  See:
// https://openid.net/specs/openid-connect-core-1_0.html#AuthError
type AuthError struct {
	Code        string
	Description string
	URI         string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%s: %s", ErrLoginFailed, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", ErrLoginFailed, e.Code, e.Description)
}

// Is reports whether target is ErrLoginFailed.
func (e *AuthError) Is(target error) bool {
	return target == ErrLoginFailed
}
