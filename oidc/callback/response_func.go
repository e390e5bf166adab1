// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"net/http"

	"github.com/openrp/authflow/oidc"
)

// SuccessResponseFunc is used by Callbacks to create a http response when the
// callback is successful.
//
// The function state parameter will contain the state that was returned as
// part of a successful oidc authentication response. The oidc.Session is the
// end-user's session established by the token exchange.  The function should
// use the http.ResponseWriter to send back whatever content (headers, html,
// JSON, etc) it wishes to the client that originated the oidc flow.
type SuccessResponseFunc func(state string, s oidc.Session, w http.ResponseWriter, req *http.Request)

// ErrorResponseFunc is used by Callbacks to create a http response when the
// callback fails.
//
// The function receives the state returned as part of the oidc authentication
// response.  It also gets the provider's error response, or the error raised
// while processing the request.  The function should use the
// http.ResponseWriter to send back whatever content (headers, html, JSON, etc)
// it wishes to the client that originated the oidc flow.
type ErrorResponseFunc func(state string, respErr *oidc.AuthError, e error, w http.ResponseWriter, req *http.Request)
