// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
oidc is a package for writing relying parties which authenticate end-users
with the OIDC authorization code flow.

Primary types provided by the package

* Config: the relying party's configuration (for example: provider domain,
client id/secret, redirect URL, scopes, response mode, PKCE, the id_token
signing algorithm and which session fields are persisted).  Use NewConfig, or
LoadConfig to read it from a YAML file.

* Provider: integration with one OIDC provider.  It resolves the provider's
endpoints (derived from its domain, or with discovery), verifies id_tokens
(RS256 with the provider's key set, or HS256 with the client secret), calls
the userinfo endpoint and builds logout URLs.  A Provider is shared by every
request.

* Flow: one end-user's authorization code flow.  It builds the authorization
URL, storing a fresh state, nonce and (with PKCE) code verifier for the
callback; then Exchange verifies the callback, exchanges the code for tokens,
validates the id_token and establishes the Session.  Renew uses a refresh
token for a new access token and Logout clears the session.

* Session: the end-user's tokens and profile, persisted in a storage.Store
(memory, redis or encrypted cookies).

* RequestContext: the authorization response the provider sent to the
redirect URL, read from the query string or a form_post body.

The oidc/callback package

The callback package provides http.HandlerFuncs for the login redirect and the
callback, where the authorization code is exchanged for tokens.
*/
package oidc
