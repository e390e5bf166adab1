// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// authflow provides a collection of related packages which let a web
// application sign end-users in with an OpenID Connect provider, using the
// authorization code flow (with optional PKCE), and keep their sessions.
//
//   - oidc: configuration, the provider, the per end-user Flow and Session.
//   - oidc/callback: http handlers for login, callback and logout.
//   - jwt: id_token signature and claims verification.
//   - transient: single use values (state, nonce, code verifier) of a flow.
//   - storage: session stores in memory, redis or encrypted cookies.
package authflow
