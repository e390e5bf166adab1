// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
callback is a package that provides handlers (in the form of http.HandlerFunc)
for the steps of an OIDC authorization code flow: redirecting the end-user to
the provider, handling the provider's response at the redirect URL and logging
the end-user out.
*/
package callback
