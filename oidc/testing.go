// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestConfig returns a validated Config for the TestProvider tp, using its
// client credentials and TestRedirectURL.  The options are applied on top.
func TestConfig(t testing.TB, tp *TestProvider, opt ...Option) *Config {
	t.Helper()
	tp.mu.Lock()
	clientID, clientSecret := tp.clientID, tp.clientSecret
	tp.mu.Unlock()

	opts := append([]Option{WithProviderCA(tp.CACert())}, opt...)
	c, err := NewConfig(tp.Domain(), clientID, ClientSecret(clientSecret), TestRedirectURL, opts...)
	require.NoError(t, err)
	return c
}

// TestNewProvider returns a Provider for the TestProvider tp.  The options
// are used both for its Config and for NewProvider.
func TestNewProvider(t testing.TB, tp *TestProvider, opt ...Option) *Provider {
	t.Helper()
	p, err := NewProvider(context.Background(), TestConfig(t, tp, opt...), opt...)
	require.NoError(t, err)
	return p
}
