// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

type keyFetcherOptions struct {
	withHTTPClient      *http.Client
	withKeySetCache     KeySetCache
	withKeySetTTL       time.Duration
	withRefetchInterval time.Duration
	withJWKSURL         string
	withLogger          hclog.Logger
	withNowFunc         func() time.Time
}

func keyFetcherDefaults() keyFetcherOptions {
	return keyFetcherOptions{
		withKeySetTTL:       DefaultKeySetTTL,
		withRefetchInterval: DefaultRefetchInterval,
		withLogger:          hclog.NewNullLogger(),
		withNowFunc:         time.Now,
	}
}

// getKeyFetcherOpts gets the defaults and applies the opt overrides passed
// in.
func getKeyFetcherOpts(opt ...Option) keyFetcherOptions {
	opts := keyFetcherDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithHTTPClient provides an optional http client used to fetch key sets.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		if o, ok := o.(*keyFetcherOptions); ok {
			o.withHTTPClient = c
		}
	}
}

// WithKeySetCache provides an optional KeySetCache (default: a
// MemoryKeySetCache).
func WithKeySetCache(c KeySetCache) Option {
	return func(o interface{}) {
		if o, ok := o.(*keyFetcherOptions); ok {
			o.withKeySetCache = c
		}
	}
}

// WithKeySetTTL provides an optional ttl for cached key sets.  Zero means
// cached key sets never expire; they're still refetched when a requested kid
// is missing.
func WithKeySetTTL(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*keyFetcherOptions); ok {
			o.withKeySetTTL = d
		}
	}
}

// WithRefetchInterval provides an optional minimum time between refetches of
// an issuer's key set caused by an unknown kid.  Zero removes the limit.
func WithRefetchInterval(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*keyFetcherOptions); ok {
			o.withRefetchInterval = d
		}
	}
}

// WithJWKSURL overrides the key set url otherwise derived from the issuer.
func WithJWKSURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*keyFetcherOptions); ok {
			o.withJWKSURL = u
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*keyFetcherOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithNow provides an optional function that returns the current time.
func WithNow(fn func() time.Time) Option {
	return func(o interface{}) {
		if o, ok := o.(*keyFetcherOptions); ok && fn != nil {
			o.withNowFunc = fn
		}
	}
}
