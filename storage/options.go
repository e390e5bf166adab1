// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package storage

import (
	"net/http"
	"time"
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

// options is the set of available options for the package's stores
type options struct {
	withTTL          time.Duration
	withCookiePrefix string
	withCookiePath   string
	withCookieDomain string
	withInsecure     bool
	withSameSite     http.SameSite
	withMaxAge       time.Duration
}

func defaults() options {
	return options{
		withTTL:          DefaultRedisTTL,
		withCookiePrefix: DefaultCookiePrefix,
		withCookiePath:   "/",
		withSameSite:     http.SameSiteLaxMode,
		withMaxAge:       DefaultCookieMaxAge,
	}
}

func getOpts(opt ...Option) options {
	opts := defaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithTTL provides an optional expiration for keys written by a RedisStore.
// A zero duration disables expiration.
func WithTTL(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withTTL = d
		}
	}
}

// WithCookiePrefix provides an optional prefix for every cookie name written
// by a CookieStore.
func WithCookiePrefix(prefix string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withCookiePrefix = prefix
		}
	}
}

// WithCookiePath provides an optional cookie path (default "/").
func WithCookiePath(path string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withCookiePath = path
		}
	}
}

// WithCookieDomain provides an optional cookie domain.
func WithCookieDomain(domain string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withCookieDomain = domain
		}
	}
}

// WithInsecureCookies drops the Secure attribute from written cookies.  Only
// useful for local development over plain http.
func WithInsecureCookies() Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withInsecure = true
		}
	}
}

// WithSameSite provides an optional SameSite mode (default Lax, which is
// required for the provider's top-level redirect back to the application).
// Use http.SameSiteNoneMode for form_post callbacks.
func WithSameSite(mode http.SameSite) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withSameSite = mode
		}
	}
}

// WithMaxAge provides an optional cookie lifetime.
func WithMaxAge(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withMaxAge = d
		}
	}
}
