// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package transient

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

type options struct {
	withPrefix    string
	withGenerator func() (string, error)
}

func defaults() options {
	return options{
		withPrefix:    DefaultPrefix,
		withGenerator: NewValue,
	}
}

func getOpts(opt ...Option) options {
	opts := defaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithPrefix provides an optional prefix for entry names.
func WithPrefix(prefix string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withPrefix = prefix
		}
	}
}

// WithGenerator provides an optional function used by Issue to generate
// values.
func WithGenerator(fn func() (string, error)) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && fn != nil {
			o.withGenerator = fn
		}
	}
}
